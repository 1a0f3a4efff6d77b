package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.RateLimit.RequestsPerMinute == 0 {
		cfg.Server.RateLimit.RequestsPerMinute = 60
	}
	if cfg.Server.RateLimit.Burst == 0 {
		cfg.Server.RateLimit.Burst = 10
	}
	if cfg.VectorDB.Driver == "" {
		cfg.VectorDB.Driver = "local"
	}
	if cfg.VectorDB.Namespace == "" {
		cfg.VectorDB.Namespace = "books"
	}
	if cfg.VectorDB.LocalPath == "" {
		cfg.VectorDB.LocalPath = "./data/" + cfg.VectorDB.Namespace + "_vectors.json"
	}
	if cfg.VectorDB.MaxTopK == 0 {
		cfg.VectorDB.MaxTopK = 50
	}
	if cfg.VectorDB.Pinecone.Index == "" {
		cfg.VectorDB.Pinecone.Index = "hunter-books"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "gemini"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 32
	}
	if cfg.Embedding.Concurrency == 0 {
		cfg.Embedding.Concurrency = 4
	}
	if cfg.Reindex.SeedPath == "" {
		cfg.Reindex.SeedPath = "./data/seed_books.json"
	}
}

// Default returns a config holding only the defaults, with paths left unexpanded.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}
