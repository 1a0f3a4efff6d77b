package config

import (
	"os"
	"strconv"
	"strings"
)

// ApplyEnv overrides cfg with values from the environment. Unset or empty
// variables leave the file value in place.
func ApplyEnv(cfg *Config) {
	if v, ok := lookup("PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v, ok := lookup("VECTOR_DB_DRIVER"); ok {
		cfg.VectorDB.Driver = v
	}
	if v, ok := lookup("VECTOR_DB_NAMESPACE"); ok {
		cfg.VectorDB.Namespace = v
	}
	if v, ok := lookup("PINECONE_API_KEY"); ok {
		cfg.VectorDB.Pinecone.APIKey = v
	}
	if v, ok := lookup("PINECONE_INDEX"); ok {
		cfg.VectorDB.Pinecone.Index = v
	}
	if v, ok := lookup("PINECONE_HOST"); ok {
		cfg.VectorDB.Pinecone.Host = v
	}
	if v, ok := lookup("EMBEDDING_PROVIDER"); ok {
		cfg.Embedding.Provider = v
	}
	if cfg.Embedding.APIKey == "" {
		key := "GEMINI_API_KEY"
		if strings.EqualFold(cfg.Embedding.Provider, "openai") {
			key = "OPENAI_API_KEY"
		}
		if v, ok := lookup(key); ok {
			cfg.Embedding.APIKey = v
		}
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
