// Package config provides configuration loading and structs for the Hondana server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	VectorDB  VectorDBConfig  `yaml:"vector_db"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Reindex   ReindexConfig   `yaml:"reindex"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string          `yaml:"host"`
	Port      int             `yaml:"port"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig holds the per-client token bucket settings.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// VectorDBConfig selects and configures the vector store driver.
type VectorDBConfig struct {
	Driver        string         `yaml:"driver"`
	Namespace     string         `yaml:"namespace"`
	LocalPath     string         `yaml:"local_path"`
	Dimension     int            `yaml:"dimension"`
	MaxTopK       int            `yaml:"max_top_k"`
	WatchSnapshot bool           `yaml:"watch_snapshot"`
	Pinecone      PineconeConfig `yaml:"pinecone"`
}

// PineconeConfig holds credentials for the remote driver.
type PineconeConfig struct {
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
	Host   string `yaml:"host"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Dimensions  int    `yaml:"dimensions"`
	CacheSize   int    `yaml:"cache_size"`
	BatchSize   int    `yaml:"batch_size"`
	Concurrency int    `yaml:"concurrency"`
}

// ReindexConfig holds the seed catalogue location.
type ReindexConfig struct {
	SeedPath string `yaml:"seed_path"`
}

// Load reads and parses the config file at path, applies environment overrides and
// defaults, and expands paths. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	configDir := "."
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		configDir = filepath.Dir(path)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	cfg.VectorDB.LocalPath = expandPath(cfg.VectorDB.LocalPath, configDir)
	cfg.Reindex.SeedPath = expandPath(cfg.Reindex.SeedPath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" paths are relative to the home directory. Other relative paths are left alone.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		if abs, err := filepath.Abs(filepath.Join(configDir, path)); err == nil {
			return abs
		}
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
