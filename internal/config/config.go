// Package config provides configuration loading and structs for the kioku server.
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
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Search  SearchConfig  `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the data directory for the chunk store, feedback log,
// and index snapshot.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// IngestConfig holds chunking defaults and drop-directory watch settings.
type IngestConfig struct {
	ChunkChars      int      `yaml:"chunk_chars"`
	OverlapChars    int      `yaml:"overlap_chars"`
	DropDirectories []string `yaml:"drop_directories"`
	Extensions      []string `yaml:"extensions"`
}

// FetchConfig holds URL fetcher limits.
type FetchConfig struct {
	AllowedDomains []string `yaml:"allowed_domains"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	MaxBytes       int64    `yaml:"max_bytes"`
}

// SearchConfig holds search and answer defaults.
type SearchConfig struct {
	DefaultTopK     int     `yaml:"default_top_k"`
	DefaultMinScore float64 `yaml:"default_min_score"`
	AnswerMinScore  float64 `yaml:"answer_min_score"`
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and applies environment overrides. Returns an error if the file
// cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	for i := range cfg.Ingest.DropDirectories {
		cfg.Ingest.DropDirectories[i] = expandPath(cfg.Ingest.DropDirectories[i], configDir)
	}

	return &cfg, nil
}

// applyEnvOverrides lets deployment environments narrow fetcher behavior
// without editing the config file. KIOKU_ALLOWED_DOMAINS is a comma-separated
// host allow-list.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KIOKU_ALLOWED_DOMAINS"); v != "" {
		var domains []string
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				domains = append(domains, d)
			}
		}
		cfg.Fetch.AllowedDomains = domains
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
