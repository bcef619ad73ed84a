package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/usr/local/var/kioku/data"
	}
	if cfg.Ingest.ChunkChars == 0 {
		cfg.Ingest.ChunkChars = 1200
	}
	if cfg.Ingest.OverlapChars == 0 {
		cfg.Ingest.OverlapChars = 160
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md", ".rst", ".pdf"}
	}
	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = 10
	}
	if cfg.Fetch.MaxBytes == 0 {
		cfg.Fetch.MaxBytes = 2_500_000
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 6
	}
	if cfg.Search.DefaultMinScore == 0 {
		cfg.Search.DefaultMinScore = 0.08
	}
	if cfg.Search.AnswerMinScore == 0 {
		cfg.Search.AnswerMinScore = 0.06
	}
}
