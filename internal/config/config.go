package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int               `json:"port"`
	JWTSecret   string            `json:"jwt_secret"`
	JWTTTLHours int               `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig  `json:"log_config"`
	Database    DatabaseConfig    `json:"database"`
	VectorIndex VectorIndexConfig `json:"vector_index"`
	AI          AIConfig          `json:"ai"`
	Enrich      EnrichConfig      `json:"enrich"`
	Archive     ArchiveConfig     `json:"archive"`
	Jobs        JobsConfig        `json:"jobs"`
	Search      SearchConfig      `json:"search"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type VectorIndexConfig struct {
	// Type is "qdrant" or "memory". Empty disables the index entirely and
	// every search runs on the legacy scan.
	Type       string `json:"type"`
	Location   string `json:"location"`
	APIKey     string `json:"api_key"`
	Collection string `json:"collection"`
	VectorSize int    `json:"vector_size"`
}

type AIConfig struct {
	Provider      string      `json:"provider"`
	Model         string      `json:"model"`
	EmbedModel    string      `json:"embed_model"`
	Timeout       int         `json:"timeout"`
	MaxInputChars int         `json:"max_input_chars"`
	Data          interface{} `json:"data"`
	// Fallback providers are tried in order when the primary fails.
	Fallback []AIFallbackConfig `json:"fallback"`
}

type AIFallbackConfig struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	EmbedModel string      `json:"embed_model"`
	Data       interface{} `json:"data"`
}

type EnrichConfig struct {
	TranscriptBaseURL string `json:"transcript_base_url"`
	TimeoutSeconds    int    `json:"timeout_seconds"`
	UserAgent         string `json:"user_agent"`
	// Async defers save-triggered enrichment to a background task so the
	// caller is not blocked on third-party fetches.
	Async bool `json:"async"`
}

type ArchiveConfig struct {
	// Enabled turns on best-effort archiving of raw fetched artifacts
	// (transcripts, page snapshots) to the file store.
	Enabled bool            `json:"enabled"`
	Store   FileStoreConfig `json:"store"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	EnrichSpec   string `json:"enrich_spec"`
	BackfillSpec string `json:"backfill_spec"`
}

type SearchConfig struct {
	MinScore float32 `json:"min_score"`
	TopK     int     `json:"top_k"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.embed_model is required")
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.AI.MaxInputChars == 0 {
		cfg.AI.MaxInputChars = 100000
	}
	for i, fb := range cfg.AI.Fallback {
		if fb.Provider == "" {
			return nil, fmt.Errorf("ai.fallback[%d].provider is required", i)
		}
	}
	switch cfg.VectorIndex.Type {
	case "", "memory":
	case "qdrant":
		if cfg.VectorIndex.Location == "" || cfg.VectorIndex.Collection == "" {
			return nil, fmt.Errorf("vector_index.location and vector_index.collection are required for qdrant")
		}
		if cfg.VectorIndex.VectorSize == 0 {
			return nil, fmt.Errorf("vector_index.vector_size is required for qdrant")
		}
	default:
		return nil, fmt.Errorf("vector_index.type must be qdrant, memory or empty")
	}
	if cfg.Enrich.TimeoutSeconds == 0 {
		cfg.Enrich.TimeoutSeconds = 10
	}
	if cfg.Enrich.UserAgent == "" {
		cfg.Enrich.UserAgent = "Mozilla/5.0 (compatible; recall/1.0; +https://github.com/xxxsen/recall)"
	}
	if cfg.Archive.Enabled && cfg.Archive.Store.Type == "" {
		return nil, fmt.Errorf("archive.store.type is required when archive is enabled")
	}
	if cfg.Jobs.EnrichSpec == "" {
		cfg.Jobs.EnrichSpec = "*/10 * * * *"
	}
	if cfg.Jobs.BackfillSpec == "" {
		cfg.Jobs.BackfillSpec = "*/5 * * * *"
	}
	if cfg.Search.MinScore == 0 {
		cfg.Search.MinScore = 0.35
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 10
	}
	return &cfg, nil
}
