package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server    ServerConfig
	LLM       LLMConfig
	Retrieval RetrievalConfig
	Ingest    IngestConfig
	Storage   StorageConfig
	Log       LogConfig
	API       APIConfig
}

type ServerConfig struct {
	Port int
}

type LLMConfig struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	EmbedModel string
}

type RetrievalConfig struct {
	TopK int
}

type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type APIConfig struct {
	Token string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		LLM: LLMConfig{
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-ada-002",
		},
		Retrieval: RetrievalConfig{
			TopK: 6,
		},
		Ingest: IngestConfig{
			ChunkSize:    800,
			ChunkOverlap: 80,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "nudge-data"
		}
	}
	return filepath.Join(dir, "nudge")
}

// Load reads configuration from the JSON config file and environment
// variables. The file lives at $XDG_CONFIG_HOME/nudge/config.json.
// Environment variables (NUDGE_*) override file values. The LLM API key is
// required; OPENAI_API_KEY is accepted as a fallback for NUDGE_LLM_API_KEY.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
	}

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: LLM API key. " +
			"Set it via environment variable NUDGE_LLM_API_KEY or OPENAI_API_KEY")
	}

	return cfg, nil
}
