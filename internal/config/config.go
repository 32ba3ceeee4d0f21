// Package config loads settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/bdougie/shotsearch/internal/storage"
)

// Config holds program configuration
type Config struct {
	Source         string // postgres, sqlite or json
	Postgres       storage.PostgresConfig
	SQLitePath     string
	CatalogJSON    string
	EmbeddingsJSON string

	EmbedProvider string // ollama, openai or none
	EmbedHost     string
	EmbedModel    string
	OpenAIKey     string
	OpenAIBaseURL string
	EmbedWorkers  int

	TopK     int
	Port     string
	LogLevel slog.Level
}

// Load reads .env if present and then the process environment. Non-empty
// overrides take precedence over both.
func Load(overrides map[string]string) (Config, error) {
	_ = godotenv.Load()
	return FromEnv(func(key string) string {
		if v := overrides[key]; v != "" {
			return v
		}
		return os.Getenv(key)
	})
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	or := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Source: or("SHOTSEARCH_SOURCE", "sqlite"),
		Postgres: storage.PostgresConfig{
			Host:     or("POSTGRES_HOST", "localhost"),
			Port:     or("POSTGRES_PORT", "5432"),
			User:     or("POSTGRES_USER", "postgres"),
			Password: getenv("POSTGRES_PASSWORD"),
			DBName:   or("POSTGRES_DB", "shotsearch"),
		},
		SQLitePath:     or("SQLITE_PATH", "db/video_analysis.db"),
		CatalogJSON:    or("CATALOG_JSON", "data/catalog.json"),
		EmbeddingsJSON: or("EMBEDDINGS_JSON", "data/embeddings.json"),
		EmbedProvider:  or("EMBED_PROVIDER", "ollama"),
		EmbedHost:      or("EMBED_HOST", "http://localhost:11434"),
		EmbedModel:     or("EMBED_MODEL", "clip"),
		OpenAIKey:      getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  getenv("OPENAI_BASE_URL"),
		Port:           or("PORT", "8501"),
	}

	var errs []error
	var err error
	if cfg.EmbedWorkers, err = intVar(getenv, "EMBED_WORKERS", 4); err != nil {
		errs = append(errs, err)
	}
	if cfg.TopK, err = intVar(getenv, "SEARCH_TOP_K", 0); err != nil {
		errs = append(errs, err)
	}
	if cfg.LogLevel, err = ParseLevel(or("LOG_LEVEL", "info")); err != nil {
		errs = append(errs, err)
	}
	errs = append(errs, cfg.Validate())

	return cfg, errors.Join(errs...)
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Source {
	case "postgres", "sqlite", "json":
	default:
		errs = append(errs, fmt.Errorf("SHOTSEARCH_SOURCE: unknown backend %q", c.Source))
	}
	switch c.EmbedProvider {
	case "ollama", "none":
	case "openai":
		if c.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBED_PROVIDER: unknown provider %q", c.EmbedProvider))
	}
	if c.TopK < 0 {
		errs = append(errs, fmt.Errorf("SEARCH_TOP_K must not be negative, got %d", c.TopK))
	}
	return errors.Join(errs...)
}

// StorageOptions selects the configured backend.
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Backend:        c.Source,
		Postgres:       c.Postgres,
		SQLitePath:     c.SQLitePath,
		CatalogPath:    c.CatalogJSON,
		EmbeddingsPath: c.EmbeddingsJSON,
	}
}

// ParseLevel maps debug, info, warn and error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func intVar(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
