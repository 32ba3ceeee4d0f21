package config

import (
	"log/slog"
	"strings"
	"testing"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(env(nil))
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Source != "sqlite" || cfg.EmbedProvider != "ollama" || cfg.TopK != 0 || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if got := cfg.Postgres.ConnString(); got != "postgres://postgres:@localhost:5432/shotsearch" {
		t.Errorf("ConnString = %q", got)
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"SHOTSEARCH_SOURCE": "postgres",
		"POSTGRES_PASSWORD": "p@ss",
		"EMBED_PROVIDER":    "openai",
		"OPENAI_API_KEY":    "sk-test",
		"SEARCH_TOP_K":      "200",
		"LOG_LEVEL":         "DEBUG",
	}))
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.TopK != 200 || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("unexpected config %+v", cfg)
	}
	if opts := cfg.StorageOptions(); opts.Backend != "postgres" {
		t.Errorf("backend = %q", opts.Backend)
	}
	if got := cfg.Postgres.ConnString(); !strings.Contains(got, "p%40ss") {
		t.Errorf("password not escaped in %q", got)
	}
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"backend", map[string]string{"SHOTSEARCH_SOURCE": "mongo"}, "SHOTSEARCH_SOURCE"},
		{"provider", map[string]string{"EMBED_PROVIDER": "bert"}, "EMBED_PROVIDER"},
		{"openai key", map[string]string{"EMBED_PROVIDER": "openai"}, "OPENAI_API_KEY"},
		{"top k", map[string]string{"SEARCH_TOP_K": "many"}, "SEARCH_TOP_K"},
		{"negative top k", map[string]string{"SEARCH_TOP_K": "-1"}, "SEARCH_TOP_K"},
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(env(tt.vars))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SHOTSEARCH_SOURCE", "mongo")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(map[string]string{"SHOTSEARCH_SOURCE": "json", "LOG_LEVEL": ""})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source != "json" || cfg.LogLevel != slog.LevelWarn {
		t.Errorf("source = %q, level = %v", cfg.Source, cfg.LogLevel)
	}
}
