package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_REDIS_URL", "redis://somewhere:6379")

	path := writeConfig(t, `{
		"server": {"port": 8080},
		"memory": {
			"backend": "redis",
			"ttl_days": 30,
			"redis": {"url": "${TEST_REDIS_URL}"}
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Memory.Redis.URL != "redis://somewhere:6379" {
		t.Errorf("got url %q, want substituted env value", cfg.Memory.Redis.URL)
	}
	if cfg.Memory.TTLDays != 30 {
		t.Errorf("got ttl_days %d, want 30", cfg.Memory.TTLDays)
	}
}

func TestLoadUsesDefaultWhenEnvUnset(t *testing.T) {
	os.Unsetenv("TEST_MISSING_VAR")

	path := writeConfig(t, `{
		"memory": {"backend": "${TEST_MISSING_VAR:memory}"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Memory.Backend != "memory" {
		t.Errorf("got backend %q, want default fallback", cfg.Memory.Backend)
	}
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("TEST_BACKEND", "postgres")

	path := writeConfig(t, `{
		"memory": {"backend": "${TEST_BACKEND:redis}"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Memory.Backend != "postgres" {
		t.Errorf("got backend %q, want env value over default", cfg.Memory.Backend)
	}
}

func TestLoadRouterTunables(t *testing.T) {
	path := writeConfig(t, `{
		"router": {
			"strategy": "rules",
			"confidence_threshold": 0.6,
			"phrase_weight": 1.5,
			"saturation": 2.0,
			"history_limit": 20
		}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Router.Strategy != "rules" {
		t.Errorf("got strategy %q, want rules", cfg.Router.Strategy)
	}
	if cfg.Router.ConfidenceThreshold != 0.6 {
		t.Errorf("got threshold %v, want 0.6", cfg.Router.ConfidenceThreshold)
	}
	if cfg.Router.PhraseWeight != 1.5 || cfg.Router.Saturation != 2.0 {
		t.Errorf("weights not loaded: %+v", cfg.Router)
	}
	if cfg.Router.HistoryLimit != 20 {
		t.Errorf("got history_limit %d, want 20", cfg.Router.HistoryLimit)
	}
}

func TestLoadProviders(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-abc")

	path := writeConfig(t, `{
		"providers": [
			{"id": "local", "type": "ollama", "endpoint": "http://localhost:11434", "model": "llama3"},
			{"id": "remote", "type": "openai", "api_key": "${TEST_API_KEY}", "model": "gpt-4o-mini"}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("got %d providers, want 2", len(cfg.Providers))
	}
	if cfg.Providers[0].Type != "ollama" || cfg.Providers[1].Type != "openai" {
		t.Errorf("provider order or types wrong: %+v", cfg.Providers)
	}
	if cfg.Providers[1].APIKey != "sk-abc" {
		t.Errorf("got api_key %q, want substituted env value", cfg.Providers[1].APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"server": `)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
