package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Router    RouterConfig     `json:"router"`
	Memory    MemoryConfig     `json:"memory"`
	Providers []ProviderConfig `json:"providers"`
	Tools     ToolsConfig      `json:"tools"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// RouterConfig selects the routing strategy and its tunables.
type RouterConfig struct {
	Strategy            string  `json:"strategy"` // "rules" | "model"
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	PhraseWeight        float64 `json:"phrase_weight"`
	KeywordWeight       float64 `json:"keyword_weight"`
	VerbBonus           float64 `json:"verb_bonus"`
	PatternWeight       float64 `json:"pattern_weight"`
	Saturation          float64 `json:"saturation"`
	HistoryLimit        int     `json:"history_limit"`
}

// MemoryConfig selects and configures the session store backend.
type MemoryConfig struct {
	Backend  string         `json:"backend"` // "redis" | "postgres" | "memory"
	TTLDays  int            `json:"ttl_days"`
	Redis    RedisConfig    `json:"redis"`
	Postgres PostgresConfig `json:"postgres"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type PostgresConfig struct {
	DSN           string `json:"dsn"`
	MigrationsDir string `json:"migrations_dir"`
}

type ProviderConfig struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // "openai" | "ollama"
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// ToolsConfig points at the external tool-executor service.
type ToolsConfig struct {
	ExecutorURL    string `json:"executor_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
