// Package config loads compass configuration from TOML and environment
// variables.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	LLM        LLMConfig        `toml:"llm"`
	Database   DatabaseConfig   `toml:"database"`
	Supervisor SupervisorConfig `toml:"supervisor"`
	Resources  ResourcesConfig  `toml:"resources"`
	Observer   ObserverConfig   `toml:"observer"`
}

type LLMConfig struct {
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

type DatabaseConfig struct {
	// Driver selects the state store: "sqlite" or "postgres".
	Driver      string `toml:"driver"`
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
}

type SupervisorConfig struct {
	EscalationContact string `toml:"escalation_contact"`
	MaxHandoffs       int    `toml:"max_handoffs"`
}

type ResourcesConfig struct {
	// Sites are the base URLs the resource search fetches and extracts.
	Sites []string `toml:"sites"`
}

type ObserverConfig struct {
	Enabled bool `toml:"enabled"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		LLM:      LLMConfig{Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1"},
		Database: DatabaseConfig{Driver: "sqlite", Path: "compass.db"},
		Supervisor: SupervisorConfig{
			EscalationContact: "support@compass.example",
			MaxHandoffs:       3,
		},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "compass.toml"
	}

	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	// Env overrides
	if v := os.Getenv("COMPASS_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("COMPASS_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("COMPASS_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("COMPASS_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("COMPASS_POSTGRES_URL"); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("COMPASS_ESCALATION_CONTACT"); v != "" {
		cfg.Supervisor.EscalationContact = v
	}
	if v := os.Getenv("COMPASS_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	return cfg
}
