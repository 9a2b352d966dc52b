// Package config holds the explicit configuration record passed into
// component constructors. Values come from an optional YAML file with
// environment variables taking precedence; nothing reads the environment
// ambiently past process start.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration.
type Config struct {
	// Addr is the listen address for the REST server.
	Addr string `yaml:"addr"`
	// DataDir is where the relationship store keeps its data.
	DataDir string `yaml:"data_dir"`
	// GeminiAPIKey authenticates against the enrichment service.
	GeminiAPIKey string `yaml:"gemini_api_key"`
	// GeminiModel selects the enrichment model.
	GeminiModel string `yaml:"gemini_model"`
	// JWTSecret signs session tokens.
	JWTSecret string `yaml:"jwt_secret"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Addr:        ":8080",
		DataDir:     "./data",
		GeminiModel: "gemini-1.5-flash",
	}
}

// Load reads the YAML file at path (if non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Addr = ":" + v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.GeminiModel = v
	}
	if v := os.Getenv("JWT_KEY"); v != "" {
		cfg.JWTSecret = v
	}

	return cfg, nil
}

// Validate checks the fields every serving mode needs.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret (or JWT_KEY) must be set")
	}
	return nil
}
