// Package config resolves process configuration: an optional YAML file, an optional
// .env file and the per-service credential environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration file layout.
type Config struct {
	Log        LogConfig     `yaml:"log"`
	HTTP       HTTPConfig    `yaml:"http"`
	Confluence ServiceConfig `yaml:"confluence"`
	Jira       ServiceConfig `yaml:"jira"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // console|json
}

type HTTPConfig struct {
	UserAgent string `yaml:"user_agent"`
	// Timeout of zero leaves the HTTP client without a deadline.
	Timeout time.Duration `yaml:"timeout"`
}

// ServiceConfig holds file-provided credential fallbacks. Environment variables win.
type ServiceConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	APIToken string `yaml:"api_token"`
	Cloud    *bool  `yaml:"cloud"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Log:  LogConfig{Level: "info", Format: "console"},
		HTTP: HTTPConfig{UserAgent: "mcp-atlassian"},
	}
}

// Load reads the YAML file at path over the defaults. An empty path yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.HTTP.Timeout < 0 {
		return Config{}, fmt.Errorf("parse config %s: http.timeout must be >= 0", path)
	}
	return cfg, nil
}
