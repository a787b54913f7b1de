// Package config loads client configuration from a YAML file with viper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level client configuration.
type Config struct {
	// BaseURL is the root URL of the todo backend.
	BaseURL string `mapstructure:"base_url"`

	// DataDir is the directory for the local store.
	DataDir string `mapstructure:"data_dir"`

	// HTTPTimeout bounds a single request, excluding the refresh retry.
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// Dir returns the default config directory, honoring XDG_CONFIG_HOME.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "utodo")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "utodo")
}

// DefaultPath returns the default config file location.
func DefaultPath() string { return filepath.Join(Dir(), "config.yaml") }

func defaults() *Config {
	return &Config{
		BaseURL:     "https://localhost:3000/api",
		DataDir:     filepath.Join(Dir(), "data"),
		HTTPTimeout: 30 * time.Second,
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. Env vars with the UTODO_ prefix override file values.
// Plain-HTTP base URLs are upgraded to HTTPS unless the host is loopback.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("utodo")
	v.AutomaticEnv()

	v.SetDefault("base_url", "https://localhost:3000/api")
	v.SetDefault("data_dir", filepath.Join(Dir(), "data"))
	v.SetDefault("http_timeout", "30s")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaults()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.BaseURL = UpgradeURL(cfg.BaseURL)
	return cfg, nil
}

// UpgradeURL rewrites an http:// URL to https://, leaving loopback hosts
// alone so local development servers keep working.
func UpgradeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "http" {
		return strings.TrimRight(raw, "/")
	}
	host := u.Hostname()
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return strings.TrimRight(raw, "/")
	}
	u.Scheme = "https"
	return strings.TrimRight(u.String(), "/")
}
