// Package config loads viewer preferences from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Env vars consulted by Load.
const (
	EnvConfig = "NBVIEW_CONFIG"
	EnvTheme  = "NBVIEW_THEME"
)

// Duration is a time.Duration that decodes from TOML strings like "2s".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the persisted viewer configuration.
type Config struct {
	Theme          string   `toml:"theme" validate:"required"`
	Tip            bool     `toml:"tip"`
	DisplayOrder   []string `toml:"display_order" validate:"dive,required"`
	HideSource     bool     `toml:"hide_source"`
	CollapsedLines int      `toml:"collapsed_lines" validate:"gte=1"`
	Refresh        Duration `toml:"refresh"`
	LogFile        string   `toml:"log_file"`
	LogLevel       string   `toml:"log_level" validate:"omitempty,oneof=trace debug info warn warning error"`

	// Source is the file the config was read from, if any.
	Source string `toml:"-"`
}

// MinRefresh is the shortest accepted polling interval.
const MinRefresh = 100 * time.Millisecond

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Theme:          "dark",
		CollapsedLines: 12,
		Refresh:        Duration(2 * time.Second),
		LogLevel:       "info",
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/nbview/config.toml (or the
// platform equivalent), or "" when no config dir is known.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "nbview", "config.toml")
}

var validate = validator.New()

// Load reads path (or NBVIEW_CONFIG, or DefaultPath) over the defaults and
// applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfig))
	}
	if path == "" {
		path = DefaultPath()
	}

	if path != "" {
		content, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(content, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
			cfg.Source = path
		case errors.Is(err, os.ErrNotExist):
		default:
			return cfg, err
		}
	}

	if env := strings.TrimSpace(os.Getenv(EnvTheme)); env != "" {
		cfg.Theme = env
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if time.Duration(c.Refresh) < MinRefresh {
		return fmt.Errorf("invalid config: refresh %s is below %s", time.Duration(c.Refresh), MinRefresh)
	}
	return nil
}
