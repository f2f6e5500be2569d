// Package config layers configuration from defaults, an optional YAML file,
// MARGIN_* environment variables, and command-line flags, in that order of
// precedence (later wins).
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "MARGIN_"

// Config is the application configuration.
type Config struct {
	DB       string `koanf:"db" validate:"required"`
	Listen   string `koanf:"listen" validate:"required,hostname_port"`
	Repos    string `koanf:"repos" validate:"required"`
	Timezone string `koanf:"timezone" validate:"omitempty,timezone"`
}

// Flags returns the flag set whose defaults seed the configuration.
func Flags() *pflag.FlagSet {
	f := pflag.NewFlagSet("margin", pflag.ContinueOnError)
	f.String("config", "", "Path to a YAML config file")
	f.String("db", "margin.db", "Path to the SQLite database file")
	f.String("listen", "127.0.0.1:8484", "HTTP listen address")
	f.String("repos", "repos", "Directory for mirrored git deck sources")
	f.String("timezone", "", "IANA timezone for calendar-day boundaries (default: local)")
	f.Bool("sync", false, "Run a deck source sync before serving")
	f.String("add-source", "", "Register a new deck source path or git URL, then exit")
	return f
}

// Load merges all configuration layers and validates the result. The config
// file path is taken from the --config flag; a missing file is only an error
// when it was named explicitly.
func Load(f *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path, _ := f.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config file %s: %w", path, err)
			}
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, interface{}) {
		key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "_", ".")
		return key, value
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
