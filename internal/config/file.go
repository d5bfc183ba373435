package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const tomlStub = `[email]
smtp     = "Your email provider's SMTP host"
port     = 587 # Usually the default port
username = "Username: Usually your email address"
password = "Password or App Password"
from     = "Usually same as your username"
to       = "Your e-book reader's email address"

[logging]
level  = "warn"
format = "console"

[lookup]
provider = "none" # none, googlebooks, openlibrary or hardcover
`

const yamlStub = `email:
  smtp: "Your email provider's SMTP host"
  port: 587 # Usually the default port
  username: "Username: Usually your email address"
  password: "Password or App Password"
  from: "Usually same as your username"
  to: "Your e-book reader's email address"

logging:
  level: "warn"
  format: "console"

lookup:
  provider: "none" # none, googlebooks, openlibrary or hardcover
`

type format int

const (
	formatTOML format = iota
	formatYAML
)

func formatFor(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatTOML
	}
}

// Load reads the config file at path on top of the defaults, then applies
// <dir>/.env and environment overrides. A missing file is not an error:
// the defaults are returned with Loaded set to false.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.Path = path

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
		cfg.Loaded = true
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	loadFromEnv(cfg)
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	var err error
	switch formatFor(path) {
	case formatYAML:
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// WriteStub writes a skeleton config file for the user to fill in.
// An existing file is left untouched.
func WriteStub(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	stub := tomlStub
	if formatFor(path) == formatYAML {
		stub = yamlStub
	}
	if err := os.WriteFile(path, []byte(stub), 0o600); err != nil {
		return fmt.Errorf("failed to write config stub: %w", err)
	}
	return nil
}

// Save writes cfg to path in the format implied by its extension
func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	switch formatFor(path) {
	case formatYAML:
		data, err = yaml.Marshal(cfg)
	default:
		data, err = toml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
