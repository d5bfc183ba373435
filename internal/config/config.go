package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultSMTPPort is the submission port most providers expect STARTTLS on
	DefaultSMTPPort = 587
	// DefaultLookupTimeout bounds a single bibliographic lookup request
	DefaultLookupTimeout = 30 * time.Second
	// DefaultTitleWidth is the list column width for titles
	DefaultTitleWidth = 60
	// DefaultAuthorWidth is the list column width for authors
	DefaultAuthorWidth = 50

	homeDirName    = ".bkmgr"
	libraryDirName = "Books"
	databaseName   = "books.db"
	configName     = "config.toml"
)

// Lookup providers
const (
	LookupNone        = "none"
	LookupGoogleBooks = "googlebooks"
	LookupOpenLibrary = "openlibrary"
	LookupHardcover   = "hardcover"
)

// ErrConfigNotFound is returned when a command needs settings that only a config file provides
var ErrConfigNotFound = errors.New("config file not found")

// EmailConfig holds the SMTP settings used to deliver books to the reader
type EmailConfig struct {
	SMTP     string `toml:"smtp" yaml:"smtp"`
	Port     int    `toml:"port" yaml:"port"`
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
	From     string `toml:"from" yaml:"from"`
	To       string `toml:"to" yaml:"to"`
}

// LoggingConfig holds the logger settings
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// LookupConfig selects and configures the bibliographic lookup service
type LookupConfig struct {
	Provider  string `toml:"provider" yaml:"provider"`
	APIKey    string `toml:"api_key" yaml:"api_key"`
	Token     string `toml:"token" yaml:"token"`
	Timeout   string `toml:"timeout" yaml:"timeout"`
	UserAgent string `toml:"user_agent" yaml:"user_agent"`
	// MaxRetries is the number of extra attempts after a failed lookup
	// request. Zero sends each request once.
	MaxRetries int `toml:"max_retries" yaml:"max_retries"`
}

// DisplayConfig holds list rendering settings
type DisplayConfig struct {
	TitleWidth  int `toml:"title_width" yaml:"title_width"`
	AuthorWidth int `toml:"author_width" yaml:"author_width"`
}

// Config holds all configuration for the application
type Config struct {
	Email   EmailConfig   `toml:"email" yaml:"email"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Lookup  LookupConfig  `toml:"lookup" yaml:"lookup"`
	Display DisplayConfig `toml:"display" yaml:"display"`

	// Path is the file the configuration was (or would be) read from
	Path string `toml:"-" yaml:"-"`
	// Loaded reports whether Path existed and was parsed
	Loaded bool `toml:"-" yaml:"-"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.Email.Port = DefaultSMTPPort
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "console"
	cfg.Lookup.Provider = LookupNone
	cfg.Lookup.Timeout = DefaultLookupTimeout.String()
	cfg.Lookup.UserAgent = "bkmgr/1.0"
	cfg.Display.TitleWidth = DefaultTitleWidth
	cfg.Display.AuthorWidth = DefaultAuthorWidth
	return cfg
}

// HomeDir returns the per-user bkmgr directory. BKMGR_HOME overrides it.
func HomeDir() (string, error) {
	if home := os.Getenv("BKMGR_HOME"); home != "" {
		return filepath.Abs(home)
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(userHome, homeDirName), nil
}

// LibraryDir returns the watched library directory under home
func LibraryDir(home string) string {
	return filepath.Join(home, libraryDirName)
}

// DatabasePath returns the catalog database path under home
func DatabasePath(home string) string {
	return filepath.Join(home, databaseName)
}

// DefaultPath returns the default config file path under home
func DefaultPath(home string) string {
	return filepath.Join(home, configName)
}

// Validate checks that every field needed to send mail is present
func (e *EmailConfig) Validate() error {
	var missing []string
	if e.SMTP == "" {
		missing = append(missing, "email.smtp")
	}
	if e.Port <= 0 {
		missing = append(missing, "email.port")
	}
	if e.From == "" {
		missing = append(missing, "email.from")
	}
	if e.Password == "" {
		missing = append(missing, "email.password")
	}
	if e.To == "" {
		missing = append(missing, "email.to")
	}
	if len(missing) > 0 {
		return &ConfigError{
			Field: strings.Join(missing, ", "),
			Msg:   "required configuration values are missing",
		}
	}
	return nil
}

// RequireEmail returns validated email settings. ErrConfigNotFound is
// returned when no config file exists and the environment did not supply
// a complete set of settings either.
func (c *Config) RequireEmail() (*EmailConfig, error) {
	err := c.Email.Validate()
	if err == nil {
		return &c.Email, nil
	}
	if !c.Loaded {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, c.Path)
	}
	return nil, err
}

// LookupTimeout returns the configured lookup timeout or the default
func (c *Config) LookupTimeout() time.Duration {
	d, err := time.ParseDuration(c.Lookup.Timeout)
	if err != nil || d <= 0 {
		return DefaultLookupTimeout
	}
	return d
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + " " + e.Msg
}

// loadFromEnv applies environment overrides on top of the file values
func loadFromEnv(cfg *Config) {
	if host := os.Getenv("BKMGR_SMTP_HOST"); host != "" {
		cfg.Email.SMTP = host
	}
	if port := os.Getenv("BKMGR_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Email.Port = p
		}
	}
	if username := os.Getenv("BKMGR_SMTP_USERNAME"); username != "" {
		cfg.Email.Username = username
	}
	if password := os.Getenv("BKMGR_SMTP_PASSWORD"); password != "" {
		cfg.Email.Password = password
	}
	if from := os.Getenv("BKMGR_EMAIL_FROM"); from != "" {
		cfg.Email.From = from
	}
	if to := os.Getenv("BKMGR_EMAIL_TO"); to != "" {
		cfg.Email.To = to
	}

	if level := os.Getenv("BKMGR_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("BKMGR_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if provider := os.Getenv("BKMGR_LOOKUP_PROVIDER"); provider != "" {
		cfg.Lookup.Provider = strings.ToLower(provider)
	}
	if key := os.Getenv("BKMGR_LOOKUP_API_KEY"); key != "" {
		cfg.Lookup.APIKey = key
	}
	if token := os.Getenv("HARDCOVER_TOKEN"); token != "" {
		cfg.Lookup.Token = token
	}
}
