package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Soumil-07/bkmgr/internal/api/googlebooks"
	"github.com/Soumil-07/bkmgr/internal/api/hardcover"
	"github.com/Soumil-07/bkmgr/internal/api/openlibrary"
	"github.com/Soumil-07/bkmgr/internal/config"
	"github.com/Soumil-07/bkmgr/internal/database"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/metadata"
	"github.com/Soumil-07/bkmgr/internal/prompt"
)

// env is what every command works with
type env struct {
	home    string
	library string
	cfg     *config.Config
	log     *logger.Logger
	prompt  *prompt.Prompter
	out     io.Writer
	db      *database.Database
}

// newApp builds the CLI reading answers from in and writing output to out
func newApp(in io.Reader, out io.Writer) *cli.App {
	return &cli.App{
		Name:                 "bkmgr",
		Usage:                "Manage your e-book library and send books to your e-reader",
		Version:              fmt.Sprintf("%s (%s) %s", version, commit, date),
		Reader:               in,
		Writer:               out,
		EnableBashCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "home",
				Usage:   "bkmgr home `DIR` holding the library, catalog and config",
				EnvVars: []string{"BKMGR_HOME"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (.toml or .yaml)",
				EnvVars: []string{"BKMGR_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log format (console, json)",
			},
		},
		Commands: []*cli.Command{
			addCommand(),
			syncCommand(),
			uploadCommand(),
			listCommand(),
			metadataEditCommand(),
			configureCommand(),
		},
	}
}

// newEnv loads configuration, sets up logging and resolves the library paths
func newEnv(c *cli.Context) (*env, error) {
	home := c.String("home")
	if home == "" {
		var err error
		if home, err = config.HomeDir(); err != nil {
			return nil, err
		}
	}

	cfgPath := c.String("config")
	if cfgPath == "" {
		cfgPath = config.DefaultPath(home)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if l := c.String("log-level"); l != "" {
		level = l
	}
	format := cfg.Logging.Format
	if f := c.String("log-format"); f != "" {
		format = f
	}
	logger.ForceSetup(logger.Config{
		Level:  level,
		Format: logger.ParseLogFormat(format),
		Output: os.Stderr,
	})
	log := logger.Get()

	library := config.LibraryDir(home)
	if err := os.MkdirAll(library, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create library directory: %w", err)
	}

	log.Debug("Environment ready", map[string]interface{}{
		"home":        home,
		"config":      cfgPath,
		"config_read": cfg.Loaded,
	})

	return &env{
		home:    home,
		library: library,
		cfg:     cfg,
		log:     log,
		prompt:  prompt.New(c.App.Reader, c.App.Writer),
		out:     c.App.Writer,
	}, nil
}

// store opens the catalog on first use
func (e *env) store() (*database.Database, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := database.Open(config.DatabasePath(e.home), e.log)
	if err != nil {
		return nil, err
	}
	e.db = db
	return db, nil
}

func (e *env) Close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.log.Warn("Failed to close catalog", map[string]interface{}{"error": err.Error()})
		}
	}
}

// extractor builds the metadata extractor with the configured lookup service
func (e *env) extractor() *metadata.Extractor {
	lookup := newLookup(e.cfg, e.log)
	if lookup == nil {
		return metadata.NewExtractor(e.log)
	}
	return metadata.NewExtractor(e.log, metadata.WithLookup(lookup))
}

func newLookup(cfg *config.Config, log *logger.Logger) metadata.Lookup {
	timeout := cfg.LookupTimeout()
	switch strings.ToLower(cfg.Lookup.Provider) {
	case config.LookupGoogleBooks:
		return googlebooks.NewClient(googlebooks.ClientConfig{
			APIKey:     cfg.Lookup.APIKey,
			Timeout:    timeout,
			MaxRetries: cfg.Lookup.MaxRetries,
		}, log)
	case config.LookupOpenLibrary:
		return openlibrary.NewClient(openlibrary.ClientConfig{
			UserAgent:  cfg.Lookup.UserAgent,
			Timeout:    timeout,
			MaxRetries: cfg.Lookup.MaxRetries,
		}, log)
	case config.LookupHardcover:
		if cfg.Lookup.Token == "" {
			log.Warn("Hardcover lookup needs a token, lookups disabled", nil)
			return nil
		}
		return hardcover.NewClient(hardcover.ClientConfig{Timeout: timeout}, cfg.Lookup.Token, log)
	case config.LookupNone, "":
		return nil
	default:
		log.Warn("Unknown lookup provider, lookups disabled", map[string]interface{}{
			"provider": cfg.Lookup.Provider,
		})
		return nil
	}
}

// withEnv wraps a command action with environment setup and teardown
func withEnv(action func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return action(c, e)
	}
}

// matchingFiles returns the library files whose name contains fragment, case-insensitively
func matchingFiles(dir, fragment string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(fragment)
	var out []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.Contains(strings.ToLower(entry.Name()), needle) {
			out = append(out, filepath.Join(dir, entry.Name()))
		}
	}
	return out, nil
}
