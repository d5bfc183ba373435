package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/Soumil-07/bkmgr/internal/catalog"
	"github.com/Soumil-07/bkmgr/internal/config"
	"github.com/Soumil-07/bkmgr/internal/delivery"
	"github.com/Soumil-07/bkmgr/internal/mail"
	"github.com/Soumil-07/bkmgr/internal/metadata"
	"github.com/Soumil-07/bkmgr/internal/prompt"
	"github.com/Soumil-07/bkmgr/internal/sync"
	"github.com/Soumil-07/bkmgr/internal/sync/state"
)

var (
	infoColor = color.New(color.FgBlue)
	okColor   = color.New(color.FgGreen)
)

var errUsage = errors.New("wrong number of arguments")

// positionalArgs applies command flags that follow a positional argument,
// which the parser leaves in Args, and returns the remaining positionals.
func positionalArgs(c *cli.Context) ([]string, error) {
	args := c.Args().Slice()
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			positional = append(positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		flag := commandFlag(c.Command, name)
		if flag == nil {
			return nil, fmt.Errorf("%w: unknown flag %s", errUsage, arg)
		}
		if !hasValue {
			if _, ok := flag.(*cli.BoolFlag); ok {
				value = "true"
			} else if i+1 < len(args) {
				i++
				value = args[i]
			} else {
				return nil, fmt.Errorf("%w: flag %s needs a value", errUsage, arg)
			}
		}
		if err := c.Set(flag.Names()[0], value); err != nil {
			return nil, fmt.Errorf("%w: %v", errUsage, err)
		}
	}
	return positional, nil
}

func commandFlag(cmd *cli.Command, name string) cli.Flag {
	if cmd == nil {
		return nil
	}
	for _, f := range cmd.Flags {
		for _, n := range f.Names() {
			if n == name {
				return f
			}
		}
	}
	return nil
}

// requireArgs returns exactly n positional arguments, printing the command
// help otherwise
func requireArgs(c *cli.Context, n int) ([]string, error) {
	args, err := positionalArgs(c)
	if err == nil && len(args) != n {
		err = fmt.Errorf("%w: %s expects %d, got %d", errUsage, c.Command.Name, n, len(args))
	}
	if err != nil {
		_ = cli.ShowCommandHelp(c, c.Command.Name)
		return nil, err
	}
	return args, nil
}

func syncService(e *env) (*sync.Service, error) {
	db, err := e.store()
	if err != nil {
		return nil, err
	}
	fallback := prompt.NewMetadataFallback(e.prompt)
	return sync.NewService(db, e.extractor(), fallback, e.log), nil
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Copy a book into the library and catalog it",
		ArgsUsage: "<path>",
		Action: withEnv(func(c *cli.Context, e *env) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			svc, err := syncService(e)
			if err != nil {
				return err
			}

			dst, err := svc.Add(c.Context, e.library, args[0])
			if err != nil {
				return err
			}
			okColor.Fprintf(e.out, "Added %q to your library.\n", filepath.Base(dst))
			return nil
		}),
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Catalog every book in the library that is not cataloged yet",
		Action: withEnv(func(c *cli.Context, e *env) error {
			svc, err := syncService(e)
			if err != nil {
				return err
			}

			okColor.Fprintf(e.out, "Syncing books in %s...\n", e.library)
			summary, syncErr := svc.Sync(c.Context, e.library)
			if summary != nil {
				recordRun(e, summary, syncErr != nil)
			}
			if syncErr != nil {
				return syncErr
			}

			fmt.Fprintf(e.out, "%d new, %d already cataloged.\n", summary.Added, summary.Skipped)
			return nil
		}),
	}
}

// recordRun stores the run in the sync state file. Failures only warn.
func recordRun(e *env, summary *sync.Summary, failed bool) {
	path := state.Path(e.home)
	st, err := state.LoadState(path)
	if err != nil {
		e.log.Warn("Ignoring unreadable sync state", map[string]interface{}{"error": err.Error()})
		st = state.NewState()
	}
	st.RecordRun(state.Run{
		ID:       summary.RunID,
		Started:  summary.Started.Unix(),
		Scanned:  summary.Scanned,
		Added:    summary.Added,
		Skipped:  summary.Skipped,
		Failed:   failed,
		Duration: summary.Duration.String(),
	})
	if err := st.Save(path); err != nil {
		e.log.Warn("Failed to save sync state", map[string]interface{}{"error": err.Error()})
	}
}

func uploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Email a book to your e-reader",
		ArgsUsage: "[--dry-run] <book>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Mark the book uploaded without sending it",
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			db, err := e.store()
			if err != nil {
				return err
			}

			settings := func() (*config.EmailConfig, error) {
				email, err := e.cfg.RequireEmail()
				if errors.Is(err, config.ErrConfigNotFound) {
					if werr := config.WriteStub(e.cfg.Path); werr != nil {
						e.log.Warn("Failed to write config skeleton", map[string]interface{}{"error": werr.Error()})
					} else {
						fmt.Fprintf(e.out, "Could not find config at %q. Created a skeleton config file, fill it in and try again.\n", e.cfg.Path)
					}
				}
				return email, err
			}

			o := delivery.NewOrchestrator(e.library, db, mail.NewSender(e.log), e.prompt, settings, e.log)
			res, err := o.Deliver(c.Context, args[0], c.Bool("dry-run"))
			if err != nil {
				return err
			}

			switch {
			case res.AlreadyUploaded:
				fmt.Fprintf(e.out, "%q is already marked as uploaded.\n", res.Title)
			case res.Declined:
				fmt.Fprintln(e.out, "Skipped.")
			case res.Sent:
				okColor.Fprintf(e.out, "Emailed %q to your device.\n", res.Title)
			default:
				infoColor.Fprintf(e.out, "Marked %q as uploaded (dry run).\n", res.Title)
			}
			return nil
		}),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List cataloged books",
		ArgsUsage: "[--author NAME] [--unread=false] [<title>]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "author",
				Usage: "Only books whose author contains `NAME`",
			},
			&cli.BoolFlag{
				Name:  "unread",
				Usage: "Only unread books (--unread=false shows all)",
				Value: true,
			},
		},
		Action: withEnv(func(c *cli.Context, e *env) error {
			args, err := positionalArgs(c)
			if err == nil && len(args) > 1 {
				err = fmt.Errorf("%w: list expects at most 1, got %d", errUsage, len(args))
			}
			if err != nil {
				_ = cli.ShowCommandHelp(c, c.Command.Name)
				return err
			}
			var title string
			if len(args) == 1 {
				title = args[0]
			}

			db, err := e.store()
			if err != nil {
				return err
			}

			engine := catalog.NewEngine(db, e.library, e.log)
			rows, err := engine.List(c.Context, catalog.Filter{
				Author:     c.String("author"),
				Title:      title,
				UnreadOnly: c.Bool("unread"),
			})
			if err != nil {
				return err
			}
			size, err := engine.Size()
			if err != nil {
				return err
			}

			return catalog.Render(e.out, rows, size, catalog.Widths{
				Title:  e.cfg.Display.TitleWidth,
				Author: e.cfg.Display.AuthorWidth,
			})
		}),
	}
}

func metadataEditCommand() *cli.Command {
	return &cli.Command{
		Name:      "metadata-edit",
		Usage:     "Edit the title stored inside matching books",
		ArgsUsage: "<book>",
		Action: withEnv(func(c *cli.Context, e *env) error {
			args, err := requireArgs(c, 1)
			if err != nil {
				return err
			}
			paths, err := matchingFiles(e.library, args[0])
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("%w: %q", delivery.ErrNoMatch, args[0])
			}

			for _, path := range paths {
				title, err := metadata.ReadTitle(path)
				if errors.Is(err, metadata.ErrUnknownFormat) {
					e.log.Warn("Skipping book without editable metadata", map[string]interface{}{"path": path})
					continue
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(e.out, "Title: %s\n", title)
				newTitle, err := e.prompt.Line("Enter new title (blank for no change): ")
				if err != nil {
					return err
				}
				if newTitle == "" {
					continue
				}
				if err := metadata.EditTitle(path, newTitle); err != nil {
					return err
				}
				okColor.Fprintf(e.out, "Updated %s\n", filepath.Base(path))
			}
			return nil
		}),
	}
}

func configureCommand() *cli.Command {
	return &cli.Command{
		Name:  "configure",
		Usage: "Write the email settings to the config file",
		Action: withEnv(func(c *cli.Context, e *env) error {
			cfg := e.cfg
			p := e.prompt

			ask := func(label, current string) (string, error) {
				q := label + ": "
				if current != "" {
					q = fmt.Sprintf("%s [%s]: ", label, current)
				}
				v, err := p.Line(q)
				if err != nil || v == "" {
					return current, err
				}
				return v, nil
			}

			var err error
			if cfg.Email.SMTP, err = ask("SMTP host", cfg.Email.SMTP); err != nil {
				return err
			}
			port, err := ask("SMTP port", strconv.Itoa(cfg.Email.Port))
			if err != nil {
				return err
			}
			if cfg.Email.Port, err = strconv.Atoi(strings.TrimSpace(port)); err != nil {
				return fmt.Errorf("invalid port %q: %w", port, err)
			}
			if cfg.Email.Username, err = ask("Username", cfg.Email.Username); err != nil {
				return err
			}
			password, err := p.Password("Password: ")
			if err != nil {
				return err
			}
			if password != "" {
				cfg.Email.Password = password
			}
			if cfg.Email.From, err = ask("From address", cfg.Email.From); err != nil {
				return err
			}
			if cfg.Email.To, err = ask("E-reader address", cfg.Email.To); err != nil {
				return err
			}

			if err := cfg.Email.Validate(); err != nil {
				return err
			}
			if err := config.Save(cfg.Path, cfg); err != nil {
				return err
			}
			okColor.Fprintf(e.out, "Saved settings to %s\n", cfg.Path)
			return nil
		}),
	}
}
