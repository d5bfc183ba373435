// Command bkmgr manages a local e-book library and sends books to an e-reader by email.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"github.com/Soumil-07/bkmgr/internal/database"
	"github.com/Soumil-07/bkmgr/internal/delivery"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/sync"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	app := newApp(os.Stdin, os.Stdout)
	err := app.Run(os.Args)
	os.Exit(exitCode(err, os.Stderr))
}

// exitCode reports err and maps it to the process exit status. Lookups that
// found nothing are warnings, not failures.
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if isBenign(err) {
		color.New(color.FgYellow).Fprintf(stderr, "Warning: %v\n", err)
		return 0
	}
	logger.Get().Error("Command failed", map[string]interface{}{
		"error": err.Error(),
	})
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func isBenign(err error) bool {
	return errors.Is(err, delivery.ErrNoMatch) ||
		errors.Is(err, sync.ErrAlreadyInLibrary) ||
		errors.Is(err, sync.ErrSourceNotFound) ||
		errors.Is(err, database.ErrNotFound)
}
