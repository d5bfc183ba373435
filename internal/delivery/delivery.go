// Package delivery sends library books to the reading device.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Soumil-07/bkmgr/internal/config"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/models"
)

var (
	// ErrNoMatch is returned when no library file name contains the fragment
	ErrNoMatch = errors.New("no matching book")
	// ErrNotConfigured is returned when a real send has no email settings
	ErrNotConfigured = errors.New("email delivery is not configured")
)

// nativeFormats are read by the device as is; anything else is sent for conversion
var nativeFormats = map[string]bool{
	".pdf":  true,
	".mobi": true,
	".docx": true,
	".doc":  true,
}

// NeedsConversion reports whether the device must convert the file at path
func NeedsConversion(path string) bool {
	return !nativeFormats[strings.ToLower(filepath.Ext(path))]
}

// Store is the part of the catalog delivery reads and updates
type Store interface {
	Fetch(ctx context.Context, path string) (*models.CatalogEntry, error)
	MarkUploaded(ctx context.Context, path string) error
}

// Request is one book handed to the transport
type Request struct {
	Path    string
	Title   string
	Author  string
	Email   config.EmailConfig
	Convert bool
}

// Transport sends a book to the device
type Transport interface {
	Send(ctx context.Context, req Request) error
}

// Confirmer asks the user a yes/no question
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// SettingsFunc returns the email settings. It is only called for real sends;
// config.ErrConfigNotFound means no settings exist at all.
type SettingsFunc func() (*config.EmailConfig, error)

// Result describes what a delivery did
type Result struct {
	Path  string
	Title string
	// AlreadyUploaded is set when a dry run found the book uploaded already
	AlreadyUploaded bool
	// Declined is set when the user chose not to send the book again
	Declined bool
	// Sent is set when the transport delivered the book
	Sent bool
	// Converted is set when the book was sent for conversion
	Converted bool
	// MarkedUploaded is set when the uploaded flag was written
	MarkedUploaded bool
}

// Orchestrator picks a library book and delivers it
type Orchestrator struct {
	dir       string
	store     Store
	transport Transport
	confirm   Confirmer
	settings  SettingsFunc
	log       *logger.Logger
}

// NewOrchestrator creates an Orchestrator over the library directory dir
func NewOrchestrator(dir string, store Store, transport Transport, confirm Confirmer, settings SettingsFunc, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Get()
	}
	return &Orchestrator{
		dir:       dir,
		store:     store,
		transport: transport,
		confirm:   confirm,
		settings:  settings,
		log:       log.With(map[string]interface{}{"component": "delivery"}),
	}
}

// Deliver sends the first library book whose file name contains fragment
// (case-insensitively) and marks it uploaded.
//
// A dry run sends nothing but still marks a not yet uploaded book as
// uploaded; a dry run on an uploaded book changes nothing. A real run on an
// uploaded book asks before sending again.
func (o *Orchestrator) Deliver(ctx context.Context, fragment string, dryRun bool) (*Result, error) {
	path, err := o.match(fragment)
	if err != nil {
		return nil, err
	}

	entry, err := o.store.Fetch(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", filepath.Base(path), err)
	}

	res := &Result{Path: path, Title: entry.Metadata.Title}
	log := o.log.With(map[string]interface{}{
		"path":    path,
		"dry_run": dryRun,
	})

	if entry.Uploaded {
		if dryRun {
			res.AlreadyUploaded = true
			log.Debug("Already uploaded, nothing to do", nil)
			return res, nil
		}
		again, err := o.confirm.Confirm(fmt.Sprintf("The book %q has already been marked as uploaded. Upload again?", entry.Metadata.Title))
		if err != nil {
			return nil, err
		}
		if !again {
			res.Declined = true
			return res, nil
		}
	}

	if !dryRun {
		email, err := o.settings()
		if errors.Is(err, config.ErrConfigNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
		}
		if err != nil {
			return nil, err
		}

		req := Request{
			Path:    path,
			Title:   entry.Metadata.Title,
			Author:  entry.Metadata.Author(),
			Email:   *email,
			Convert: NeedsConversion(path),
		}
		log.Info("Sending book", map[string]interface{}{
			"title":   req.Title,
			"convert": req.Convert,
		})
		if err := o.transport.Send(ctx, req); err != nil {
			return nil, fmt.Errorf("failed to send %q: %w", req.Title, err)
		}
		res.Sent = true
		res.Converted = req.Convert
	}

	if err := o.store.MarkUploaded(ctx, path); err != nil {
		return res, fmt.Errorf("failed to mark %s uploaded: %w", filepath.Base(path), err)
	}
	res.MarkedUploaded = true
	return res, nil
}

// match returns the first file of the library whose name contains fragment
func (o *Orchestrator) match(fragment string) (string, error) {
	entries, err := os.ReadDir(o.dir)
	if err != nil {
		return "", fmt.Errorf("failed to read library directory: %w", err)
	}

	needle := strings.ToLower(fragment)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(strings.ToLower(e.Name()), needle) {
			return filepath.Abs(filepath.Join(o.dir, e.Name()))
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoMatch, fragment)
}
