// Package catalog lists the library with its catalog metadata.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Soumil-07/bkmgr/internal/database"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/models"
)

// Store fetches catalog entries by path
type Store interface {
	Fetch(ctx context.Context, path string) (*models.CatalogEntry, error)
}

// Filter selects catalog entries. Every set predicate must hold.
type Filter struct {
	// Author is a case-sensitive substring of the author string
	Author string
	// Title is a case-insensitive substring of the title
	Title string
	// UnreadOnly hides books marked read
	UnreadOnly bool
}

// Match reports whether e satisfies every predicate of f
func (f Filter) Match(e *models.CatalogEntry) bool {
	if f.Author != "" && !strings.Contains(e.Metadata.Author(), f.Author) {
		return false
	}
	if f.Title != "" && !strings.Contains(strings.ToLower(e.Metadata.Title), strings.ToLower(f.Title)) {
		return false
	}
	if f.UnreadOnly && e.Read {
		return false
	}
	return true
}

// Engine answers list queries over the library directory
type Engine struct {
	store Store
	dir   string
	log   *logger.Logger
}

// NewEngine creates an Engine over the library directory dir
func NewEngine(store Store, dir string, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Get()
	}
	return &Engine{store: store, dir: dir, log: log}
}

// List returns the cataloged files of the library matching f, in directory
// listing order. Files that were never synchronized are left out.
func (e *Engine) List(ctx context.Context, f Filter) ([]*models.CatalogEntry, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read library directory: %w", err)
	}

	var rows []*models.CatalogEntry
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path, err := filepath.Abs(filepath.Join(e.dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		ce, err := e.store.Fetch(ctx, path)
		if errors.Is(err, database.ErrNotFound) {
			e.log.Debug("Skipping uncataloged file", map[string]interface{}{"path": path})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
		}

		if f.Match(ce) {
			rows = append(rows, ce)
		}
	}
	return rows, nil
}

// Size returns the total size of the library directory
func (e *Engine) Size() (int64, error) {
	return DirSize(e.dir)
}

// DirSize sums the sizes of all regular files below dir, catalog or not
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure %s: %w", dir, err)
	}
	return total, nil
}
