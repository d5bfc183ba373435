package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Soumil-07/bkmgr/internal/database"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/metadata"
	"github.com/Soumil-07/bkmgr/internal/models"
)

// Error definitions
var (
	ErrSourceNotFound   = errors.New("source file not found")
	ErrAlreadyInLibrary = errors.New("file already in library")
)

// Store is the part of the catalog the synchronizer writes to
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	Insert(ctx context.Context, path string, md *models.Metadata) (int64, error)
}

// Resolver extracts metadata from a file, returning metadata.ErrUnknownFormat
// when the format carries none.
type Resolver interface {
	Resolve(ctx context.Context, path string) (*models.Metadata, error)
}

// Fallback supplies metadata for files the Resolver cannot read
type Fallback interface {
	Provide(ctx context.Context, path string) (*models.Metadata, error)
}

// Summary describes one synchronization run
type Summary struct {
	RunID    string
	Scanned  int
	Added    int
	Skipped  int
	Started  time.Time
	Duration time.Duration
}

// Service reconciles the library directory with the catalog
type Service struct {
	store    Store
	resolver Resolver
	fallback Fallback
	log      *logger.Logger
}

// NewService creates a new sync service
func NewService(store Store, resolver Resolver, fallback Fallback, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		fallback: fallback,
		log:      log,
	}
}

// Sync catalogs every file directly under dir that is not cataloged yet.
// Cataloged paths are never re-resolved, so a second run over an unchanged
// directory writes nothing. An error from the fallback aborts the run; files
// inserted before it stay inserted.
func (s *Service) Sync(ctx context.Context, dir string) (*Summary, error) {
	summary := &Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	log := s.log.With(map[string]interface{}{
		"run_id": summary.RunID,
		"dir":    dir,
	})

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read library directory: %w", err)
	}

	log.Debug("Starting synchronization", map[string]interface{}{
		"entries": len(entries),
	})

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if entry.IsDir() {
			continue
		}

		path, err := filepath.Abs(filepath.Join(dir, entry.Name()))
		if err != nil {
			return summary, fmt.Errorf("failed to resolve %s: %w", entry.Name(), err)
		}

		summary.Scanned++
		added, err := s.syncFile(ctx, log, path)
		if err != nil {
			summary.Duration = time.Since(summary.Started)
			return summary, err
		}
		if added {
			summary.Added++
		} else {
			summary.Skipped++
		}
	}

	summary.Duration = time.Since(summary.Started)
	log.Info("Synchronization finished", map[string]interface{}{
		"scanned":     summary.Scanned,
		"added":       summary.Added,
		"skipped":     summary.Skipped,
		"duration_ms": summary.Duration.Milliseconds(),
	})
	return summary, nil
}

// SyncFile catalogs a single file. It reports whether a new entry was written.
func (s *Service) SyncFile(ctx context.Context, path string) (bool, error) {
	return s.syncFile(ctx, s.log, path)
}

func (s *Service) syncFile(ctx context.Context, log *logger.Logger, path string) (bool, error) {
	exists, err := s.store.Exists(ctx, path)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", path, err)
	}
	if exists {
		log.Debug("Already cataloged", map[string]interface{}{"path": path})
		return false, nil
	}

	md, err := s.resolver.Resolve(ctx, path)
	switch {
	case errors.Is(err, metadata.ErrUnknownFormat):
		if s.fallback == nil {
			return false, fmt.Errorf("no metadata for %s: %w", path, err)
		}
		md, err = s.fallback.Provide(ctx, path)
		if err != nil {
			return false, err
		}
	case err != nil:
		return false, fmt.Errorf("failed to read metadata of %s: %w", path, err)
	}

	md.Authors = metadata.NormalizeAuthors(md.Authors)

	id, err := s.store.Insert(ctx, path, md)
	if errors.Is(err, database.ErrAlreadyExists) {
		// another process cataloged it between the check and the insert
		log.Debug("Cataloged concurrently", map[string]interface{}{"path": path})
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to catalog %s: %w", path, err)
	}

	log.Info("Cataloged book", map[string]interface{}{
		"path":        path,
		"metadata_id": id,
		"title":       md.Title,
		"author":      md.Author(),
	})
	return true, nil
}

// Add copies src into the library directory dir and catalogs the copy. It
// returns the path of the new file.
func (s *Service) Add(ctx context.Context, dir, src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, src)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create library directory: %w", err)
	}

	dst, err := filepath.Abs(filepath.Join(dir, filepath.Base(src)))
	if err != nil {
		return "", err
	}
	if err := copyFile(src, dst); err != nil {
		return "", err
	}

	if _, err := s.SyncFile(ctx, dst); err != nil {
		return dst, err
	}
	return dst, nil
}

// copyFile copies src to dst, refusing to overwrite an existing dst
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyInLibrary, dst)
		}
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
