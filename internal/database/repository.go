package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/Soumil-07/bkmgr/internal/models"
)

var (
	// ErrNotFound is returned when a path has no catalog entry
	ErrNotFound = errors.New("catalog entry not found")
	// ErrAlreadyExists is returned when inserting a path that is already cataloged
	ErrAlreadyExists = errors.New("catalog entry already exists")
)

// authorSeparator joins normalized author names in the author column.
// Normalized names never contain a comma.
const authorSeparator = ", "

// Exists reports whether path has a catalog entry
func (d *Database) Exists(ctx context.Context, path string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Book{}).Where("path = ?", path).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check catalog entry: %w", err)
	}
	return count > 0, nil
}

// Insert stores md and a catalog entry for path in one transaction and
// returns the new metadata id. A duplicate path fails with ErrAlreadyExists
// and leaves no metadata row behind.
func (d *Database) Insert(ctx context.Context, path string, md *models.Metadata) (int64, error) {
	row := Metadata{
		Title:       md.Title,
		Author:      strings.Join(md.Authors, authorSeparator),
		Language:    md.Language,
		PublishedAt: formatTimestamp(md.PublishedAt),
		Description: md.Description,
		Categories:  append([]string{}, md.Categories...),
		PageCount:   md.PageCount,
		Rating:      md.Rating,
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("failed to insert metadata: %w", err)
		}

		book := Book{
			Path:       path,
			IsUploaded: false,
			MetadataID: row.ID,
			IsRead:     false,
		}
		if err := tx.Create(&book).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("failed to insert catalog entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	d.logger.Debug("Inserted catalog entry", map[string]interface{}{
		"path":        path,
		"metadata_id": row.ID,
	})
	return row.ID, nil
}

// Fetch returns the catalog entry for path joined with its metadata
func (d *Database) Fetch(ctx context.Context, path string) (*models.CatalogEntry, error) {
	db := d.db.WithContext(ctx)

	var book Book
	if err := db.Where("path = ?", path).Take(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to get catalog entry: %w", err)
	}

	var row Metadata
	if err := db.Where("id = ?", book.MetadataID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: metadata %d for %s", ErrNotFound, book.MetadataID, path)
		}
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}

	entry := &models.CatalogEntry{
		Path:       book.Path,
		MetadataID: row.ID,
		Uploaded:   book.IsUploaded,
		Read:       book.IsRead,
		Metadata: models.Metadata{
			Title:       row.Title,
			Authors:     splitAuthors(row.Author),
			Language:    row.Language,
			Description: row.Description,
			Categories:  row.Categories,
			PageCount:   row.PageCount,
			Rating:      row.Rating,
		},
	}

	published, err := parseTimestamp(row.PublishedAt)
	if err != nil {
		d.logger.Warn("Unreadable publication date in catalog", map[string]interface{}{
			"path":  path,
			"value": row.PublishedAt,
		})
	} else {
		entry.Metadata.PublishedAt = published
	}

	return entry, nil
}

// MarkUploaded sets the uploaded flag of path. Marking an uploaded entry again is a no-op.
func (d *Database) MarkUploaded(ctx context.Context, path string) error {
	result := d.db.WithContext(ctx).Model(&Book{}).Where("path = ?", path).Update("isUploaded", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark catalog entry uploaded: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return nil
}

// Count returns the number of catalog entries
func (d *Database) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&Book{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count catalog entries: %w", err)
	}
	return count, nil
}

func splitAuthors(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, authorSeparator)
	authors := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			authors = append(authors, p)
		}
	}
	return authors
}

// isUniqueViolation recognizes primary key and unique constraint failures.
// The pure Go driver's errors are not translated by gorm, so the message is checked too.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
