package database

import (
	"errors"
	"fmt"
)

// SchemaVersion is the catalog layout written by this version, kept in PRAGMA user_version
const SchemaVersion = 2

// ErrSchemaTooNew is returned for stores written by a newer release
var ErrSchemaTooNew = errors.New("catalog schema is newer than this release supports")

const schema = `
CREATE TABLE IF NOT EXISTS metadata (
    id          INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    title       TEXT NOT NULL,
    author      TEXT NOT NULL,
    language    TEXT NOT NULL,
    created_at  TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    categories  TEXT NOT NULL DEFAULT '[]',
    page_count  INTEGER NOT NULL DEFAULT 0,
    rating      REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS books (
    path       TEXT NOT NULL PRIMARY KEY,
    isUploaded BOOLEAN NOT NULL CHECK (isUploaded IN (0, 1)),
    metadata   INTEGER,
    isRead     BOOLEAN NOT NULL DEFAULT 0,
    FOREIGN KEY(metadata) REFERENCES metadata(id)
);
`

// legacyColumns are the columns earlier layouts lacked, with the DDL that adds them
var legacyColumns = []struct {
	table  string
	column string
	ddl    string
}{
	{"books", "isRead", "ALTER TABLE books ADD COLUMN isRead BOOLEAN NOT NULL DEFAULT 0"},
	{"metadata", "description", "ALTER TABLE metadata ADD COLUMN description TEXT NOT NULL DEFAULT ''"},
	{"metadata", "categories", "ALTER TABLE metadata ADD COLUMN categories TEXT NOT NULL DEFAULT '[]'"},
	{"metadata", "page_count", "ALTER TABLE metadata ADD COLUMN page_count INTEGER NOT NULL DEFAULT 0"},
	{"metadata", "rating", "ALTER TABLE metadata ADD COLUMN rating REAL NOT NULL DEFAULT 0"},
}

// EnsureSchema creates the catalog tables if needed and upgrades older
// layouts in place. It is safe to call on every start.
func (d *Database) EnsureSchema() error {
	version, err := d.userVersion()
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("%w: found version %d, supported %d", ErrSchemaTooNew, version, SchemaVersion)
	}
	if version == SchemaVersion {
		return nil
	}

	if err := d.db.Exec(schema).Error; err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	migrator := d.db.Migrator()
	for _, c := range legacyColumns {
		if migrator.HasColumn(c.table, c.column) {
			continue
		}
		d.logger.Info("Upgrading catalog schema", map[string]interface{}{
			"table":  c.table,
			"column": c.column,
		})
		if err := d.db.Exec(c.ddl).Error; err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", c.table, c.column, err)
		}
	}

	if err := d.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)).Error; err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

func (d *Database) userVersion() (int, error) {
	var version int
	if err := d.db.Raw("PRAGMA user_version").Scan(&version).Error; err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
