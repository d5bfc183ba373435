package models

import (
	"strings"
	"time"
)

// Metadata describes a book independently of where its file lives
type Metadata struct {
	Title       string    `json:"title"`
	Authors     []string  `json:"authors"`
	Language    string    `json:"language"`
	PublishedAt time.Time `json:"published_at"`
	Identifier  string    `json:"identifier,omitempty"`
	Description string    `json:"description,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	PageCount   int       `json:"page_count,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
}

// Author returns the authors as a single display string
func (m *Metadata) Author() string {
	return strings.Join(m.Authors, ", ")
}

// CatalogEntry links a file on disk to its metadata and status flags
type CatalogEntry struct {
	Path       string   `json:"path"`
	MetadataID int64    `json:"metadata_id"`
	Metadata   Metadata `json:"metadata"`
	Uploaded   bool     `json:"uploaded"`
	Read       bool     `json:"read"`
}
