package metadata

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/Soumil-07/bkmgr/internal/cache"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/models"
)

// ErrUnknownFormat is returned when no metadata can be extracted from a file's format
var ErrUnknownFormat = errors.New("unknown book format")

// lookupCacheTTL bounds how long a lookup answer is reused within a process
const lookupCacheTTL = time.Hour

// Lookup queries a bibliographic service for the best match of a title
type Lookup interface {
	LookupTitle(ctx context.Context, title string) (*models.Metadata, error)
}

// Extractor resolves the metadata of a book file
type Extractor struct {
	lookup Lookup
	cache  cache.Cache[string, *models.Metadata]
	log    *logger.Logger
	now    func() time.Time
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLookup enables enrichment of incomplete records through l
func WithLookup(l Lookup) Option {
	return func(e *Extractor) {
		e.lookup = l
	}
}

// NewExtractor creates an Extractor
func NewExtractor(log *logger.Logger, opts ...Option) *Extractor {
	if log == nil {
		log = logger.Get()
	}
	e := &Extractor{
		log: log.With(map[string]interface{}{"component": "extractor"}),
		now: time.Now,
	}
	e.cache = cache.WithTTL(cache.NewMemoryCache[string, *models.Metadata](e.log), lookupCacheTTL)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve returns the metadata of the book at path, or ErrUnknownFormat
// when the format carries no metadata this package understands.
func (e *Extractor) Resolve(ctx context.Context, path string) (*models.Metadata, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
	default:
		return nil, ErrUnknownFormat
	}

	rec, err := readEPUB(path)
	if err != nil {
		return nil, err
	}
	md := rec.md

	hasDate := false
	if rec.rawDate != "" {
		if t, err := ParseDate(rec.rawDate); err == nil {
			md.PublishedAt = t
			hasDate = true
		} else {
			e.log.Warn("Ignoring unparsable publication date", map[string]interface{}{
				"path": path,
				"date": rec.rawDate,
			})
		}
	}
	if !hasDate {
		md.PublishedAt = e.now()
	}

	if e.lookup != nil && (len(md.Authors) == 0 || !hasDate || md.Description == "") {
		e.enrich(ctx, path, &md)
	}

	md.Authors = NormalizeAuthors(md.Authors)
	return &md, nil
}

// enrich fills md from the lookup service. Failures keep the local record.
func (e *Extractor) enrich(ctx context.Context, path string, md *models.Metadata) {
	key := strings.ToLower(strings.TrimSpace(md.Title))

	candidate, ok := e.cache.Get(key)
	if !ok {
		var err error
		candidate, err = e.lookup.LookupTitle(ctx, md.Title)
		if err != nil {
			e.log.Warn("Metadata lookup failed, keeping embedded metadata", map[string]interface{}{
				"path":  path,
				"title": md.Title,
				"error": err.Error(),
			})
			return
		}
		e.cache.Set(key, candidate, lookupCacheTTL)
	}

	merge(md, candidate)
	e.log.Debug("Enriched metadata from lookup", map[string]interface{}{
		"path":  path,
		"title": md.Title,
	})
}

// merge copies every non-empty candidate field over md
func merge(md, c *models.Metadata) {
	if c.Title != "" {
		md.Title = c.Title
	}
	if len(c.Authors) > 0 {
		md.Authors = append([]string(nil), c.Authors...)
	}
	if c.Description != "" {
		md.Description = c.Description
	}
	if !c.PublishedAt.IsZero() {
		md.PublishedAt = c.PublishedAt
	}
	if c.PageCount > 0 {
		md.PageCount = c.PageCount
	}
	if len(c.Categories) > 0 {
		md.Categories = append([]string(nil), c.Categories...)
	}
	if c.Language != "" {
		md.Language = strings.ToLower(c.Language)
	}
	if c.Rating > 0 {
		md.Rating = c.Rating
	}
}
