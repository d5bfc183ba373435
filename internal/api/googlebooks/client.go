package googlebooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Soumil-07/bkmgr/internal/api"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/metadata"
	"github.com/Soumil-07/bkmgr/internal/models"
	"github.com/Soumil-07/bkmgr/internal/util"
)

const (
	// DefaultBaseURL is the Google Books API endpoint
	DefaultBaseURL = "https://www.googleapis.com/books/v1"
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
	// DefaultRateLimit is the minimum time between requests
	DefaultRateLimit = 100 * time.Millisecond
)

// Client looks up volumes on Google Books
type Client struct {
	baseURL string
	apiKey  string
	json    *util.JSONClient
	logger  *logger.Logger
}

// ClientConfig holds configuration for the Google Books client
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type volumesResponse struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo volumeInfo `json:"volumeInfo"`
	} `json:"items"`
}

type volumeInfo struct {
	Title               string   `json:"title"`
	Subtitle            string   `json:"subtitle"`
	Authors             []string `json:"authors"`
	PublishedDate       string   `json:"publishedDate"`
	Description         string   `json:"description"`
	PageCount           int      `json:"pageCount"`
	Categories          []string `json:"categories"`
	Language            string   `json:"language"`
	AverageRating       float64  `json:"averageRating"`
	IndustryIdentifiers []struct {
		Type       string `json:"type"`
		Identifier string `json:"identifier"`
	} `json:"industryIdentifiers"`
}

// NewClient creates a Google Books client
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	log = log.With(map[string]interface{}{"component": "googlebooks_client"})
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		json: &util.JSONClient{
			HTTP:       &http.Client{Timeout: cfg.Timeout},
			Limiter:    util.NewRateLimiter(DefaultRateLimit, 5, log),
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Log:        log,
		},
		logger: log,
	}
}

// LookupTitle returns the best matching volume for title
func (c *Client) LookupTitle(ctx context.Context, title string) (*models.Metadata, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	q := url.Values{}
	q.Set("q", "intitle:"+title)
	q.Set("maxResults", "1")
	q.Set("printType", "books")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	endpoint := c.baseURL + "/volumes?" + q.Encode()

	c.logger.Debug("Looking up title on Google Books", map[string]interface{}{
		"title": title,
	})

	var resp volumesResponse
	if err := c.json.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("google books lookup for %q: %w", title, err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("google books lookup for %q: %w", title, api.ErrNoResults)
	}

	return toMetadata(resp.Items[0].VolumeInfo), nil
}

func toMetadata(v volumeInfo) *models.Metadata {
	md := &models.Metadata{
		Title:       v.Title,
		Authors:     v.Authors,
		Description: v.Description,
		PageCount:   v.PageCount,
		Categories:  v.Categories,
		Language:    strings.ToLower(v.Language),
		Rating:      v.AverageRating,
	}
	if t, err := metadata.ParseDate(v.PublishedDate); err == nil {
		md.PublishedAt = t
	}
	for _, id := range v.IndustryIdentifiers {
		if id.Type == "ISBN_13" {
			md.Identifier = id.Identifier
			break
		}
		if md.Identifier == "" {
			md.Identifier = id.Identifier
		}
	}
	return md
}
