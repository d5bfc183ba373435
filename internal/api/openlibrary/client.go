package openlibrary

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Soumil-07/bkmgr/internal/api"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/models"
	"github.com/Soumil-07/bkmgr/internal/util"
)

const (
	// DefaultBaseURL is the Open Library endpoint
	DefaultBaseURL = "https://openlibrary.org"
	// DefaultUserAgent identifies requests; Open Library asks clients to send one
	DefaultUserAgent = "bkmgr (https://github.com/Soumil-07/bkmgr)"
	// DefaultRateLimit keeps well below the documented request ceiling
	DefaultRateLimit = time.Second
)

// searchFields limits the search response to what is mapped
const searchFields = "title,author_name,first_publish_year,publish_date,language,subject,number_of_pages_median,ratings_average,isbn"

// languageCodes maps the MARC codes used by Open Library to two letter codes
var languageCodes = map[string]string{
	"eng": "en",
	"fre": "fr",
	"fra": "fr",
	"ger": "de",
	"deu": "de",
	"spa": "es",
	"ita": "it",
	"por": "pt",
	"rus": "ru",
	"jpn": "ja",
	"chi": "zh",
	"zho": "zh",
	"dut": "nl",
	"nld": "nl",
	"swe": "sv",
	"pol": "pl",
	"lat": "la",
	"gre": "el",
	"ell": "el",
}

// Client searches the Open Library catalog
type Client struct {
	baseURL string
	json    *util.JSONClient
	logger  *logger.Logger
}

// ClientConfig holds configuration for the Open Library client
type ClientConfig struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	RateLimit  time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

type searchResponse struct {
	NumFound int   `json:"numFound"`
	Docs     []doc `json:"docs"`
}

type doc struct {
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	Language         []string `json:"language"`
	Subject          []string `json:"subject"`
	Pages            int      `json:"number_of_pages_median"`
	RatingsAverage   float64  `json:"ratings_average"`
	ISBN             []string `json:"isbn"`
}

// NewClient creates an Open Library client
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	log = log.With(map[string]interface{}{"component": "openlibrary_client"})
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		json: &util.JSONClient{
			HTTP:       &http.Client{Timeout: cfg.Timeout},
			Limiter:    util.NewRateLimiter(cfg.RateLimit, 1, log),
			Header:     http.Header{"User-Agent": []string{cfg.UserAgent}},
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Log:        log,
		},
		logger: log,
	}
}

// LookupTitle returns the first search hit for title
func (c *Client) LookupTitle(ctx context.Context, title string) (*models.Metadata, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	q := url.Values{}
	q.Set("title", title)
	q.Set("limit", "1")
	q.Set("fields", searchFields)
	endpoint := c.baseURL + "/search.json?" + q.Encode()

	c.logger.Debug("Looking up title on Open Library", map[string]interface{}{
		"title": title,
	})

	var resp searchResponse
	if err := c.json.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("open library lookup for %q: %w", title, err)
	}
	if len(resp.Docs) == 0 {
		return nil, fmt.Errorf("open library lookup for %q: %w", title, api.ErrNoResults)
	}

	return toMetadata(resp.Docs[0]), nil
}

func toMetadata(d doc) *models.Metadata {
	md := &models.Metadata{
		Title:      d.Title,
		Authors:    d.AuthorName,
		PageCount:  d.Pages,
		Rating:     d.RatingsAverage,
		Categories: firstN(d.Subject, 5),
	}
	if d.FirstPublishYear > 0 {
		md.PublishedAt = time.Date(d.FirstPublishYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	if len(d.Language) > 0 {
		md.Language = languageCode(d.Language[0])
	}
	if len(d.ISBN) > 0 {
		md.Identifier = d.ISBN[0]
	}
	return md
}

// languageCode converts a MARC language code; unknown codes are dropped
func languageCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) == 2 {
		return code
	}
	return languageCodes[code]
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

