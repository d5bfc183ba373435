package hardcover

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hasura/go-graphql-client"

	"github.com/Soumil-07/bkmgr/internal/api"
	"github.com/Soumil-07/bkmgr/internal/logger"
	"github.com/Soumil-07/bkmgr/internal/metadata"
	"github.com/Soumil-07/bkmgr/internal/models"
	"github.com/Soumil-07/bkmgr/internal/util"
)

const (
	// DefaultBaseURL is the default base URL for the Hardcover API
	DefaultBaseURL = "https://api.hardcover.app/v1/graphql"
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 30 * time.Second
	// DefaultRateLimit is the default minimum time between requests
	DefaultRateLimit = time.Second
	// DefaultBurst is the default burst size for rate limiting
	DefaultBurst = 1
)

// ClientConfig holds configuration for the Hardcover client
type ClientConfig struct {
	// BaseURL is the GraphQL endpoint (default: DefaultBaseURL)
	BaseURL string
	// Timeout specifies a time limit for requests (default: DefaultTimeout)
	Timeout time.Duration
	// RateLimit specifies the minimum time between requests (default: DefaultRateLimit)
	RateLimit time.Duration
}

// headerAddingTransport is an http.RoundTripper that adds the required headers
// for authenticating with the Hardcover API.
type headerAddingTransport struct {
	token string
	rt    http.RoundTripper
}

// RoundTrip implements the http.RoundTripper interface.
func (t *headerAddingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", authHeader(t.token))
	req.Header.Set("Content-Type", "application/json")
	return t.rt.RoundTrip(req)
}

// authHeader returns the token with a Bearer prefix
func authHeader(token string) string {
	token = strings.TrimSpace(token)
	if token != "" && !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	return token
}

// Client looks up books on Hardcover
type Client struct {
	gqlClient   *graphql.Client
	rateLimiter *util.RateLimiter
	logger      *logger.Logger
}

// bookQuery is the title lookup. Nullable columns are pointers.
type bookQuery struct {
	Books []struct {
		Title         *string  `graphql:"title"`
		Description   *string  `graphql:"description"`
		ReleaseDate   *string  `graphql:"release_date"`
		Pages         *int     `graphql:"pages"`
		Rating        *float64 `graphql:"rating"`
		Contributions []struct {
			Author struct {
				Name string `graphql:"name"`
			} `graphql:"author"`
		} `graphql:"contributions"`
		Taggings []struct {
			Tag struct {
				Tag string `graphql:"tag"`
			} `graphql:"tag"`
		} `graphql:"taggings(limit: 5)"`
	} `graphql:"books(where: {title: {_eq: $title}}, order_by: {users_count: desc}, limit: 1)"`
}

// NewClient creates a Hardcover client authenticating with token
func NewClient(cfg ClientConfig, token string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Get()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}

	childLogger := log.With(map[string]interface{}{
		"component": "hardcover_client",
	})

	authClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &headerAddingTransport{
			token: token,
			rt:    http.DefaultTransport,
		},
	}

	childLogger.Debug("Created new Hardcover client", map[string]interface{}{
		"base_url": cfg.BaseURL,
		"timeout":  cfg.Timeout.String(),
	})

	return &Client{
		gqlClient:   graphql.NewClient(cfg.BaseURL, authClient),
		rateLimiter: util.NewRateLimiter(cfg.RateLimit, DefaultBurst, childLogger),
		logger:      childLogger,
	}
}

// LookupTitle returns the most popular book whose title matches exactly
func (c *Client) LookupTitle(ctx context.Context, title string) (*models.Metadata, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	c.logger.Debug("Looking up title on Hardcover", map[string]interface{}{
		"title": title,
	})

	var q bookQuery
	if err := c.gqlClient.Query(ctx, &q, map[string]interface{}{"title": title}); err != nil {
		return nil, fmt.Errorf("hardcover lookup for %q: %w", title, err)
	}
	if len(q.Books) == 0 {
		return nil, fmt.Errorf("hardcover lookup for %q: %w", title, api.ErrNoResults)
	}

	b := q.Books[0]
	md := &models.Metadata{
		Title:       safeString(b.Title),
		Description: safeString(b.Description),
	}
	if b.Pages != nil {
		md.PageCount = *b.Pages
	}
	if b.Rating != nil {
		md.Rating = *b.Rating
	}
	if t, err := metadata.ParseDate(safeString(b.ReleaseDate)); err == nil {
		md.PublishedAt = t
	}
	for _, contrib := range b.Contributions {
		if name := strings.TrimSpace(contrib.Author.Name); name != "" {
			md.Authors = append(md.Authors, name)
		}
	}
	for _, tagging := range b.Taggings {
		if tag := strings.TrimSpace(tagging.Tag.Tag); tag != "" {
			md.Categories = append(md.Categories, tag)
		}
	}
	return md, nil
}

// safeString is a helper function to safely get a string value from a string pointer
func safeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
