package util

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Soumil-07/bkmgr/internal/logger"
)

var (
	// ErrRateLimited is returned when the rate limit is exceeded
	ErrRateLimited = errors.New("rate limited")
	// DefaultRate is the default minimum time between requests
	DefaultRate = 200 * time.Millisecond
	// DefaultBurst is the default burst size
	DefaultBurst = 5
)

// RateLimiter is a token bucket that slows down when the remote service
// answers with 429 and recovers through ResetRate.
type RateLimiter struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	rate         time.Duration
	minRate      time.Duration
	maxRate      time.Duration
	lastRateDrop time.Time
	log          *logger.Logger
}

// NewRateLimiter creates a RateLimiter allowing one request per interval
// with the given burst.
func NewRateLimiter(interval time.Duration, burst int, log *logger.Logger) *RateLimiter {
	if interval <= 0 {
		interval = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if log == nil {
		log = logger.Get()
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Every(interval), burst),
		rate:    interval,
		minRate: interval,
		maxRate: 5 * time.Second,
		log:     log,
	}
}

// Wait blocks until a token is available or the context is cancelled
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// OnRateLimit increases the delay between requests and returns how long the
// caller should wait before retrying.
func (r *RateLimiter) OnRateLimit(retryAfter time.Duration) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	// back off harder on repeated limits
	if !r.lastRateDrop.IsZero() && now.Sub(r.lastRateDrop) < 5*time.Minute {
		r.rate = time.Duration(1.5 * float64(r.rate))
	} else {
		r.rate = time.Duration(1.2 * float64(r.rate))
	}
	if r.rate > r.maxRate {
		r.rate = r.maxRate
	}
	r.lastRateDrop = now
	r.limiter.SetLimit(rate.Every(r.rate))

	r.log.Warn("Rate limited, increasing delay between requests", map[string]interface{}{
		"new_rate":    r.rate.String(),
		"retry_after": retryAfter.String(),
	})

	if retryAfter > r.rate {
		return retryAfter
	}
	return r.rate
}

// ResetRate restores the initial rate
func (r *RateLimiter) ResetRate() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rate = r.minRate
	r.limiter.SetLimit(rate.Every(r.rate))
}

// GetRate returns the current minimum time between requests
func (r *RateLimiter) GetRate() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rate
}

// ParseRetryAfter reads a Retry-After header given either in seconds or as
// an HTTP date. Unparsable values yield zero.
func ParseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
