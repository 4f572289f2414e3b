// ratelimit.go - Fixed window request limiting with pluggable counters

package ratelimit

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"go-nutri-backend/logger"
)

// Store counts hits per key inside a window.
type Store interface {
	// Hit adds one hit to key and returns the count so far in the current
	// window and when that window ends. The window starts on the first hit.
	Hit(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Result is the outcome of one check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Limiter struct {
	name   string
	store  Store
	limit  int
	window time.Duration
}

// New builds a limiter allowing limit hits per window. name namespaces the
// keys so several limiters can share a store.
func New(name string, store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{name: name, store: store, limit: limit, window: window}
}

// Presets
func Login(s Store) *Limiter     { return New("login", s, 5, 15*time.Minute) }
func Register(s Store) *Limiter  { return New("register", s, 3, time.Hour) }
func TwoFactor(s Store) *Limiter { return New("2fa", s, 10, 5*time.Minute) }
func API(s Store) *Limiter       { return New("api", s, 100, time.Minute) }

// Allow records a hit for key.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	count, resetAt, err := l.store.Hit(ctx, l.name+":"+key, l.window)
	if err != nil {
		return Result{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

// KeyFunc picks the identity a request is counted under.
type KeyFunc func(c *gin.Context) string

// ClientKey identifies a client by IP and the start of its user agent.
func ClientKey(c *gin.Context) string {
	ua := c.Request.UserAgent()
	if ua == "" {
		ua = "unknown"
	}
	if len(ua) > 50 {
		ua = ua[:50]
	}
	return c.ClientIP() + ":" + ua
}

// Middleware rejects requests over the limit with 429. Store errors let the
// request through.
func Middleware(l *Limiter, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = ClientKey
	}
	return func(c *gin.Context) {
		res, err := l.Allow(c.Request.Context(), key(c))
		if err != nil {
			logger.L().Warnw("rate limit store failed", "limiter", l.name, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		if !res.Allowed {
			retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retry,
				"limit":       res.Limit,
			})
			return
		}
		c.Next()
	}
}
