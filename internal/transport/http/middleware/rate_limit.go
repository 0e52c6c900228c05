package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimitStore defines the persistence operations required by the limiter.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// IdentifierFunc extracts the identifier a limit is scoped to.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces sliding-window limits backed by a shared store. A
// store failure lets the request through with a warning so an outage never
// locks everyone out.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock overrides the limiter clock, for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier scopes a limit to the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// EmailFieldIdentifier scopes a limit to the lowercased email form field of a
// JSON body, falling back to the client IP when the body carries none.
func EmailFieldIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		var body struct {
			Email string `json:"email"`
		}
		if err := c.ShouldBindBodyWithJSON(&body); err == nil && body.Email != "" {
			return strings.ToLower(strings.TrimSpace(body.Email)), true
		}
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a gin middleware enforcing the provided rules.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()

		for _, rule := range filtered {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			key := fmt.Sprintf("%s:%s", rule.Name, identifier)

			retryAfter, allowed, err := rl.evaluate(c.Request.Context(), rule, key, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.Error(err),
				)
				continue
			}

			if !allowed {
				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 0 {
					seconds = 0
				}
				c.Header("Retry-After", strconv.Itoa(seconds))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"status":  false,
					"message": fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
					"data":    gin.H{},
					"meta":    gin.H{"retryAfter": seconds, "traceId": GetTraceID(c)},
				})
				return
			}
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluate(ctx context.Context, rule RateLimitRule, key string, now time.Time) (time.Duration, bool, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return 0, true, err
	}

	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return 0, true, err
	}

	if count >= rule.Limit {
		reset := now.Add(rule.Window)
		if oldest, ok, err := rl.store.OldestAttempt(ctx, key, rule.Window, now); err == nil && ok {
			reset = oldest.Add(rule.Window)
		}
		retryAfter := reset.Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return retryAfter, false, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return 0, true, err
	}

	return 0, true, nil
}
