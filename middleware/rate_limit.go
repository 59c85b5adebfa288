package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"schoolfee/interfaces"
	"schoolfee/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds API throttling configuration
type RateLimitConfig struct {
	Counters     interfaces.CounterStore
	Requests     int           // Number of requests allowed
	Window       time.Duration // Fixed window length
	KeyPrefix    string
	SkipPaths    []string
	ErrorMessage string
}

// RateLimitStrategy picks what a request is counted against
type RateLimitStrategy string

const (
	StrategyIP           RateLimitStrategy = "ip"
	StrategyOrganization RateLimitStrategy = "organization"
)

// RateLimiter throttles HTTP requests using the shared counter store.
type RateLimiter struct {
	config   RateLimitConfig
	strategy RateLimitStrategy
	now      func() time.Time
}

func NewRateLimiter(config RateLimitConfig, strategy RateLimitStrategy) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "http_rate"
	}
	if config.ErrorMessage == "" {
		config.ErrorMessage = "Rate limit exceeded"
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return &RateLimiter{
		config:   config,
		strategy: strategy,
		now:      time.Now,
	}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		if rl.shouldSkipPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := rl.getKey(c)
		if key == "" {
			c.Next()
			return
		}

		allowed, resetTime, err := rl.checkRateLimit(c.Request.Context(), key)
		if err != nil {
			logrus.Errorf("Rate limit check failed: %v", err)
			// Allow request to proceed on error
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Requests))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			rl.handleRateLimitExceeded(c, resetTime)
			return
		}

		c.Next()
	})
}

func (rl *RateLimiter) checkRateLimit(ctx context.Context, key string) (bool, time.Time, error) {
	now := rl.now()
	windowStart := now.Truncate(rl.config.Window)
	resetTime := windowStart.Add(rl.config.Window)

	allowed, err := rl.config.Counters.IncrementIfBelow(ctx, []interfaces.WindowCounter{{
		Key:   fmt.Sprintf("%s:%d", key, windowStart.Unix()),
		Limit: int64(rl.config.Requests),
		TTL:   rl.config.Window + time.Minute,
	}})
	return allowed, resetTime, err
}

func (rl *RateLimiter) getKey(c *gin.Context) string {
	prefix := rl.config.KeyPrefix

	switch rl.strategy {
	case StrategyOrganization:
		if orgID := c.GetString("organizationID"); orgID != "" {
			return fmt.Sprintf("%s:org:%s", prefix, orgID)
		}
		return fmt.Sprintf("%s:ip:%s", prefix, c.ClientIP())
	default:
		return fmt.Sprintf("%s:ip:%s", prefix, c.ClientIP())
	}
}

func (rl *RateLimiter) handleRateLimitExceeded(c *gin.Context, resetTime time.Time) {
	retryAfter := int(resetTime.Sub(rl.now()).Seconds())
	if retryAfter < 0 {
		retryAfter = 0
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))

	response := models.NewErrorResponse("RATE_LIMIT_EXCEEDED", rl.config.ErrorMessage, "TOO_MANY_REQUESTS", c.GetString("request_id"))
	response.WithDetails("retry_after", retryAfter)

	logrus.WithFields(logrus.Fields{
		"client_ip":       c.ClientIP(),
		"organization_id": c.GetString("organizationID"),
		"path":            c.Request.URL.Path,
		"retry_after":     retryAfter,
	}).Warn("Rate limit exceeded")

	c.JSON(http.StatusTooManyRequests, response)
	c.Abort()
}

func (rl *RateLimiter) shouldSkipPath(path string) bool {
	for _, skipPath := range rl.config.SkipPaths {
		if strings.HasPrefix(path, skipPath) {
			return true
		}
	}
	return false
}

// APIRateLimit allows 120 requests per minute per organization
func APIRateLimit(counters interfaces.CounterStore) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Counters:     counters,
		Requests:     120,
		Window:       time.Minute,
		KeyPrefix:    "http_rate:api",
		ErrorMessage: "Too many API requests, please slow down",
	}, StrategyOrganization).Middleware()
}

// WebhookRateLimit allows 600 status callbacks per minute per source IP
func WebhookRateLimit(counters interfaces.CounterStore) gin.HandlerFunc {
	return NewRateLimiter(RateLimitConfig{
		Counters:  counters,
		Requests:  600,
		Window:    time.Minute,
		KeyPrefix: "http_rate:webhook",
	}, StrategyIP).Middleware()
}
