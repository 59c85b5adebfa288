package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"schoolfee/interfaces"
	"schoolfee/repositories"
	"schoolfee/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type unavailableCounters struct{}

func (unavailableCounters) IncrementIfBelow(ctx context.Context, counters []interfaces.WindowCounter) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (unavailableCounters) Get(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("redis: connection refused")
}

func newRateLimitedRouter(limiter *RateLimiter, orgID string) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if orgID != "" {
			c.Set("organizationID", orgID)
		}
		c.Next()
	})
	router.Use(limiter.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return router
}

func get(router http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 30, 0, time.UTC)
	limiter := NewRateLimiter(RateLimitConfig{
		Counters:  repositories.NewMemoryCounterStore(),
		Requests:  2,
		Window:    time.Minute,
		SkipPaths: []string{"/health"},
	}, StrategyOrganization)
	limiter.now = func() time.Time { return now }

	router := newRateLimitedRouter(limiter, "org-1")

	for i := 0; i < 2; i++ {
		rec := get(router, "/ping", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := get(router, "/ping", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusOK, get(router, "/health", nil).Code, "skipped paths are not counted")

	now = now.Add(time.Minute)
	assert.Equal(t, http.StatusOK, get(router, "/ping", nil).Code, "a new window starts fresh")
}

func TestRateLimiterCountsOrganizationsSeparately(t *testing.T) {
	counters := repositories.NewMemoryCounterStore()
	config := RateLimitConfig{Counters: counters, Requests: 1, Window: time.Minute}

	first := newRateLimitedRouter(NewRateLimiter(config, StrategyOrganization), "org-1")
	second := newRateLimitedRouter(NewRateLimiter(config, StrategyOrganization), "org-2")

	assert.Equal(t, http.StatusOK, get(first, "/ping", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(first, "/ping", nil).Code)
	assert.Equal(t, http.StatusOK, get(second, "/ping", nil).Code)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{Counters: unavailableCounters{}, Requests: 1}, StrategyIP)
	router := newRateLimitedRouter(limiter, "")

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(router, "/ping", nil).Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	jwtService := utils.NewJWTService("secret", time.Hour)
	auth := NewAuthMiddleware(jwtService)

	router := gin.New()
	router.Use(auth.RequireAuth())
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, utils.GetOrganizationID(c)+"/"+utils.GetUserID(c))
	})
	router.POST("/admin", auth.RequireRole(utils.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusUnauthorized, get(router, "/whoami", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/whoami", map[string]string{"Authorization": "Basic abc"}).Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/whoami", map[string]string{"Authorization": "Bearer garbage"}).Code)

	admin, _, err := jwtService.GenerateToken("u-1", "org-1", utils.RoleAdmin)
	require.NoError(t, err)
	rec := get(router, "/whoami", map[string]string{"Authorization": "Bearer " + admin})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "org-1/u-1", rec.Body.String())

	viewer, _, err := jwtService.GenerateToken("u-2", "org-1", utils.RoleViewer)
	require.NoError(t, err)

	post := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusNoContent, post(admin))
	assert.Equal(t, http.StatusForbidden, post(viewer))
}

func TestCORSMiddleware(t *testing.T) {
	build := func(environment string, origins []string) *gin.Engine {
		router := gin.New()
		router.Use(CORSMiddleware(environment, origins))
		router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
		router.OPTIONS("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
		return router
	}

	rec := get(build("development", nil), "/ping", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	prod := build("production", []string{"https://admin.example.com", "*.schools.example.com"})

	rec = get(prod, "/ping", map[string]string{"Origin": "https://admin.example.com"})
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(prod, "/ping", map[string]string{"Origin": "https://north.schools.example.com"})
	assert.Equal(t, "https://north.schools.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = get(prod, "/ping", map[string]string{"Origin": "https://evil.example.org"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	preflight := httptest.NewRecorder()
	prod.ServeHTTP(preflight, req)
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Contains(t, preflight.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
