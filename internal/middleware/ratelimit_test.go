package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/config"
)

func newLimitedRouter(rl *RateLimiter) *gin.Engine {
	r := gin.New()
	r.POST("/create-tutor-checkout-session", rl.Handler(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func hit(r http.Handler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/create-tutor-checkout-session", nil)
	req.RemoteAddr = "10.0.0.1:4000"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterLocalBucket(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	rl := NewRateLimiter(nil, config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, Burst: 2}, metrics, nil)
	defer rl.Close()
	r := newLimitedRouter(rl)

	assert.Equal(t, http.StatusOK, hit(r).Code)
	assert.Equal(t, http.StatusOK, hit(r).Code)

	w := hit(r)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	count, err := testutil.GatherAndCount(metrics.Registry(), "tutorhub_rate_limited_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRateLimiterDisabledPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(nil, config.RateLimitConfig{RequestsPerMinute: 1, Burst: 1}, nil, nil)
	defer rl.Close()
	r := newLimitedRouter(rl)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(r).Code)
	}
}

func TestRateLimiterBackendFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	failing := func(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
		return nil, errors.New("redis: connection refused")
	}

	closed := NewRateLimiter(nil, config.RateLimitConfig{Enabled: true, RequestsPerMinute: 10}, nil, nil)
	defer closed.Close()
	closed.remote = failing
	assert.Equal(t, http.StatusServiceUnavailable, hit(newLimitedRouter(closed)).Code)

	open := NewRateLimiter(nil, config.RateLimitConfig{Enabled: true, RequestsPerMinute: 10, FailOpen: true}, nil, nil)
	defer open.Close()
	open.remote = failing
	assert.Equal(t, http.StatusOK, hit(newLimitedRouter(open)).Code)
}
