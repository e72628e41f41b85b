package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

var errLimiterUnavailable = appErrors.New("RATE_LIMITER_UNAVAILABLE", http.StatusServiceUnavailable, "rate limiter unavailable")

const (
	localCleanupInterval = 5 * time.Minute
	localEntryTTL        = 10 * time.Minute
)

type allowFunc func(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)

// RateLimiter throttles callers per route. Redis holds the shared counters; a process-local
// token bucket takes over when Redis is absent, or when it fails and FailOpen is set.
type RateLimiter struct {
	remote   allowFunc
	fallback *localLimiter
	limit    redis_rate.Limit
	cfg      config.RateLimitConfig
	metrics  *service.MetricsService
	logger   *zap.Logger
}

// NewRateLimiter constructs a limiter. rdb may be nil.
func NewRateLimiter(rdb *redis.Client, cfg config.RateLimitConfig, metrics *service.MetricsService, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	rl := &RateLimiter{
		fallback: newLocalLimiter(),
		limit:    redis_rate.PerMinute(cfg.RequestsPerMinute),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
	}
	rl.limit.Burst = cfg.Burst
	if rdb != nil {
		rl.remote = redis_rate.NewLimiter(rdb).Allow
	}
	return rl
}

// Handler returns the gin middleware. Disabled limiters pass everything through.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.cfg.Enabled {
			c.Next()
			return
		}
		path := c.FullPath()
		key := rl.key(c, path)

		res, err := rl.allow(c.Request.Context(), key)
		if err != nil {
			response.Error(c, errLimiterUnavailable)
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.limit.Rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if res.Allowed == 0 {
			retryAfter := int(res.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			rl.metrics.RecordRateLimited(path)
			response.Error(c, appErrors.Clone(appErrors.ErrRateLimited, fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter)))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Close stops the local limiter's cleanup loop.
func (rl *RateLimiter) Close() {
	rl.fallback.close()
}

func (rl *RateLimiter) allow(ctx context.Context, key string) (*redis_rate.Result, error) {
	if rl.remote == nil {
		return rl.fallback.allow(key, rl.limit), nil
	}
	res, err := rl.remote(ctx, key, rl.limit)
	if err == nil {
		return res, nil
	}
	if !rl.cfg.FailOpen {
		rl.logger.Error("rate limiter backend failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}
	rl.logger.Warn("rate limiter backend failed, using local limiter", zap.String("key", key), zap.Error(err))
	return rl.fallback.allow(key, rl.limit), nil
}

func (rl *RateLimiter) key(c *gin.Context, path string) string {
	if claims := Claims(c); claims != nil && claims.Email != "" {
		return "ratelimit:user:" + claims.Email + ":" + path
	}
	return "ratelimit:ip:" + c.ClientIP() + ":" + path
}

type localEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

type localLimiter struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	done    chan struct{}
	once    sync.Once
}

func newLocalLimiter() *localLimiter {
	l := &localLimiter{entries: make(map[string]*localEntry), done: make(chan struct{})}
	go l.cleanup()
	return l
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSecond := float64(limit.Rate) / limit.Period.Seconds()

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(rate.Limit(perSecond), limit.Burst)}
		l.entries[key] = entry
	}
	entry.lastAccess = time.Now()
	l.mu.Unlock()

	res := &redis_rate.Result{Limit: limit, RetryAfter: -1}
	if entry.limiter.Allow() {
		res.Allowed = 1
	} else {
		res.RetryAfter = time.Duration(float64(time.Second) / perSecond)
	}
	if remaining := int(entry.limiter.Tokens()); remaining > 0 {
		res.Remaining = remaining
	}
	return res
}

func (l *localLimiter) cleanup() {
	ticker := time.NewTicker(localCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, entry := range l.entries {
				if now.Sub(entry.lastAccess) > localEntryTTL {
					delete(l.entries, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *localLimiter) close() {
	l.once.Do(func() { close(l.done) })
}
