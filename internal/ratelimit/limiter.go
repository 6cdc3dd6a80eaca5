// Package ratelimit throttles uploads per client with fixed-window counters
// kept in Redis. Counter failures never block a request.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/photo-check/internal/auth"
	"github.com/example/photo-check/internal/logging"
)

// Limiter allows at most limit requests per client in each window.
type Limiter struct {
	counter        Counter
	limit          int64
	window         time.Duration
	logger         *zap.Logger
	now            func() time.Time
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewLimiter constructs a limiter. A non-positive limit disables throttling.
func NewLimiter(counter Counter, limit int, window time.Duration, logger *zap.Logger) *Limiter {
	return &Limiter{
		counter:        counter,
		limit:          int64(limit),
		window:         window,
		logger:         logger.Named("ratelimit"),
		now:            time.Now,
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// Allow reports whether client may make another request in the current window.
func (l *Limiter) Allow(ctx context.Context, requestID, client string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	bucket := l.now().UnixNano() / int64(l.window)
	key := fmt.Sprintf("ratelimit:%s:%d", client, bucket)

	var count int64
	err := l.withRedisRetry(ctx, requestID, "ratelimit.incr", func() error {
		n, err := l.counter.Incr(ctx, key, l.window)
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	if err != nil {
		return true, err
	}
	return count <= l.limit, nil
}

// Middleware rejects requests over the limit with 429. The client is the
// authenticated subject when present, otherwise gin's client IP, which
// honours forwarding headers only from the engine's trusted proxies.
func Middleware(l *Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		client, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			client = c.ClientIP()
		}
		requestID := c.Writer.Header().Get("X-Request-ID")

		allowed, err := l.Allow(c.Request.Context(), requestID, client)
		if err != nil {
			logging.WithOperation(l.logger, "ratelimit.middleware", requestID).
				Warn("rate limit check failed, allowing request", zap.Error(err), zap.String("client", client))
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
			return
		}
		c.Next()
	}
}

func (l *Limiter) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if l.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := l.initialBackoff
	opLogger := logging.WithOperation(l.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < l.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= l.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !isTransientError(err) || attempt == l.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func isTransientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) && temporary.Temporary() {
		return true
	}

	return false
}
