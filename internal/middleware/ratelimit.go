package middleware

import (
	"math"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/moodpoints-api/pkg/errors"
	"github.com/noah-isme/moodpoints-api/pkg/response"
)

// TokenBucket is an in-process limiter keyed by caller identity.
type TokenBucket struct {
	capacity float64
	perSec   float64
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket allows bursts of capacity requests refilled at perMinute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if perMinute <= 0 {
		perMinute = capacity
	}
	return &TokenBucket{
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// Middleware rejects callers whose bucket is empty with 429 and a Retry-After hint.
// Authenticated callers are keyed by user id, anonymous ones by client IP.
func (tb *TokenBucket) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if claims := CurrentUser(c); claims != nil && claims.UserID != "" {
			key = "user:" + claims.UserID
		}
		ok, wait := tb.allow(key)
		if !ok {
			err := appErrors.WithDetails(appErrors.ErrTooManyRequest, map[string]interface{}{
				response.RetryAfterDetail: int(math.Ceil(wait.Seconds())),
			})
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}

func (tb *TokenBucket) allow(key string) (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.state[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, last: now}
		tb.state[key] = b
	}
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = math.Min(tb.capacity, b.tokens+elapsed*tb.perSec)
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	missing := 1 - b.tokens
	return false, time.Duration(missing / tb.perSec * float64(time.Second))
}
