package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userLimiter is a token bucket per authenticated user
type userLimiter struct {
	mu       sync.Mutex
	visitors map[int64]*visitor
	limit    rate.Limit
	burst    int
	expires  time.Duration
}

func newUserLimiter(perSecond float64, burst int, expires time.Duration) *userLimiter {
	return &userLimiter{
		visitors: map[int64]*visitor{},
		limit:    rate.Limit(perSecond),
		burst:    burst,
		expires:  expires,
	}
}

func (l *userLimiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.expires {
			delete(l.visitors, id)
		}
	}

	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *userLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := actorFrom(c)
		if !l.allow(actor.ID, time.Now()) {
			c.Header("Retry-After", "1")
			fail(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		c.Next()
	}
}
