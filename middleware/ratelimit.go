package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu   sync.Mutex
	byIP map[string]*ipLimiter
	r    rate.Limit
	b    int
}

func (s *limiterSet) get(ip string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	il, ok := s.byIP[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(s.r, s.b)}
		s.byIP[ip] = il
	}
	il.lastSeen = now
	return il.limiter
}

func (s *limiterSet) sweep(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ip, il := range s.byIP {
		if il.lastSeen.Before(cutoff) {
			delete(s.byIP, ip)
		}
	}
}

// sweepEvery and idleFor bound how long a quiet client's bucket is kept.
const (
	sweepEvery = 5 * time.Minute
	idleFor    = 10 * time.Minute
)

// retryAfter reserves a token for ip. When none is available now the
// reservation is cancelled and the wait, rounded up to whole seconds, is
// returned.
func (s *limiterSet) retryAfter(ip string, now time.Time) (time.Duration, bool) {
	res := s.get(ip, now).ReserveN(now, 1)
	if !res.OK() {
		return time.Second, false
	}
	d := res.DelayFrom(now)
	if d == 0 {
		return 0, true
	}
	res.CancelAt(now)
	return d, false
}

// RateLimit applies a token bucket per client IP: r requests per second with
// bursts of b. Rejections carry Retry-After. Idle buckets are swept until
// ctx is done.
func RateLimit(ctx context.Context, r rate.Limit, b int) gin.HandlerFunc {
	set := &limiterSet{byIP: make(map[string]*ipLimiter), r: r, b: b}

	go func() {
		ticker := time.NewTicker(sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				set.sweep(now.Add(-idleFor))
			case <-ctx.Done():
				return
			}
		}
	}()

	return func(c *gin.Context) {
		wait, ok := set.retryAfter(c.ClientIP(), time.Now())
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
