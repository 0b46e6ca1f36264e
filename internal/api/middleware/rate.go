package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how fast one client may call the API.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	IdleTTL           time.Duration // forget clients idle this long
	Exempt            []string      // route patterns never limited
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             200,
		IdleTTL:           10 * time.Minute,
		Exempt:            []string{"/health", "/metrics", "/stream"},
	}
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// visitors holds one token bucket per client address
type visitors struct {
	cfg RateLimitConfig

	mu    sync.Mutex
	byIP  map[string]*visitor
	swept time.Time
}

func (v *visitors) get(ip string, now time.Time) *rate.Limiter {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cfg.IdleTTL > 0 && now.Sub(v.swept) > v.cfg.IdleTTL {
		for ip, vis := range v.byIP {
			if now.Sub(vis.seen) > v.cfg.IdleTTL {
				delete(v.byIP, ip)
			}
		}
		v.swept = now
	}

	vis, ok := v.byIP[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(rate.Limit(v.cfg.RequestsPerSecond), v.cfg.Burst)}
		v.byIP[ip] = vis
	}
	vis.seen = now
	return vis.limiter
}

// RateLimit limits each client IP separately. Rejected requests get a 429
// with a Retry-After hint.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, route := range cfg.Exempt {
		exempt[route] = struct{}{}
	}
	clients := &visitors{cfg: cfg, byIP: make(map[string]*visitor), swept: time.Now()}

	return func(c *gin.Context) {
		if _, ok := exempt[c.FullPath()]; ok {
			c.Next()
			return
		}

		now := time.Now()
		r := clients.get(c.ClientIP(), now).ReserveN(now, 1)
		if !r.OK() {
			reject(c, time.Second)
			return
		}
		if wait := r.DelayFrom(now); wait > 0 {
			r.CancelAt(now)
			reject(c, wait)
			return
		}
		c.Next()
	}
}

func reject(c *gin.Context, wait time.Duration) {
	secs := int(wait.Seconds())
	if wait > time.Duration(secs)*time.Second {
		secs++
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"success": false,
		"error":   "rate limit exceeded",
	})
}
