package mw

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim  *rate.Limiter
	seen time.Time
}

// RL keeps one token bucket per client key and garbage-collects buckets that
// have been idle longer than ttl.
type RL struct {
	mu    sync.Mutex
	m     map[string]*keyLimiter
	r     rate.Limit
	burst int
	ttl   time.Duration
	stop  chan struct{}
}

func NewRateLimiter(r rate.Limit, burst int, ttl time.Duration) *RL {
	return &RL{m: make(map[string]*keyLimiter), r: r, burst: burst, ttl: ttl, stop: make(chan struct{})}
}

func (rl *RL) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	kl, ok := rl.m[key]
	if ok {
		kl.seen = time.Now()
		return kl.lim
	}
	lim := rate.NewLimiter(rl.r, rl.burst)
	rl.m[key] = &keyLimiter{lim: lim, seen: time.Now()}
	return lim
}

func (rl *RL) gc() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			now := time.Now()
			rl.mu.Lock()
			for k, v := range rl.m {
				if now.Sub(v.seen) > rl.ttl {
					delete(rl.m, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Stop ends the GC goroutine.
func (rl *RL) Stop() {
	select {
	case <-rl.stop:
	default:
		close(rl.stop)
	}
}

// RateLimit returns an IP+path token-bucket limiter middleware.
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	rl := NewRateLimiter(r, burst, 2*time.Minute)
	go rl.gc()
	return func(c *gin.Context) {
		ip := clientIP(c.Request.RemoteAddr)
		key := ip + "|" + c.FullPath()
		if key == "|" {
			key = ip + "|" + c.Request.URL.Path
		}
		if !rl.get(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
