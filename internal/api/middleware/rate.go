package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/luminos-ui/shellhost/internal/infrastructure/config"
)

// staleAfter is how long an idle client keeps its limiter before the
// sweep reclaims it.
const staleAfter = 3 * time.Minute

// RateLimit enforces a per-client token bucket keyed by source IP.
// Disabled config yields a no-op handler so the route chain stays
// uniform.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}

	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
		sweepAt = time.Now().Add(staleAfter)
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		cl, ok := clients[ip]
		if !ok {
			cl = &client{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		if now.After(sweepAt) {
			for ip, cl := range clients {
				if now.Sub(cl.lastSeen) > staleAfter {
					delete(clients, ip)
				}
			}
			sweepAt = now.Add(staleAfter)
		}
		mu.Unlock()

		if !cl.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
