package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RequireOperator checks the operator credential header. An empty
// configured token leaves the endpoints open (single-operator setups
// behind a private network); comparison is constant-time.
func RequireOperator(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminToken == "" {
			c.Next()
			return
		}
		presented := strings.TrimSpace(c.GetHeader("X-Operator-Token"))
		if presented == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(adminToken)) != 1 {
			RespondError(c, http.StatusUnauthorized, "operator token required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimit applies a soft per-client token bucket to public
// endpoints. Limiters are kept in an expiring table so idle addresses
// do not pin memory.
func RateLimit(perMin int) gin.HandlerFunc {
	limiters := gocache.New(10*time.Minute, 20*time.Minute)
	limit := rate.Limit(float64(perMin) / 60.0)
	burstSize := perMin / 4
	if burstSize < 5 {
		burstSize = 5
	}
	return func(c *gin.Context) {
		limiter := clientLimiter(limiters, c.ClientIP(), limit, burstSize)
		if !limiter.Allow() {
			RespondError(c, http.StatusTooManyRequests, "rate limit exceeded")
			c.Abort()
			return
		}
		c.Next()
	}
}

// clientLimiter returns the bucket for ip, refreshing its expiry on
// every hit so an active client keeps its state instead of resetting
// to a full burst when the original TTL elapses.
func clientLimiter(table *gocache.Cache, ip string, limit rate.Limit, burst int) *rate.Limiter {
	var limiter *rate.Limiter
	if v, ok := table.Get(ip); ok {
		limiter = v.(*rate.Limiter)
	} else {
		limiter = rate.NewLimiter(limit, burst)
	}
	table.SetDefault(ip, limiter)
	return limiter
}
