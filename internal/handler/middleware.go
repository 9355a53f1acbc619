package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Nasko29/progimage-backend/internal/domain"
)

// apikeyHeader carries the client credential on every protected route.
const apikeyHeader = "Apikeyid"

const contextClientID = "clientID"

// Auth validates the Apikeyid header against the client registry and
// stores the resolved client id in the request context. A missing header
// and an unknown key both answer 403.
func (h *Handler) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		apikey := c.GetHeader(apikeyHeader)
		if apikey == "" {
			h.respondStatus(c, http.StatusForbidden, "missing Apikeyid header")
			return
		}

		client, err := h.clients.Authenticate(c.Request.Context(), apikey)
		if err != nil {
			h.respondError(c, err)
			return
		}

		c.Set(contextClientID, client.APIKey)
		c.Next()
	}
}

// RequestLogger logs method, path, status and latency for every request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

const (
	visitorTTL      = 5 * time.Minute
	cleanupInterval = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-credential token bucket. Requests without a
// credential are bucketed by client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	requests rate.Limit
	burst    int
}

func NewRateLimiter(requests, burst int) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		requests: rate.Limit(requests),
		burst:    burst,
	}
	go rl.cleanup()
	return rl
}

// cleanup evicts stale buckets so the map does not grow unbounded.
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	for range ticker.C {
		rl.mu.Lock()
		for key, v := range rl.visitors {
			if time.Since(v.lastSeen) > visitorTTL {
				delete(rl.visitors, key)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.requests, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apikeyHeader)
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.limiterFor(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, domain.ErrorResponse{
				Status:  http.StatusTooManyRequests,
				Message: "too many requests",
			})
			return
		}

		c.Next()
	}
}
