package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"

	"github.com/upb/llm-router/services/ratelimit"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// RateLimiter is satisfied by ratelimit.RateLimitService
type RateLimiter interface {
	CheckLimit(key string) ratelimit.RateLimitResult
}

// RateLimitMiddleware rejects clients that exceed their token bucket
type RateLimitMiddleware struct {
	limiter RateLimiter
	logger  *zap.Logger
}

// NewRateLimitMiddleware creates a new RateLimitMiddleware
func NewRateLimitMiddleware(limiter RateLimiter, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		logger:  logger,
	}
}

// Limit applies the per-client limit. Authenticated callers are keyed by
// subject, everyone else by remote address.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		result := m.limiter.CheckLimit(key)

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%g", result.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

		if !result.Allowed {
			retry := int(math.Ceil(result.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))

			m.logger.Warn("rate limit exceeded",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("client", key))
			_ = utils.WriteTooManyRequests(w, "", map[string]interface{}{
				"retry_after_seconds": retry,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	if claims := GetClaimsFromContext(r.Context()); claims != nil && claims.Sub != "" {
		return "sub:" + claims.Sub
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}
