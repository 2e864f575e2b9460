package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds the per-client token bucket parameters
type Config struct {
	RequestsPerSecond float64
	Burst             int

	// IdleTTL is how long an unused client bucket is kept
	IdleTTL time.Duration
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	Limit      float64
	Remaining  int
	RetryAfter time.Duration
}

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimitService keeps one token bucket per client key in memory
type RateLimitService struct {
	cfg     Config
	logger  *zap.Logger
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(cfg Config, logger *zap.Logger) *RateLimitService {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &RateLimitService{
		cfg:     cfg,
		logger:  logger,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// CheckLimit consumes one token for key
func (s *RateLimitService) CheckLimit(key string) RateLimitResult {
	now := s.now()
	limiter := s.limiterFor(key, now)

	result := RateLimitResult{Limit: s.cfg.RequestsPerSecond}
	if limiter.AllowN(now, 1) {
		result.Allowed = true
		result.Remaining = int(limiter.TokensAt(now))
		return result
	}

	r := limiter.ReserveN(now, 1)
	if r.OK() {
		result.RetryAfter = r.DelayFrom(now)
		r.CancelAt(now)
	}
	return result
}

func (s *RateLimitService) limiterFor(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)}
		s.buckets[key] = b
	}
	b.lastAccess = now
	return b.limiter
}

// CleanupIdle drops buckets unused for longer than the idle ttl and
// returns how many were removed
func (s *RateLimitService) CleanupIdle() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Clients returns the number of tracked client buckets
func (s *RateLimitService) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// StartCleanupWorker periodically drops idle buckets until ctx is done
func (s *RateLimitService) StartCleanupWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("started rate limit cleanup worker",
		zap.Duration("interval", interval),
		zap.Duration("idle_ttl", s.cfg.IdleTTL))

	for {
		select {
		case <-ticker.C:
			if removed := s.CleanupIdle(); removed > 0 {
				s.logger.Debug("dropped idle rate limit buckets", zap.Int("removed", removed))
			}
		case <-ctx.Done():
			s.logger.Info("stopping rate limit cleanup worker")
			return
		}
	}
}
