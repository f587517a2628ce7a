package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimiterStore hands out one token-bucket limiter per key, creating them
// lazily. All limiters share the store's rate and burst.
type LimiterStore struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func NewLimiterStore(r rate.Limit, burst int) *LimiterStore {
	return &LimiterStore{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

// GetLimiter returns the limiter for key, creating it on first use.
func (s *LimiterStore) GetLimiter(key string) *rate.Limiter {
	s.mu.RLock()
	limiter, exists := s.limiters[key]
	s.mu.RUnlock()
	if exists {
		return limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if limiter, exists = s.limiters[key]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(s.r, s.burst)
	s.limiters[key] = limiter
	return limiter
}
