package www

import (
	"sync"

	"golang.org/x/time/rate"
)

// KeyLimiter keeps one token bucket per API key.
type KeyLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewKeyLimiter allows r requests per second with burst b per key. A
// non-positive rate disables limiting.
func NewKeyLimiter(r float64, b int) *KeyLimiter {
	if b < 1 {
		b = 1
	}
	return &KeyLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

func (l *KeyLimiter) Allow(key string) bool {
	if l.r <= 0 {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}
