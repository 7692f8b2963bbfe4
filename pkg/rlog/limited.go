package rlog

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter throttles CRIT-level logging for one noisy source (typically a
// single misbehaving decoder instance repeatedly raising VmError) so a
// runaway decoder cannot flood the host's log with one line per chunk.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewLimiter creates a Limiter admitting at most rps CRIT lines per second,
// per distinct key, with an initial burst allowance of burst lines.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// CritLimited logs at CRIT level for key at most once per the limiter's
// configured rate; excess calls are silently dropped.
func (l *Limiter) CritLimited(key string, v ...interface{}) {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()

	if lim.Allow() {
		Crit(v...)
	}
}

// Forget drops the per-key limiter state, e.g. once an instance is freed.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	delete(l.limiters, key)
	l.mu.Unlock()
}
