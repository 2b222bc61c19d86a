package httpapi

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupEvery = 5 * time.Minute
	limiterIdleAfter    = 10 * time.Minute
)

// loginLimiter is a per-client token bucket in front of the auth endpoints.
type loginLimiter struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	limiters  map[string]*limiterEntry
	rate      rate.Limit
	burst     int
	cleanupAt time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newLoginLimiter returns nil when perMinute is not positive, which disables
// limiting.
func newLoginLimiter(perMinute float64, burst int, clock clockwork.Clock) *loginLimiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &loginLimiter{
		clock:     clock,
		limiters:  make(map[string]*limiterEntry),
		rate:      rate.Limit(perMinute / 60),
		burst:     burst,
		cleanupAt: clock.Now().Add(limiterCleanupEvery),
	}
}

func (l *loginLimiter) allow(ip string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.cleanupAt) {
		l.cleanupLocked(now)
		l.cleanupAt = now.Add(limiterCleanupEvery)
	}
	entry, ok := l.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *loginLimiter) cleanupLocked(now time.Time) {
	cutoff := now.Add(-limiterIdleAfter)
	for ip, entry := range l.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(l.limiters, ip)
		}
	}
}

func (l *loginLimiter) size() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}
