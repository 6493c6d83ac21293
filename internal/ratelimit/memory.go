package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const memoryLimiterMaxKeys = 10000

type memoryEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryBucket is a per-key token bucket held in process memory. It backs the
// limiter when no Redis address is configured.
type MemoryBucket struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	idleTTL time.Duration
	now     func() time.Time
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{
		entries: make(map[string]*memoryEntry),
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Take mirrors TokenBucket.Take for a single process.
func (m *MemoryBucket) Take(key string, r float64, burst int) Decision {
	now := m.now()

	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		if len(m.entries) >= memoryLimiterMaxKeys {
			m.evictIdleLocked(now)
		}
		entry = &memoryEntry{limiter: rate.NewLimiter(rate.Limit(r), burst)}
		m.entries[key] = entry
	}
	entry.lastSeen = now
	m.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return Decision{RetryAfter: delay}
	}

	return Decision{
		Allowed:   true,
		Remaining: int(entry.limiter.TokensAt(now)),
	}
}

func (m *MemoryBucket) evictIdleLocked(now time.Time) {
	for key, entry := range m.entries {
		if now.Sub(entry.lastSeen) > m.idleTTL {
			delete(m.entries, key)
		}
	}
}
