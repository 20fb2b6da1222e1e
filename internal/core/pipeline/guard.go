package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Guard is the in-process dedup and concurrency gate. A key is either
// unknown, locked (a worker holds it), or recently done (finished within the
// retention window). TryAcquire refuses both of the latter, which gives each
// file identity at-most-once processing per window even when a webhook burst
// delivers the same change several times.
type Guard struct {
	mu        sync.Mutex
	retention time.Duration
	capacity  int
	entries   map[string]*guardEntry

	now func() time.Time
}

type guardEntry struct {
	locked bool
	doneAt time.Time
}

// GuardStats is a point-in-time view for the status endpoint.
type GuardStats struct {
	Locked       int `json:"locked"`
	RecentlyDone int `json:"recently_done"`
}

func NewGuard(retention time.Duration, capacity int) *Guard {
	if retention <= 0 {
		retention = 2 * time.Minute
	}
	if capacity <= 0 {
		capacity = 100
	}
	return &Guard{
		retention: retention,
		capacity:  capacity,
		entries:   make(map[string]*guardEntry),
		now:       time.Now,
	}
}

// TryAcquire locks the key for processing. It returns false when the key is
// already locked or finished within the retention window.
func (g *Guard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.evictLocked()

	// Any surviving entry blocks: either locked, or recently done and still
	// within retention (evictLocked already removed expired ones).
	if _, ok := g.entries[key]; ok {
		return false
	}

	g.entries[key] = &guardEntry{locked: true}
	return true
}

// Release ends processing for a held key. Success and failure both land in
// the recently-done state: a permanently broken file would otherwise be
// retried on every webhook delivery, so failures only become eligible again
// after the retention window.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[key]
	if !ok || !e.locked {
		return
	}
	e.locked = false
	e.doneAt = g.now()
}

// Stats reports current occupancy.
func (g *Guard) Stats() GuardStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.evictLocked()
	var s GuardStats
	for _, e := range g.entries {
		if e.locked {
			s.Locked++
		} else {
			s.RecentlyDone++
		}
	}
	return s
}

// evictLocked drops expired done-entries, then enforces the capacity bound by
// evicting the oldest done-entries. Locked entries are never evicted; a held
// lock outlives any window. Callers must hold g.mu.
func (g *Guard) evictLocked() {
	now := g.now()
	for key, e := range g.entries {
		if !e.locked && now.Sub(e.doneAt) > g.retention {
			delete(g.entries, key)
		}
	}
	for len(g.entries) > g.capacity {
		oldestKey := ""
		var oldest time.Time
		for key, e := range g.entries {
			if e.locked {
				continue
			}
			if oldestKey == "" || e.doneAt.Before(oldest) {
				oldestKey, oldest = key, e.doneAt
			}
		}
		if oldestKey == "" {
			return // everything left is locked
		}
		delete(g.entries, oldestKey)
	}
}

// NotificationGuard dedups raw webhook deliveries by payload digest, so a
// provider redelivering the identical notification does not queue a second
// reconciliation.
type NotificationGuard struct {
	guard *Guard
}

func NewNotificationGuard(retention time.Duration, capacity int) *NotificationGuard {
	return &NotificationGuard{guard: NewGuard(retention, capacity)}
}

// Seen records the payload and reports whether an identical one arrived
// within the retention window.
func (n *NotificationGuard) Seen(payload []byte) bool {
	sum := sha256.Sum256(payload)
	key := hex.EncodeToString(sum[:])

	if !n.guard.TryAcquire(key) {
		return true
	}
	n.guard.Release(key)
	return false
}
