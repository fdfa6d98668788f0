package signature

import (
	"encoding/base64"
	"sync"
	"time"
)

// ReplayGuard rejects a (keyId, signature) pair seen more than once inside
// the clock-skew window, the protection spec.md §4.C requires alongside
// Date freshness: "a signature is accepted at most once per clock-skew
// window". Entries older than the window are swept lazily on each call, so
// the guard never grows past one window's worth of inbound traffic.
type ReplayGuard struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
}

// NewReplayGuard constructs a guard with the given retention window.
// Callers typically pass the same duration as the Date clock-skew check.
func NewReplayGuard(window time.Duration) *ReplayGuard {
	return &ReplayGuard{seen: make(map[string]time.Time), window: window}
}

// Check returns true and records the pair if this is the first time it has
// been seen within the window; false if it is a replay.
func (g *ReplayGuard) Check(parsed *Parsed) bool {
	key := parsed.KeyID + "|" + base64.StdEncoding.EncodeToString(parsed.Signature)
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	g.sweep(now)
	if _, ok := g.seen[key]; ok {
		return false
	}
	g.seen[key] = now
	return true
}

func (g *ReplayGuard) sweep(now time.Time) {
	for k, t := range g.seen {
		if now.Sub(t) > g.window {
			delete(g.seen, k)
		}
	}
}
