package engine

import (
	"sync"
	"time"
)

// DedupWindow is a bounded recent-history buffer used to recognize
// retransmitted webhook deliveries. FirstSeen is an atomic create-if-absent:
// exactly one caller per key wins within the window.
type DedupWindow struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewDedupWindow(ttl time.Duration) *DedupWindow {
	return &DedupWindow{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// FirstSeen records key and reports whether this is its first appearance
// inside the window.
func (w *DedupWindow) FirstSeen(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	if at, ok := w.seen[key]; ok && now.Sub(at) < w.ttl {
		return false
	}
	w.seen[key] = now

	// Opportunistic prune keeps the map bounded without a dedicated sweeper.
	if len(w.seen) > 1024 {
		for k, at := range w.seen {
			if now.Sub(at) >= w.ttl {
				delete(w.seen, k)
			}
		}
	}
	return true
}
