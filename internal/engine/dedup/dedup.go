// Package dedup suppresses re-delivered utterances. Streaming sources can
// replay recent items after a reconnect; embedding the same utterance twice
// wastes pooling work and duplicates downstream records.
package dedup

import (
	"sync"
	"time"

	"github.com/crimson-sun/timbre/internal/model"
)

// Config controls deduplication behavior.
type Config struct {
	Window time.Duration // how long an utterance ID stays suppressed (default 5s)
}

// Deduplicator drops utterances whose ID was already admitted within Window.
type Deduplicator struct {
	cfg Config

	mu   sync.Mutex
	seen map[string]time.Time // ID → admission time
}

// New creates a Deduplicator with the given config.
func New(cfg Config) *Deduplicator {
	if cfg.Window <= 0 {
		cfg.Window = 5 * time.Second
	}
	return &Deduplicator{cfg: cfg, seen: make(map[string]time.Time)}
}

// Admit reports whether the utterance should be processed. The first
// occurrence of an ID is admitted; repeats within Window of the admission
// are dropped. Utterances without an ID are always admitted.
func (d *Deduplicator) Admit(u model.Utterance) bool {
	if u.ID == "" {
		return true
	}
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.seen[u.ID]; ok && ts.Sub(prev) <= d.cfg.Window {
		return false
	}
	d.seen[u.ID] = ts
	d.prune(ts)
	return true
}

// prune drops expired entries so the map stays bounded by the window.
func (d *Deduplicator) prune(now time.Time) {
	for id, ts := range d.seen {
		if now.Sub(ts) > d.cfg.Window {
			delete(d.seen, id)
		}
	}
}
