package aplus

import (
	"sync"
	"time"
)

// ExportLimiter rate-limits exports per owner with a sliding window.
type ExportLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
	done   chan struct{}
	once   sync.Once
}

// NewExportLimiter creates an ExportLimiter that allows max exports per window.
func NewExportLimiter(max int, window time.Duration) *ExportLimiter {
	l := &ExportLimiter{
		hits:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	go l.cleanup()
	return l
}

// Close stops the background cleanup.
func (l *ExportLimiter) Close() {
	l.once.Do(func() { close(l.done) })
}

func (l *ExportLimiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-l.window)
			for key := range l.hits {
				l.prune(key, cutoff)
			}
			l.mu.Unlock()
		case <-l.done:
			return
		}
	}
}

// prune drops hits older than cutoff. Callers hold mu.
func (l *ExportLimiter) prune(key string, cutoff time.Time) []time.Time {
	hits := l.hits[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(l.hits, key)
		return nil
	}
	l.hits[key] = kept
	return kept
}

// Allow reports whether key is under its limit and, if so, records an export.
func (l *ExportLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if len(l.prune(key, now.Add(-l.window))) >= l.max {
		return false
	}
	l.hits[key] = append(l.hits[key], now)
	return true
}

// RetryAfter returns how long key has to wait before its next export is
// allowed. It is zero when key is under its limit.
func (l *ExportLimiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	kept := l.prune(key, now.Add(-l.window))
	if len(kept) < l.max {
		return 0
	}
	return kept[len(kept)-l.max].Add(l.window).Sub(now)
}
