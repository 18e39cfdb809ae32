package utils

import (
	"sort"
	"sync"
	"time"
)

// LatencyTracker keeps a bounded window of recent cycle durations and
// answers percentile queries over it. The cycle service uses it to surface
// the p95 cycle time in telemetry aggregates.
type LatencyTracker struct {
	mu     sync.RWMutex
	window []time.Duration
	next   int
	full   bool
}

// NewLatencyTracker creates a tracker over the last maxSize observations.
func NewLatencyTracker(maxSize int) *LatencyTracker {
	if maxSize <= 0 {
		maxSize = 512
	}
	return &LatencyTracker{window: make([]time.Duration, maxSize)}
}

// Observe records a duration, evicting the oldest once the window is full.
func (l *LatencyTracker) Observe(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.window[l.next] = d
	l.next++
	if l.next == len(l.window) {
		l.next = 0
		l.full = true
	}
}

// Percentile returns the duration at percentile p in [0,100], or zero when
// nothing has been observed yet.
func (l *LatencyTracker) Percentile(p float64) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.len()
	if n == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), l.window[:n]...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return sorted[int(p/100*float64(n-1))]
}

// Count reports how many observations the window currently holds.
func (l *LatencyTracker) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.len()
}

func (l *LatencyTracker) len() int {
	if l.full {
		return len(l.window)
	}
	return l.next
}
