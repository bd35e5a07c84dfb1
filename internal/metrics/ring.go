package metrics

import (
	"sync"
	"time"
)

// TimingRing is a bounded ring of duration samples. When full, the oldest
// sample is trimmed to make room, so the average always reflects the most
// recent window. Appends are cheap enough to sit on request paths.
type TimingRing struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

// NewTimingRing creates a ring holding at most capacity samples.
func NewTimingRing(capacity int) *TimingRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &TimingRing{samples: make([]time.Duration, capacity)}
}

// Add appends a sample, trimming the oldest when the ring is full.
func (r *TimingRing) Add(d time.Duration) {
	r.mu.Lock()
	r.samples[r.next] = d
	r.next++
	if r.next == len(r.samples) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()
}

// Len returns the number of samples currently held.
func (r *TimingRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.samples)
	}
	return r.next
}

// Average returns the mean of the held samples, or zero when empty.
func (r *TimingRing) Average() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.full {
		count = len(r.samples)
	}
	if count == 0 {
		return 0
	}

	var total time.Duration
	for i := 0; i < count; i++ {
		total += r.samples[i]
	}
	return total / time.Duration(count)
}
