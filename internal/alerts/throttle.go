package alerts

import (
	"sync"
	"time"
)

// Throttler implements token bucket rate limiting for outbound alerts.
type Throttler struct {
	rate       float64 // tokens per second
	bucketSize float64 // max tokens
	tokens     float64 // current tokens
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewThrottler creates a new throttler
func NewThrottler(ratePerMinute int, bucketSize int) *Throttler {
	if ratePerMinute <= 0 {
		ratePerMinute = 10 // default 10 per minute
	}
	if bucketSize <= 0 {
		bucketSize = ratePerMinute
	}

	return &Throttler{
		rate:       float64(ratePerMinute) / 60.0,
		bucketSize: float64(bucketSize),
		tokens:     float64(bucketSize),
		lastUpdate: time.Now(),
	}
}

// Allow checks if an action is allowed
func (t *Throttler) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.refill()

	if t.tokens >= 1 {
		t.tokens--
		return true
	}
	return false
}

// refill adds tokens based on elapsed time
func (t *Throttler) refill() {
	now := time.Now()
	elapsed := now.Sub(t.lastUpdate).Seconds()
	t.lastUpdate = now

	t.tokens += t.rate * elapsed
	if t.tokens > t.bucketSize {
		t.tokens = t.bucketSize
	}
}

// Reset resets the throttler to full tokens
func (t *Throttler) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tokens = t.bucketSize
	t.lastUpdate = time.Now()
}
