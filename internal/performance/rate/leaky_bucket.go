// Package rate throttles how fast an infinite run may spawn iteration tasks.
package rate

import (
	"sync"
	"sync/atomic"
	"time"
)

// LeakyBucket admits spawns at a fixed average rate.
//
// The bucket fills continuously at rate admissions per second, up to
// maxBurst. Each admitted spawn drains one unit. A spawn that finds less
// than one unit in the bucket is refused rather than delayed, so a
// scheduler polling the bucket from a fixed-period loop never blocks.
//
// # Thread Safety
//
// LeakyBucket is safe for concurrent use from multiple goroutines.
//
// # Example
//
//	lb := NewLeakyBucketWithBurst(100.0, 1) // 100 spawns per second
//
//	for each cycle {
//	    if lb.Allow(time.Now()) {
//	        // spawn
//	    }
//	}
type LeakyBucket struct {
	rate        float64   // Admissions per second
	lastFill    time.Time // When accumulated was last brought up to date
	accumulated float64   // Available admissions (fractional)
	maxBurst    float64   // Bucket capacity
	mu          sync.Mutex

	allowed atomic.Int64
	denied  atomic.Int64
}

// NewLeakyBucketWithBurst creates a bucket admitting rate spawns per second
// that can store up to maxBurst admissions while no one asks for them. It
// starts full. A non-positive rate is treated as 1 and maxBurst is at
// least 1.
func NewLeakyBucketWithBurst(rate float64, maxBurst float64) *LeakyBucket {
	if rate <= 0 {
		rate = 1.0
	}
	if maxBurst < 1.0 {
		maxBurst = 1.0
	}
	return &LeakyBucket{
		rate:        rate,
		lastFill:    time.Now(),
		accumulated: maxBurst,
		maxBurst:    maxBurst,
	}
}

// Allow reports whether one spawn may happen at now, and if so consumes
// it.
func (lb *LeakyBucket) Allow(now time.Time) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if elapsed := now.Sub(lb.lastFill).Seconds(); elapsed > 0 {
		lb.accumulated += elapsed * lb.rate
		lb.lastFill = now
	}
	if lb.accumulated > lb.maxBurst {
		lb.accumulated = lb.maxBurst
	}

	if lb.accumulated >= 1.0 {
		lb.accumulated -= 1.0
		lb.allowed.Add(1)
		return true
	}
	lb.denied.Add(1)
	return false
}

// Stats returns statistics about the leaky bucket's operation.
func (lb *LeakyBucket) Stats() LeakyBucketStats {
	lb.mu.Lock()
	rate := lb.rate
	accumulated := lb.accumulated
	maxBurst := lb.maxBurst
	lb.mu.Unlock()

	return LeakyBucketStats{
		Rate:        rate,
		Accumulated: accumulated,
		MaxBurst:    maxBurst,
		Allowed:     lb.allowed.Load(),
		Denied:      lb.denied.Load(),
	}
}

// LeakyBucketStats contains statistics about the leaky bucket.
type LeakyBucketStats struct {
	Rate        float64 `json:"rate"`        // Admissions per second
	Accumulated float64 `json:"accumulated"` // Currently available admissions
	MaxBurst    float64 `json:"maxBurst"`    // Bucket capacity
	Allowed     int64   `json:"allowed"`     // Spawns admitted
	Denied      int64   `json:"denied"`      // Spawns refused
}
