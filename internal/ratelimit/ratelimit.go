// Package ratelimit implements a deterministic token bucket used to cap
// per-connection signaling message rates.
package ratelimit

import (
	"sync"
	"time"
)

// Clock abstracts time.Now so limiter behavior is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Bucket is a token bucket refilling at rate tokens/sec up to capacity.
//
// Refill is computed in nanosecond fixed point (1 token == 1e9 units) so
// no float rounding is involved: a rate of R tokens/sec adds exactly R
// units per elapsed nanosecond.
type Bucket struct {
	clock Clock

	mu        sync.Mutex
	capacity  int64 // in nano-token units
	rate      int64 // tokens/sec == units/ns
	available int64 // in nano-token units
	last      time.Time
}

const unitsPerToken = int64(time.Second)

func NewBucket(clock Clock, capacity, rate int64) *Bucket {
	if clock == nil {
		clock = RealClock{}
	}
	if capacity < 0 {
		capacity = 0
	}
	if rate < 0 {
		rate = 0
	}
	return &Bucket{
		clock:     clock,
		capacity:  capacity * unitsPerToken,
		rate:      rate,
		available: capacity * unitsPerToken,
		last:      clock.Now(),
	}
}

// Allow consumes one token if available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.available < unitsPerToken {
		return false
	}
	b.available -= unitsPerToken
	return true
}

func (b *Bucket) refill() {
	now := b.clock.Now()
	if !now.After(b.last) {
		// Clock stalled or went backwards: move the reference point but do
		// not refill.
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	b.last = now

	if b.rate <= 0 || b.capacity <= 0 {
		return
	}

	need := b.capacity - b.available
	if need <= 0 {
		b.available = b.capacity
		return
	}
	// Clamp instead of multiplying when the elapsed time alone is enough to
	// fill the bucket; this also avoids elapsed*rate overflow.
	if elapsed >= need/b.rate+1 {
		b.available = b.capacity
		return
	}
	b.available += elapsed * b.rate
	if b.available > b.capacity {
		b.available = b.capacity
	}
}
