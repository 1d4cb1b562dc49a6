// Package ratelimit throttles how fast a single signaling connection may send
// messages.
package ratelimit

import (
	"sync"
	"time"
)

// nano-events per event; refill arithmetic stays in integers.
const unit = int64(time.Second)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Bucket is a token bucket holding up to burst events that refills at rate
// events per second. A nil *Bucket allows everything.
type Bucket struct {
	mu    sync.Mutex
	clock Clock

	burst int64
	rate  int64

	avail int64 // nano-events
	last  time.Time
}

// NewBucket returns nil when rate <= 0, meaning no limit. burst defaults to
// rate.
func NewBucket(rate, burst int, clock Clock) *Bucket {
	if rate <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = rate
	}
	if clock == nil {
		clock = realClock{}
	}
	return &Bucket{
		clock: clock,
		burst: int64(burst),
		rate:  int64(rate),
		avail: int64(burst) * unit,
		last:  clock.Now(),
	}
}

func (b *Bucket) Allow() bool { return b.AllowN(1) }

func (b *Bucket) AllowN(n int) bool {
	if b == nil || n <= 0 {
		return true
	}
	cost := int64(n) * unit

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.avail < cost {
		return false
	}
	b.avail -= cost
	return true
}

func (b *Bucket) refill() {
	now := b.clock.Now()
	elapsed := now.Sub(b.last)
	b.last = now
	if elapsed <= 0 {
		// A clock that stepped backwards only moves the reference point.
		return
	}

	capacity := b.burst * unit
	missing := capacity - b.avail
	if missing <= 0 {
		return
	}
	// rate events/s is rate nano-events/ns.
	if elapsed.Nanoseconds() >= missing/b.rate {
		b.avail = capacity
		return
	}
	b.avail += elapsed.Nanoseconds() * b.rate
}
