package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestBucket_AllowAndRefill(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewBucket(5, 5, clk)

	for i := 0; i < 5; i++ {
		if !b.Allow() {
			t.Fatalf("expected burst message %d to be allowed", i)
		}
	}
	if b.Allow() {
		t.Fatalf("expected bucket to be empty")
	}

	clk.Advance(200 * time.Millisecond) // one message at 5/s
	if !b.Allow() {
		t.Fatalf("expected refill after time advance")
	}
	if b.Allow() {
		t.Fatalf("expected only one message to refill")
	}
}

func TestBucket_DoesNotExceedBurst(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	b := NewBucket(1, 2, clk)

	clk.Advance(time.Hour)
	if !b.AllowN(2) {
		t.Fatalf("expected a full burst")
	}
	if b.Allow() {
		t.Fatalf("expected burst clamp")
	}
}

func TestBucket_ClockGoingBackwards(t *testing.T) {
	clk := &fakeClock{now: time.Unix(100, 0)}
	b := NewBucket(1, 1, clk)

	if !b.Allow() {
		t.Fatalf("expected initial message")
	}
	clk.Advance(-time.Minute)
	if b.Allow() {
		t.Fatalf("a backwards clock must not refill")
	}
	clk.Advance(time.Second)
	if !b.Allow() {
		t.Fatalf("expected refill once time moves forward again")
	}
}

func TestBucket_NilIsUnlimited(t *testing.T) {
	b := NewBucket(0, 10, nil)
	if b != nil {
		t.Fatalf("expected nil bucket for rate 0")
	}
	for i := 0; i < 1000; i++ {
		if !b.Allow() {
			t.Fatalf("nil bucket rejected a message")
		}
	}
}
