// Package ratelimit provides a token bucket that admits callers in strict
// arrival order, so a burst of cheap requests cannot starve an earlier
// expensive one.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// Bucket is a token bucket with FIFO admission. Tokens refill continuously
// at a fixed rate up to capacity. Acquire blocks until every earlier caller
// has been served and enough tokens are available.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	tail       chan struct{} // turn channel of the most recent caller
	queued     int
}

// NewBucket returns a full bucket holding capacity tokens that refills at
// perSecond tokens per second.
func NewBucket(capacity int, perSecond float64) *Bucket {
	turn := make(chan struct{})
	close(turn)
	return &Bucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: perSecond,
		lastRefill: time.Now(),
		tail:       turn,
	}
}

// refill credits tokens for the elapsed time. Callers must hold mu.
func (b *Bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = math.Min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// Acquire blocks until cost tokens can be consumed, preserving arrival
// order among concurrent callers. A cost above the bucket capacity fails
// immediately since it could never be satisfied. Cancellation removes the
// caller from the queue without blocking those behind it.
func (b *Bucket) Acquire(ctx context.Context, cost int) error {
	c := float64(cost)
	if c > b.capacity {
		return fmt.Errorf("ratelimit: cost %d exceeds bucket capacity %d", cost, int(b.capacity))
	}

	b.mu.Lock()
	prev := b.tail
	mine := make(chan struct{})
	b.tail = mine
	b.queued++
	b.mu.Unlock()

	// Wait for every earlier caller to finish before touching the tokens.
	select {
	case <-prev:
	case <-ctx.Done():
		// Keep the chain intact for whoever queued behind us.
		go func() {
			<-prev
			close(mine)
		}()
		b.mu.Lock()
		b.queued--
		b.mu.Unlock()
		return ctx.Err()
	}

	defer close(mine)
	defer func() {
		b.mu.Lock()
		b.queued--
		b.mu.Unlock()
	}()

	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= c {
			b.tokens -= c
			b.mu.Unlock()
			return nil
		}
		wait := time.Duration((c - b.tokens) / b.refillRate * float64(time.Second))
		b.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// TryAcquire consumes cost tokens without blocking. It fails when tokens
// are short or when any caller is already queued, so it never jumps ahead
// of a blocked Acquire.
func (b *Bucket) TryAcquire(cost int) bool {
	c := float64(cost)
	if c > b.capacity {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.queued > 0 {
		return false
	}
	b.refill()
	if b.tokens < c {
		return false
	}
	b.tokens -= c
	return true
}
