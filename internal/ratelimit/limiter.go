package ratelimit

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the bucket size used when a caller passes a non-positive capacity.
	DefaultCapacity = 10

	// DefaultRefillPerSecond is the refill rate used when a caller passes a non-positive rate.
	DefaultRefillPerSecond = 5.0
)

// Clock returns the current instant. Tests substitute a simulated clock.
type Clock func() time.Time

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source used for refill calculations.
func WithClock(clock Clock) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.now = clock
		}
	}
}

// bucket holds whole tokens only. lastRefill moves forward only when at
// least one whole token is credited, so partial progress toward the next
// token is kept across calls.
type bucket struct {
	mu         sync.Mutex
	capacity   int
	refill     float64
	tokens     int
	lastRefill time.Time
}

// refillLocked credits floor(elapsed*rate) tokens, capped at capacity.
// b.mu must be held.
func (b *bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	add := int(math.Floor(elapsed * b.refill))
	if add <= 0 {
		return
	}
	b.tokens = min(b.capacity, b.tokens+add)
	b.lastRefill = now
}

// available returns the tokens the bucket would hold at now without
// changing its state.
func (b *bucket) available(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	tokens := b.tokens
	if elapsed := now.Sub(b.lastRefill).Seconds(); elapsed > 0 {
		tokens = min(b.capacity, tokens+int(math.Floor(elapsed*b.refill)))
	}
	return tokens
}

func (b *bucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(now)
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Limiter is a registry of token buckets keyed by operation name.
//
// Buckets are created lazily on first use and live as long as the Limiter.
// The first call for a key fixes its capacity and refill rate; later calls
// with different values reuse the existing bucket unchanged.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     Clock
}

// New creates an empty Limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether one token could be taken from the bucket for key.
// Refill is computed lazily: floor(elapsed seconds * rate) whole tokens are
// added, capped at capacity, and the refill instant only advances when at
// least one token was added.
func (l *Limiter) Allow(key string, capacity int, refillPerSecond float64) bool {
	now := l.now()
	return l.bucket(key, capacity, refillPerSecond, now).take(now)
}

// Tokens returns the number of whole tokens currently available for key.
// It returns -1 for a key that has never been used.
func (l *Limiter) Tokens(key string) int {
	l.mu.Lock()
	b, ok := l.buckets[key]
	l.mu.Unlock()
	if !ok {
		return -1
	}
	return b.available(l.now())
}

// Len returns the number of buckets created so far.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// bucket looks up or creates the bucket for key. The registry lock is only
// held for the map access; each bucket serialises its own refill and consume
// sequence, so different keys never contend on token accounting.
func (l *Limiter) bucket(key string, capacity int, refillPerSecond float64, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillPerSecond <= 0 {
		refillPerSecond = DefaultRefillPerSecond
	}

	// New buckets start full.
	b := &bucket{
		capacity:   capacity,
		refill:     refillPerSecond,
		tokens:     capacity,
		lastRefill: now,
	}
	l.buckets[key] = b
	return b
}
