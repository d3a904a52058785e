//go:build property
// +build property

package ratelimit

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: whatever the interleaving of acquisitions and clock advances,
// a bucket never holds more than its capacity.
func TestTokensNeverExceedCapacity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("tokens stay within [0, capacity]", prop.ForAll(
		func(capacity int, refill float64, stepsMillis []int) bool {
			clock := newFakeClock()
			l := New(WithClock(clock.Now))
			l.Allow("op", capacity, refill)

			for _, step := range stepsMillis {
				clock.Advance(time.Duration(step) * time.Millisecond)
				l.Allow("op", capacity, refill)
				tokens := l.Tokens("op")
				if tokens < 0 || tokens > capacity {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 50),
		gen.Float64Range(0.1, 50),
		gen.SliceOf(gen.IntRange(0, 5000)),
	))

	properties.Property("a fresh bucket grants exactly capacity without time passing", prop.ForAll(
		func(capacity int) bool {
			l := New(WithClock(newFakeClock().Now))
			granted := 0
			for i := 0; i < capacity*2; i++ {
				if l.Allow("op", capacity, 1) {
					granted++
				}
			}
			return granted == capacity
		},
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t)
}
