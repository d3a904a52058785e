// Package ratelimit provides a per-operation token bucket registry.
//
// Each operation name gets its own bucket, created on first use with the
// capacity and refill rate supplied by that first call. Refill happens lazily
// when a bucket is consulted; there are no background timers.
//
// A single Limiter is constructed at startup and shared by all tool handlers
// through the server context. Tests create a fresh Limiter, usually with a
// simulated clock:
//
//	now := time.Unix(0, 0)
//	l := ratelimit.New(ratelimit.WithClock(func() time.Time { return now }))
//	l.Allow("resources.get", 10, 5)
package ratelimit
