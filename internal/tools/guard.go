package tools

import (
	"context"

	"github.com/giantswarm/mcp-k8s-guard/internal/guard"
	"github.com/giantswarm/mcp-k8s-guard/internal/logging"
	"github.com/giantswarm/mcp-k8s-guard/internal/ratelimit"
	"github.com/giantswarm/mcp-k8s-guard/internal/server"
)

// Budget is the token bucket size and refill rate of one operation.
type Budget struct {
	Capacity        int
	RefillPerSecond float64
}

var (
	// DefaultBudget applies to every operation without its own budget.
	DefaultBudget = Budget{Capacity: ratelimit.DefaultCapacity, RefillPerSecond: ratelimit.DefaultRefillPerSecond}
	// StrictBudget applies to exec and context switching.
	StrictBudget = Budget{Capacity: 5, RefillPerSecond: 2}
)

// EnforceRateLimit takes a token from the operation's bucket. It returns a
// RATE_LIMIT violation when the bucket is empty.
func EnforceRateLimit(ctx context.Context, sc *server.ServerContext, operation string, budget Budget) error {
	if sc.RateLimiter().Allow(operation, budget.Capacity, budget.RefillPerSecond) {
		return nil
	}

	sc.Logger().Warn("rate limit exceeded", logging.KeyOperation, operation)
	sc.RecordRateLimitRejection(ctx, operation)
	return guard.RateLimitExceeded()
}

// EnforceGuard runs the guard engine for a mutating operation and records
// the decision. The returned error is nil or a *guard.Violation.
func EnforceGuard(ctx context.Context, sc *server.ServerContext, op guard.OperationContext) error {
	err := sc.GuardEngine().Check(op)
	sc.RecordGuardDecision(ctx, op.Operation, err)
	if v, ok := guard.AsViolation(err); ok {
		sc.Logger().Info("operation denied",
			logging.KeyOperation, op.Operation,
			logging.KeyNamespace, op.Namespace,
			logging.KeyResourceType, op.Kind,
			logging.KeyCode, string(v.Code))
	}
	return err
}
