package engine

import (
	"context"
	"time"
)

// unitsPerMillisecond converts abstract budget units into wall-clock time.
// The default budget of 10,000,000 units buys ten seconds of execution.
const unitsPerMillisecond = 1000

// withBudget derives a context that expires when the budget runs out. The
// runtime interrupts any in-flight guest call the moment the context is done.
func withBudget(ctx context.Context, budget int64) (context.Context, context.CancelFunc) {
	ms := budget / unitsPerMillisecond
	if ms < 1 {
		ms = 1
	}
	return context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
}
