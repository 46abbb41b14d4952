package consumer

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/snehjoshi/visq/internal/queue"
)

// ErrSimulatedFailure is returned by SimulatedHandler for the deliveries it
// chooses to fail.
var ErrSimulatedFailure = errors.New("consumer: simulated failure")

// SimulatedHandler returns a Handler that spends work on every delivery and
// fails the given fraction of them.
func SimulatedHandler(work time.Duration, failureRate float64) Handler {
	return func(ctx context.Context, _ *queue.Delivery) error {
		if work > 0 {
			t := time.NewTimer(work)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
		if failureRate > 0 && rand.Float64() < failureRate {
			return ErrSimulatedFailure
		}
		return nil
	}
}
