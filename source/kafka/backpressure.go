package kafka

import (
	"context"

	"golang.org/x/sync/semaphore"

	"esbridge/internal/telemetry"
)

// Limiter bounds how many messages are handled at once.
type Limiter struct {
	sem *semaphore.Weighted
}

func NewLimiter(capacity int64) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{sem: semaphore.NewWeighted(capacity)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	telemetry.InFlight.Inc()
	return nil
}

func (l *Limiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	telemetry.InFlight.Inc()
	return true
}

func (l *Limiter) Release() {
	telemetry.InFlight.Dec()
	l.sem.Release(1)
}
