package middleware

import (
	"context"
	"time"

	"audio-library/backend/pkg/resilience"
)

// BreakerWindowStore routes a remote WindowStore through a circuit breaker.
// While the circuit is open calls return resilience.ErrCircuitOpen at once,
// which the guard treats like any other store error.
type BreakerWindowStore struct {
	next    WindowStore
	breaker *resilience.CircuitBreaker
}

func NewBreakerWindowStore(next WindowStore, breaker *resilience.CircuitBreaker) *BreakerWindowStore {
	return &BreakerWindowStore{next: next, breaker: breaker}
}

func (s *BreakerWindowStore) Record(ctx context.Context, client string, now time.Time, window time.Duration) (int, error) {
	var count int
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		count, err = s.next.Record(ctx, client, now, window)
		return err
	})
	return count, err
}

func (s *BreakerWindowStore) IsBlocked(ctx context.Context, client string, now time.Time) (bool, error) {
	var blocked bool
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		blocked, err = s.next.IsBlocked(ctx, client, now)
		return err
	})
	return blocked, err
}

func (s *BreakerWindowStore) Block(ctx context.Context, client string, now time.Time, ttl time.Duration) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.next.Block(ctx, client, now, ttl)
	})
}

// Breaker exposes the breaker for health reporting
func (s *BreakerWindowStore) Breaker() *resilience.CircuitBreaker {
	return s.breaker
}
