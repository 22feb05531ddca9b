package middleware

import (
	"context"
	"sync"
	"time"
)

// WindowStore holds per-client sliding request logs and the block set.
// Implementations must make Record atomic per client.
type WindowStore interface {
	// Record appends now to the client's log, drops entries at or before
	// now-window and returns the in-window count including this request.
	Record(ctx context.Context, client string, now time.Time, window time.Duration) (int, error)
	IsBlocked(ctx context.Context, client string, now time.Time) (bool, error)
	// Block adds client to the block set. ttl <= 0 blocks permanently.
	Block(ctx context.Context, client string, now time.Time, ttl time.Duration) error
}

// MemoryWindowStore keeps admission state in process memory
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	// blocked maps a client to its unblock time; zero means never
	blocked map[string]time.Time
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{
		windows: make(map[string][]time.Time),
		blocked: make(map[string]time.Time),
	}
}

func (s *MemoryWindowStore) Record(_ context.Context, client string, now time.Time, window time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := prune(s.windows[client], now.Add(-window))
	entries = append(entries, now)
	s.windows[client] = entries
	return len(entries), nil
}

func (s *MemoryWindowStore) IsBlocked(_ context.Context, client string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.blocked[client]
	if !ok {
		return false, nil
	}
	if !until.IsZero() && !now.Before(until) {
		delete(s.blocked, client)
		return false, nil
	}
	return true, nil
}

func (s *MemoryWindowStore) Block(_ context.Context, client string, now time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var until time.Time
	if ttl > 0 {
		until = now.Add(ttl)
	}
	s.blocked[client] = until
	return nil
}

// Sweep drops idle windows and expired blocks
func (s *MemoryWindowStore) Sweep(now time.Time, window time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-window)
	for client, entries := range s.windows {
		if entries = prune(entries, cutoff); len(entries) == 0 {
			delete(s.windows, client)
		} else {
			s.windows[client] = entries
		}
	}
	for client, until := range s.blocked {
		if !until.IsZero() && !now.Before(until) {
			delete(s.blocked, client)
		}
	}
}

// Clients returns the number of tracked request logs
func (s *MemoryWindowStore) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// prune drops timestamps at or before cutoff. Entries are in ascending order.
func prune(entries []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return entries
	}
	return append(entries[:0], entries[i:]...)
}
