package repository

import (
	"context"
	"sync"

	"tombola/models"
)

// MemoryBetStore keeps bets in memory. It is the default store when no
// database is configured and the store used by most tests.
type MemoryBetStore struct {
	mu   sync.Mutex
	bets []models.Bet
}

// NewMemoryBetStore creates an empty in-memory bet store
func NewMemoryBetStore() *MemoryBetStore {
	return &MemoryBetStore{}
}

// Append durably stores a batch of bets
func (s *MemoryBetStore) Append(ctx context.Context, bets []models.Bet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bets = append(s.bets, bets...)
	return nil
}

// ReadAll returns a snapshot of every stored bet in insertion order
func (s *MemoryBetStore) ReadAll(ctx context.Context) ([]models.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]models.Bet, len(s.bets))
	copy(snapshot, s.bets)
	return snapshot, nil
}
