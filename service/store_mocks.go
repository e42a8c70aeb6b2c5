package service

import (
	"context"

	"tombola/models"

	"github.com/stretchr/testify/mock"
)

// MockBetStore is a mock implementation of BetStore
type MockBetStore struct {
	mock.Mock
}

func (m *MockBetStore) Append(ctx context.Context, bets []models.Bet) error {
	args := m.Called(ctx, bets)
	return args.Error(0)
}

func (m *MockBetStore) ReadAll(ctx context.Context) ([]models.Bet, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Bet), args.Error(1)
}
