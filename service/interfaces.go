package service

import (
	"context"

	"tombola/models"
)

// BetStore defines the interface for durable bet persistence
type BetStore interface {
	// Append durably stores a batch of bets
	Append(ctx context.Context, bets []models.Bet) error

	// ReadAll returns every stored bet in insertion order
	ReadAll(ctx context.Context) ([]models.Bet, error)
}

// WinPredicate reports whether a bet won the draw. Implementations must be
// pure: no side effects, same answer for the same bet.
type WinPredicate func(bet models.Bet) bool

// ResponseConn is the write half of a client connection as seen by the
// coordinator. A parked connection is owned by the coordinator until it is
// answered by the draw drain or swept at shutdown.
type ResponseConn interface {
	// SendWinners writes a complete WINNERS response to the peer
	SendWinners(documents []string) error

	// Close closes the underlying connection. Safe to call more than once;
	// only the first call takes effect.
	Close() error
}

// LotteryService coordinates bet ingestion, the draw barrier and winner
// queries across all agency connections.
type LotteryService interface {
	// RecordBets persists bets and marks their agencies as contributors
	RecordBets(ctx context.Context, bets []models.Bet) error

	// RecordFinish marks an agency as finished and fires the draw once every
	// contributing agency has finished
	RecordFinish(ctx context.Context, agency string) error

	// QueryWinners answers a winner query. Before the draw it parks conn and
	// reports queued=true: no response is sent and ownership of conn passes
	// to the coordinator. After the draw it returns the winner documents for
	// the caller to send.
	QueryWinners(ctx context.Context, agency string, conn ResponseConn) (queued bool, winners []string, err error)

	// DrawCompleted reports whether the draw barrier has fired
	DrawCompleted() bool

	// Shutdown closes every parked connection without answering it
	Shutdown()
}
