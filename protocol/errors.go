package protocol

import (
	"errors"
	"fmt"
)

// Protocol errors. Each one is recovered locally per connection: the server
// logs it, answers ERROR and closes the connection.
var (
	ErrInvalidFormat             = errors.New("invalid_format")
	ErrInvalidBatchHeader        = errors.New("invalid_batch_header")
	ErrInvalidBatchCount         = errors.New("invalid_batch_count")
	ErrInvalidBetLine            = errors.New("invalid_bet_line")
	ErrInvalidFinishBetsFormat   = errors.New("invalid_finish_bets_format")
	ErrInvalidQueryWinnersFormat = errors.New("invalid_query_winners_format")
	ErrUnknownMessageType        = errors.New("unknown_message_type")

	// ErrConnectionBroken reports a send that could not make progress.
	ErrConnectionBroken = errors.New("connection_broken")
)

// BetCountMismatchError reports a batch whose declared bet count does not
// match the number of BET lines it actually carried.
type BetCountMismatchError struct {
	Expected int
	Actual   int
}

func (e *BetCountMismatchError) Error() string {
	return fmt.Sprintf("bet_count_mismatch: expected %d bets, got %d", e.Expected, e.Actual)
}
