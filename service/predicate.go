package service

import "tombola/models"

// NumberPredicate builds the winning predicate for a draw decided by a single
// winning number.
func NumberPredicate(winningNumber string) WinPredicate {
	return func(bet models.Bet) bool {
		return bet.Number == winningNumber
	}
}
