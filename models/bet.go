package models

import "time"

// Bet represents a single lottery bet submitted by an agency
type Bet struct {
	Agency    string    `db:"agency"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	Document  string    `db:"document"`
	Birthdate time.Time `db:"birthdate"`
	Number    string    `db:"number"`
}

// DrawResult represents the outcome of a completed draw for one agency
// (returned to the agency that queried)
type DrawResult struct {
	Agency  string
	Winners []string
}
