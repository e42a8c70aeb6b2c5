package repository

import (
	"context"
	"fmt"

	"tombola/database"
	"tombola/models"

	"github.com/jackc/pgx/v5"
)

// PostgresBetStore implements durable bet persistence on Postgres
type PostgresBetStore struct {
	db *database.DB
}

// NewPostgresBetStore creates a new Postgres-backed bet store
func NewPostgresBetStore(db *database.DB) *PostgresBetStore {
	return &PostgresBetStore{db: db}
}

// Append stores a batch of bets in a single transaction so a half-written
// batch never becomes visible to ReadAll.
func (s *PostgresBetStore) Append(ctx context.Context, bets []models.Bet) error {
	if len(bets) == 0 {
		return nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	query := `
		INSERT INTO bets (agency, first_name, last_name, document, birthdate, number)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, bet := range bets {
		batch.Queue(query, bet.Agency, bet.FirstName, bet.LastName, bet.Document, bet.Birthdate, bet.Number)
	}

	results := tx.SendBatch(ctx, batch)
	for range bets {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert bet: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ReadAll returns every stored bet in insertion order
func (s *PostgresBetStore) ReadAll(ctx context.Context) ([]models.Bet, error) {
	query := `
		SELECT agency, first_name, last_name, document, birthdate, number
		FROM bets
		ORDER BY id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query bets: %w", err)
	}
	defer rows.Close()

	var bets []models.Bet
	for rows.Next() {
		var bet models.Bet
		err := rows.Scan(
			&bet.Agency,
			&bet.FirstName,
			&bet.LastName,
			&bet.Document,
			&bet.Birthdate,
			&bet.Number,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bets: %w", err)
	}
	return bets, nil
}
