package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nuestrovinculo/vinculo/cmd/vinculo/models"
)

// querier is satisfied by *db.DB and pgx transactions
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pinger interface {
	Ping(ctx context.Context) error
}

// PostgresCardStore handles database operations for cards
type PostgresCardStore struct {
	db querier
}

// NewPostgresCardStore creates a new card repository
func NewPostgresCardStore(db querier) *PostgresCardStore {
	return &PostgresCardStore{db: db}
}

// Get retrieves a card by its ID
func (r *PostgresCardStore) Get(ctx context.Context, cardID string) (*models.Card, error) {
	query := `
		SELECT card_id, video_url, updated_at
		FROM cards
		WHERE card_id = $1
	`

	card := &models.Card{}
	err := r.db.QueryRow(ctx, query, cardID).Scan(
		&card.CardID,
		&card.VideoURL,
		&card.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	return card, nil
}

// Upsert sets the card's video URL, creating the row if needed
func (r *PostgresCardStore) Upsert(ctx context.Context, cardID, videoURL string) error {
	query := `
		INSERT INTO cards (card_id, video_url, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (card_id) DO UPDATE
		SET video_url = EXCLUDED.video_url,
		    updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Exec(ctx, query, cardID, videoURL); err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}

	return nil
}

// Ping checks the database answers
func (r *PostgresCardStore) Ping(ctx context.Context) error {
	if p, ok := r.db.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
