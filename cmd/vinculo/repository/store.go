package repository

import (
	"context"

	"github.com/nuestrovinculo/vinculo/cmd/vinculo/models"
)

// CardStore persists card records. Get returns (nil, nil) when the card is
// absent. Upsert overwrites the video URL; it is atomic per card.
type CardStore interface {
	Get(ctx context.Context, cardID string) (*models.Card, error)
	Upsert(ctx context.Context, cardID, videoURL string) error
	Ping(ctx context.Context) error
}
