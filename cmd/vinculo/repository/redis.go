package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nuestrovinculo/vinculo/cmd/vinculo/models"
	"github.com/nuestrovinculo/vinculo/common/redis"
)

const (
	cardKeyPrefix  = "card:"
	fieldVideoURL  = "video_url"
	fieldUpdatedAt = "updated_at"
)

// RedisCardStore keeps one hash per card under card:<id>
type RedisCardStore struct {
	client *redis.Client
}

// NewRedisCardStore creates a store on an existing connection
func NewRedisCardStore(client *redis.Client) *RedisCardStore {
	return &RedisCardStore{client: client}
}

func (s *RedisCardStore) Get(ctx context.Context, cardID string) (*models.Card, error) {
	fields, err := s.client.GetAllHash(ctx, cardKeyPrefix+cardID)
	if errors.Is(err, redis.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get card: %w", err)
	}

	card := &models.Card{CardID: cardID}
	if url, ok := fields[fieldVideoURL]; ok && url != "" {
		card.VideoURL = &url
	}
	if ts, err := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64); err == nil {
		card.UpdatedAt = time.Unix(ts, 0).UTC()
	}
	return card, nil
}

func (s *RedisCardStore) Upsert(ctx context.Context, cardID, videoURL string) error {
	err := s.client.SetHash(ctx, cardKeyPrefix+cardID, map[string]interface{}{
		fieldVideoURL:  videoURL,
		fieldUpdatedAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to upsert card: %w", err)
	}
	return nil
}

func (s *RedisCardStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}
