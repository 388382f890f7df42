package repository

import (
	"context"
	"sync"
	"time"

	"github.com/nuestrovinculo/vinculo/cmd/vinculo/models"
)

// fixtures returns the development and demo cards, fresh on every call
func fixtures() map[string]*string {
	return map[string]*string{
		"DEMO":      nil,
		"FAMILIA-1": strPtr("https://interactive-examples.mdn.mozilla.net/media/cc0-videos/flower.mp4"),
	}
}

// MemoryCardStore keeps cards in a mutex-guarded map
type MemoryCardStore struct {
	mu    sync.RWMutex
	cards map[string]models.Card
}

// NewMemoryCardStore creates an empty store
func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{cards: make(map[string]models.Card)}
}

// NewSeededMemoryCardStore creates a store holding the fixture cards
func NewSeededMemoryCardStore() *MemoryCardStore {
	s := NewMemoryCardStore()
	now := time.Now().UTC()
	for id, url := range fixtures() {
		s.cards[id] = models.Card{CardID: id, VideoURL: url, UpdatedAt: now}
	}
	return s
}

func (s *MemoryCardStore) Get(_ context.Context, cardID string) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	card, ok := s.cards[cardID]
	if !ok {
		return nil, nil
	}
	if card.VideoURL != nil {
		card.VideoURL = strPtr(*card.VideoURL)
	}
	return &card, nil
}

func (s *MemoryCardStore) Upsert(_ context.Context, cardID, videoURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cards[cardID] = models.Card{
		CardID:    cardID,
		VideoURL:  strPtr(videoURL),
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

func (s *MemoryCardStore) Ping(context.Context) error {
	return nil
}

func strPtr(s string) *string {
	return &s
}
