package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nuestrovinculo/vinculo/cmd/vinculo/models"
	"github.com/nuestrovinculo/vinculo/common/cache"
	"github.com/nuestrovinculo/vinculo/common/logger"
	"golang.org/x/sync/singleflight"
)

// cacheEntry records absent cards too, so repeated misses stay off the store
type cacheEntry struct {
	Found bool         `json:"found"`
	Card  *models.Card `json:"card,omitempty"`
}

// sharedReadTimeout bounds a backing read shared by coalesced lookups. The
// read is detached from any one caller so a disconnect does not fail the rest.
const sharedReadTimeout = 10 * time.Second

// CachedCardStore is a read-through cache in front of another CardStore.
// Concurrent misses for one card share a single backing read. Cache failures
// are logged and never fail a call.
type CachedCardStore struct {
	next  CardStore
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
	log   *logger.Logger

	// generation counts completed upserts. A lookup only fills the cache if
	// no upsert finished while it was reading.
	mu         sync.Mutex
	generation uint64
}

// NewCachedCardStore wraps next with c
func NewCachedCardStore(next CardStore, c cache.Cache, ttl time.Duration, log *logger.Logger) *CachedCardStore {
	return &CachedCardStore{next: next, cache: c, ttl: ttl, log: log}
}

func (s *CachedCardStore) Get(ctx context.Context, cardID string) (*models.Card, error) {
	if raw, ok, err := s.cache.Get(ctx, cardID); err != nil {
		s.log.Warn("card cache read failed", "card_id", cardID, "error", err)
	} else if ok {
		var entry cacheEntry
		if err := json.Unmarshal(raw, &entry); err == nil {
			return cloneCard(entry.Card), nil
		}
		s.log.Warn("discarding corrupt card cache entry", "card_id", cardID)
	}

	ch := s.group.DoChan(cardID, func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()

		gen := s.currentGeneration()
		card, err := s.next.Get(readCtx, cardID)
		if err != nil {
			return nil, err
		}
		s.fill(readCtx, cardID, gen, cacheEntry{Found: card != nil, Card: card})
		return card, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneCard(res.Val.(*models.Card)), nil
	}
}

// Upsert writes through and drops the cached entry
func (s *CachedCardStore) Upsert(ctx context.Context, cardID, videoURL string) error {
	if err := s.next.Upsert(ctx, cardID, videoURL); err != nil {
		return err
	}

	s.mu.Lock()
	s.generation++
	s.mu.Unlock()

	// lookups that start from here on must not join a read from before the write
	s.group.Forget(cardID)

	if err := s.cache.Delete(ctx, cardID); err != nil {
		s.log.Warn("card cache invalidation failed", "card_id", cardID, "error", err)
	}
	return nil
}

func (s *CachedCardStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *CachedCardStore) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// fill caches entry unless an upsert completed after gen was taken
func (s *CachedCardStore) fill(ctx context.Context, cardID string, gen uint64, entry cacheEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		s.log.Debug("skipping card cache fill, card changed during read", "card_id", cardID)
		return
	}
	if err := s.cache.Set(ctx, cardID, raw, s.ttl); err != nil {
		s.log.Warn("card cache write failed", "card_id", cardID, "error", err)
	}
}

func cloneCard(c *models.Card) *models.Card {
	if c == nil {
		return nil
	}
	out := *c
	if c.VideoURL != nil {
		out.VideoURL = strPtr(*c.VideoURL)
	}
	return &out
}
