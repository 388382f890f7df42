package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nuestrovinculo/vinculo/common/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupRedis connects to a local Redis on DB 15 and skips when none is running
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()

	rdb := goredis.NewClient(&goredis.Options{Addr: "localhost:6379", DB: 15})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})

	return redis.NewClient(rdb, quietLogger())
}

func TestRedisCardStore(t *testing.T) {
	s := NewRedisCardStore(setupRedis(t))
	ctx := context.Background()

	card, err := s.Get(ctx, "C1")
	require.NoError(t, err)
	assert.Nil(t, card)

	require.NoError(t, s.Upsert(ctx, "C1", "https://arweave.net/a"))
	require.NoError(t, s.Upsert(ctx, "C1", "https://arweave.net/b"))

	card, err = s.Get(ctx, "C1")
	require.NoError(t, err)
	require.NotNil(t, card)
	assert.Equal(t, "https://arweave.net/b", *card.VideoURL)
	assert.False(t, card.UpdatedAt.IsZero())

	assert.NoError(t, s.Ping(ctx))
}
