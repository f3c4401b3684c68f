package readthrough

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsroom.local/internal/platform/kvstore"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listing struct {
	Items []string `json:"items"`
	Total int      `json:"total"`
}

func newStore(t *testing.T) (kvstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return kvstore.NewRedis(client), mr
}

func counting(calls *int, v listing) func(context.Context) (listing, error) {
	return func(context.Context) (listing, error) {
		*calls++
		return v, nil
	}
}

func TestMissThenHit(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)
	calls := 0
	want := listing{Items: []string{"a", "b"}, Total: 2}

	got, err := GetOrCompute(ctx, store, "news:public", time.Minute, counting(&calls, want))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = GetOrCompute(ctx, store, "news:public", time.Minute, counting(&calls, listing{}))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 1, calls)
}

func TestExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	calls := 0

	_, err := GetOrCompute(ctx, store, "news:public", 60*time.Second, counting(&calls, listing{Total: 1}))
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)

	got, err := GetOrCompute(ctx, store, "news:public", 60*time.Second, counting(&calls, listing{Total: 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 2, calls)
}

func TestComputeErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	boom := errors.New("db down")

	_, err := GetOrCompute(ctx, store, "news:public", time.Minute, func(context.Context) (listing, error) {
		return listing{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("news:public"))
}

func TestCorruptEntryIsRecomputed(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	require.NoError(t, mr.Set("news:public", "{not json"))
	calls := 0

	got, err := GetOrCompute(ctx, store, "news:public", time.Minute, counting(&calls, listing{Total: 3}))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, calls)

	raw, err := mr.Get("news:public")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":null,"total":3}`, raw)
}

func TestUnencodableValueSkipsWrite(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)

	got, err := GetOrCompute(ctx, store, "k:v", time.Minute, func(context.Context) (chan int, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("k:v"))
}

func TestNopStoreAlwaysComputes(t *testing.T) {
	ctx := context.Background()
	calls := 0
	for i := 0; i < 3; i++ {
		_, err := GetOrCompute(ctx, kvstore.Nop{}, "news:public", time.Minute, counting(&calls, listing{}))
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestStoreFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	store, mr := newStore(t)
	mr.SetError("ERR down")
	calls := 0

	got, err := GetOrCompute(ctx, store, "news:public", time.Minute, counting(&calls, listing{Total: 9}))
	require.NoError(t, err)
	assert.Equal(t, 9, got.Total)
	assert.Equal(t, 1, calls)
}

func TestComputeSurvivesCancellation(t *testing.T) {
	store, mr := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := GetOrCompute(ctx, store, "news:public", time.Minute, func(ctx context.Context) (listing, error) {
		if err := ctx.Err(); err != nil {
			return listing{}, err
		}
		return listing{Total: 5}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Total)
	assert.True(t, mr.Exists("news:public"))
}

func TestNamespaceOf(t *testing.T) {
	assert.Equal(t, "news:public", namespaceOf("news:public"))
	assert.Equal(t, "news:public", namespaceOf("news:public:abc"))
	assert.Equal(t, "news:mine", namespaceOf("news:mine:7:abc"))
	assert.Equal(t, "plain", namespaceOf("plain"))
}
