package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(t *testing.T) State {
	t.Helper()
	fee := decimal.RequireFromString("3.50")
	r := r1
	r.DeliveryFee = &fee

	st, err := Add(State{}, r, itemA)
	require.NoError(t, err)
	st, err = Add(st, r, itemB)
	require.NoError(t, err)
	return Increment(st, "a")
}

func TestBoltStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cart.db")

	storage, err := OpenBolt(path)
	require.NoError(t, err)

	empty, err := Load(ctx, storage)
	require.NoError(t, err)
	assert.True(t, empty.Cart.IsEmpty())

	want := sampleState(t)
	require.NoError(t, storage.Save(ctx, want))
	require.NoError(t, storage.Close())

	reopened, err := OpenBolt(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := Load(ctx, reopened)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.Cart.RestaurantID)
	require.Len(t, got.Cart.Items, 2)
	assert.Equal(t, 2, got.Cart.Items[0].Quantity)
	assert.True(t, got.Restaurant.DeliveryFee.Equal(decimal.RequireFromString("3.50")))

	require.NoError(t, reopened.Save(ctx, State{}))
	cleared, err := Load(ctx, reopened)
	require.NoError(t, err)
	assert.True(t, cleared.Cart.IsEmpty())
	assert.Nil(t, cleared.Restaurant)
}

func TestOpenBoltRequiresPath(t *testing.T) {
	_, err := OpenBolt("  ")
	assert.Error(t, err)
}

func setupRedis(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStorage(client, "session-1", time.Hour), mr
}

func TestRedisStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, mr := setupRedis(t)

	require.NoError(t, storage.Save(ctx, sampleState(t)))
	assert.True(t, mr.Exists("session-1:cart"))
	assert.True(t, mr.Exists("session-1:restaurant"))
	assert.Greater(t, mr.TTL("session-1:cart"), time.Duration(0))

	got, err := Load(ctx, storage)
	require.NoError(t, err)
	assert.Len(t, got.Cart.Items, 2)
	assert.Equal(t, "Pizza Place", got.Restaurant.Name)

	require.NoError(t, storage.Save(ctx, State{}))
	assert.False(t, mr.Exists("session-1:restaurant"))
}

func TestRedisStorageMissingKeys(t *testing.T) {
	storage, _ := setupRedis(t)

	got, err := Load(context.Background(), storage)
	require.NoError(t, err)
	assert.True(t, got.Cart.IsEmpty())
}

func TestRedisStorageInvalidJSON(t *testing.T) {
	storage, mr := setupRedis(t)
	require.NoError(t, mr.Set("session-1:cart", "not json"))

	_, err := Load(context.Background(), storage)
	assert.Error(t, err)
}

type slowStorage struct {
	mu    sync.Mutex
	saves []State
	fail  bool
}

func (s *slowStorage) Load(context.Context) (State, error) {
	return State{}, nil
}

func (s *slowStorage) Save(_ context.Context, st State) error {
	time.Sleep(2 * time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("disk full")
	}
	s.saves = append(s.saves, st)
	return nil
}

func (s *slowStorage) last() (State, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saves) == 0 {
		return State{}, 0
	}
	return s.saves[len(s.saves)-1], len(s.saves)
}

func TestAsyncSaverWritesLatestState(t *testing.T) {
	storage := &slowStorage{}
	saver := NewAsyncSaver(storage, slog.New(slog.NewTextHandler(io.Discard, nil)))
	store := NewStore(State{}, saver)

	require.NoError(t, store.AddItem(r1, itemA))
	for range 20 {
		store.IncrementQuantity("a")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, saver.Flush(ctx))

	last, writes := storage.last()
	assert.LessOrEqual(t, writes, 21)
	require.Len(t, last.Cart.Items, 1)
	assert.Equal(t, 21, last.Cart.Items[0].Quantity)

	require.NoError(t, saver.Close(ctx))
}

func TestAsyncSaverErrorsDoNotBlockMutations(t *testing.T) {
	storage := &slowStorage{fail: true}
	saver := NewAsyncSaver(storage, slog.New(slog.NewTextHandler(io.Discard, nil)))
	store := NewStore(State{}, saver)

	require.NoError(t, store.AddItem(r1, itemA))
	store.IncrementQuantity("a")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, saver.Close(ctx))

	assert.Equal(t, 2, store.Cart().Items[0].Quantity)
	_, writes := storage.last()
	assert.Equal(t, 0, writes)
}
