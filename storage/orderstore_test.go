package storage_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logitrack/pkg/logger"
	"logitrack/pkg/models"
	"logitrack/storage"
	"logitrack/storage/memory"
)

const key = "logitrack_orders"

func newStore(t *testing.T) (*storage.OrderStore, *memory.Store) {
	t.Helper()
	kv := memory.New()
	s := storage.NewOrderStore(kv, key, logger.NewNop())
	t.Cleanup(s.Close)
	return s, kv
}

func TestOrderStore_EmptyLoad(t *testing.T) {
	s, _ := newStore(t)

	orders, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, orders)
	assert.Empty(t, orders)
}

func TestOrderStore_SaveLoadWireShape(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	in := []models.Order{{
		ID:               "a",
		OrderCode:        "ORD-1",
		CustomerName:     "Alice",
		City:             "Riyadh",
		Quantity:         2,
		Status:           models.StatusOutForDelivery,
		CustomerLocation: &models.Location{Lat: 24.71, Lng: 46.68},
		UpdatedAt:        1700000000000,
	}}
	require.NoError(t, s.Save(ctx, in))

	raw, ok, err := kv.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"id":"a","orderCode":"ORD-1","customerName":"Alice","city":"Riyadh","quantity":2,
		"status":"Out for Delivery","customerLocation":{"lat":24.71,"lng":46.68},"updatedAt":1700000000000}]`, string(raw))

	out, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestOrderStore_CorruptBlobFailsClosed(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)
	require.NoError(t, kv.Set(ctx, key, []byte("{not json")))

	orders, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = s.LoadStrict(ctx)
	assert.True(t, errors.Is(err, models.ErrSerialization))
}

func TestOrderStore_MutateSkipSave(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	var writes int
	kv.Watch(key, func() { writes++ })

	_, err := s.Mutate(ctx, func(orders []models.Order) ([]models.Order, error) {
		return orders, storage.ErrSkipSave
	})
	require.NoError(t, err)
	assert.Zero(t, writes)

	boom := errors.New("boom")
	_, err = s.Mutate(ctx, func(orders []models.Order) ([]models.Order, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, writes)
}

func TestOrderStore_MutateSerializesWriters(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Mutate(ctx, func(orders []models.Order) ([]models.Order, error) {
				return append(orders, models.Order{ID: fmt.Sprint(i)}), nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	orders, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, writers)
}

func TestOrderStore_SubscribeReceivesSavedCollection(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	got := make(chan []models.Order, 8)
	unsubscribe := s.Subscribe(func(orders []models.Order) { got <- orders })

	require.NoError(t, s.Save(ctx, []models.Order{{ID: "x", OrderCode: "ORD-9"}}))

	select {
	case orders := <-got:
		require.Len(t, orders, 1)
		assert.Equal(t, "ORD-9", orders[0].OrderCode)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}

	unsubscribe()
	require.NoError(t, s.Save(ctx, nil))
	select {
	case <-got:
		t.Fatal("notified after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOrderStore_SubscriberMayWrite(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	done := make(chan struct{})
	var once sync.Once
	s.Subscribe(func(orders []models.Order) {
		if len(orders) == 1 {
			_, err := s.Mutate(ctx, func(orders []models.Order) ([]models.Order, error) {
				return append(orders, models.Order{ID: "second"}), nil
			})
			assert.NoError(t, err)
			once.Do(func() { close(done) })
		}
	})

	require.NoError(t, s.Save(ctx, []models.Order{{ID: "first"}}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber write deadlocked")
	}
	orders, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}
