package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"logitrack/pkg/logger"
	"logitrack/pkg/models"
)

// OrderStore keeps the whole order collection as one JSON blob under a single
// key. Every write replaces the blob, so readers never see a partial
// collection. Writers in this process are serialized by mu.
type OrderStore struct {
	kv  IKeyValue
	key string
	log logger.ILogger

	mu sync.Mutex

	subsMu  sync.Mutex
	nextSub int
	subs    map[int]func([]models.Order)

	dirty     chan struct{}
	done      chan struct{}
	stopWatch func()
	closeOnce sync.Once
}

func NewOrderStore(kv IKeyValue, key string, log logger.ILogger) *OrderStore {
	s := &OrderStore{
		kv:    kv,
		key:   key,
		log:   log,
		subs:  make(map[int]func([]models.Order)),
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	s.stopWatch = kv.Watch(key, s.changed)
	go s.dispatch()
	return s
}

// Load returns the stored collection. An unreadable blob is reported as a
// warning and treated as an empty collection.
func (s *OrderStore) Load(ctx context.Context) ([]models.Order, error) {
	orders, err := s.LoadStrict(ctx)
	if errors.Is(err, models.ErrSerialization) {
		s.log.Warning("stored order collection is unreadable, treating as empty",
			logger.String("key", s.key), logger.Error(err))
		return []models.Order{}, nil
	}
	return orders, err
}

// LoadStrict is Load without the fail-closed fallback.
func (s *OrderStore) LoadStrict(ctx context.Context) ([]models.Order, error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}
	if !ok || len(data) == 0 {
		return []models.Order{}, nil
	}

	var orders []models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return []models.Order{}, fmt.Errorf("%w: %v", models.ErrSerialization, err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *OrderStore) Save(ctx context.Context, orders []models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, orders)
}

// Mutate runs a read-modify-write cycle under the writer lock. fn may return
// ErrSkipSave to leave the store untouched; Mutate then returns the current
// collection and no error.
func (s *OrderStore) Mutate(ctx context.Context, fn func(orders []models.Order) ([]models.Order, error)) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	next, err := fn(current)
	if errors.Is(err, ErrSkipSave) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Subscribe registers fn to receive a copy of the collection after each
// change. Callbacks run on a single dispatcher goroutine, never under the
// writer lock; bursts of changes may be coalesced into one call.
func (s *OrderStore) Subscribe(fn func(orders []models.Order)) func() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *OrderStore) Close() {
	s.closeOnce.Do(func() {
		s.stopWatch()
		close(s.done)
	})
}

func (s *OrderStore) save(ctx context.Context, orders []models.Order) error {
	if orders == nil {
		orders = []models.Order{}
	}
	data, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encode orders: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		s.log.Error("failed to save orders", logger.String("key", s.key), logger.Error(err))
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

func (s *OrderStore) changed() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

func (s *OrderStore) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case <-s.dirty:
		}

		orders, err := s.Load(context.Background())
		if err != nil {
			s.log.Error("failed to reload orders after change", logger.Error(err))
			continue
		}

		s.subsMu.Lock()
		fns := make([]func([]models.Order), 0, len(s.subs))
		for _, fn := range s.subs {
			fns = append(fns, fn)
		}
		s.subsMu.Unlock()

		for _, fn := range fns {
			fn(cloneOrders(orders))
		}
	}
}

func cloneOrders(orders []models.Order) []models.Order {
	out := make([]models.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
