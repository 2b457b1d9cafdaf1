package storage

import (
	"context"
	"errors"

	"logitrack/pkg/logger"
	"logitrack/pkg/models"
)

// ErrSkipSave returned from a Mutate callback leaves the collection untouched.
var ErrSkipSave = errors.New("skip save")

type IStorage interface {
	Order() IOrderStorage
	KV() IKeyValue
	Close()
}

// IKeyValue is the persistence boundary. Watch callbacks fire after a Set on
// key completed, in this process or, for shared backends, in another one.
type IKeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Watch(key string, fn func()) (stop func())
	Close()
}

type IOrderStorage interface {
	Load(ctx context.Context) ([]models.Order, error)
	LoadStrict(ctx context.Context) ([]models.Order, error)
	Save(ctx context.Context, orders []models.Order) error
	Mutate(ctx context.Context, fn func(orders []models.Order) ([]models.Order, error)) ([]models.Order, error)
	Subscribe(fn func(orders []models.Order)) (unsubscribe func())
}

type store struct {
	kv     IKeyValue
	orders *OrderStore
}

func New(kv IKeyValue, key string, log logger.ILogger) IStorage {
	return &store{
		kv:     kv,
		orders: NewOrderStore(kv, key, log),
	}
}

func (s *store) Order() IOrderStorage { return s.orders }
func (s *store) KV() IKeyValue         { return s.kv }

func (s *store) Close() {
	s.orders.Close()
	s.kv.Close()
}
