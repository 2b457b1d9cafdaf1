package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"logitrack/config"
	"logitrack/pkg/logger"
	"logitrack/storage"
)

// Store keeps values as plain redis strings. Every SET is paired with a
// PUBLISH of the key on a shared channel inside one MULTI block.
type Store struct {
	rdb      *redis.Client
	sub      *redis.PubSub
	channel  string
	log      logger.ILogger
	watchers storage.Watchers
	done     chan struct{}
}

var _ storage.IKeyValue = (*Store)(nil)

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		log.Error("failed to connect Redis", logger.Error(err))
		return nil, err
	}

	sub := rdb.Subscribe(ctx, cfg.RedisChannel)
	// wait for the subscription confirmation so no change is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		_ = rdb.Close()
		log.Error("failed to subscribe Redis channel", logger.String("channel", cfg.RedisChannel), logger.Error(err))
		return nil, err
	}

	log.Info("Redis connected", logger.String("channel", cfg.RedisChannel))

	s := &Store{
		rdb:     rdb,
		sub:     sub,
		channel: cfg.RedisChannel,
		log:     log,
		done:    make(chan struct{}),
	}
	go s.listen()
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		s.log.Error("failed to get key", logger.String("key", key), logger.Error(err))
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, 0)
		pipe.Publish(ctx, s.channel, key)
		return nil
	})
	if err != nil {
		s.log.Error("failed to set key", logger.String("key", key), logger.Error(err))
	}
	return err
}

func (s *Store) Watch(key string, fn func()) func() {
	return s.watchers.Add(key, fn)
}

func (s *Store) Close() {
	_ = s.sub.Close()
	<-s.done
	_ = s.rdb.Close()
}

func (s *Store) listen() {
	defer close(s.done)
	for msg := range s.sub.Channel() {
		s.watchers.Notify(msg.Payload)
	}
}
