package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage keeps one session's cart in Redis under <prefix>:cart and
// <prefix>:restaurant.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStorage(client *redis.Client, prefix string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStorage) key(name string) string {
	return fmt.Sprintf("%s:%s", s.prefix, name)
}

func (s *RedisStorage) Load(ctx context.Context) (State, error) {
	items, err := s.get(ctx, CartKey)
	if err != nil {
		return State{}, err
	}
	restaurant, err := s.get(ctx, RestaurantKey)
	if err != nil {
		return State{}, err
	}
	return decode(items, restaurant)
}

func (s *RedisStorage) get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s failed: %w", name, err)
	}
	return data, nil
}

func (s *RedisStorage) Save(ctx context.Context, st State) error {
	items, restaurant, err := encode(st)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(CartKey), items, s.ttl)
		if restaurant == nil {
			pipe.Del(ctx, s.key(RestaurantKey))
		} else {
			pipe.Set(ctx, s.key(RestaurantKey), restaurant, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save cart failed: %w", err)
	}
	return nil
}
