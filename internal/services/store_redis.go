package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOnceStore реалізація OnceStore для кількох інстансів.
// Consume використовує GETDEL, тому читання і видалення атомарні.
type RedisOnceStore struct {
	client redis.Cmdable
	prefix string
}

// NewRedisOnceStore створює нове сховище одноразових значень у Redis
func NewRedisOnceStore(client redis.Cmdable, prefix string) *RedisOnceStore {
	return &RedisOnceStore{client: client, prefix: prefix}
}

func (s *RedisOnceStore) Save(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save one-time value: %w", err)
	}
	return nil
}

func (s *RedisOnceStore) Consume(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume one-time value: %w", err)
	}
	return value, nil
}

// RedisCSRFStore реалізація CSRFStore у Redis. Прострочення робить сам Redis,
// тому Sweep нічого не видаляє.
type RedisCSRFStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisCSRFStore створює нове CSRF сховище у Redis
func NewRedisCSRFStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCSRFStore {
	return &RedisCSRFStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisCSRFStore) Put(ctx context.Context, entry CSRFEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode csrf entry: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+entry.Token, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store csrf entry: %w", err)
	}
	return nil
}

func (s *RedisCSRFStore) Get(ctx context.Context, token string) (*CSRFEntry, error) {
	payload, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load csrf entry: %w", err)
	}

	var entry CSRFEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode csrf entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisCSRFStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
