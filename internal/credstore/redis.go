package credstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storrsec/internal/domain"
)

// RedisStore keeps each scope as one hash, so several server processes can
// share visitor storage
type RedisStore struct {
	client *redis.Client
	// expiry is refreshed on every write; zero means no expiry
	expiry time.Duration
}

// NewRedis wraps an existing client
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedis connects to addr and checks the connection
func OpenRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, domain.WrapCredentialStore("connect", err)
	}
	return NewRedis(client), nil
}

// WithExpiry makes every scope hash expire after d without writes. Redis
// evicts on its own, so this store needs no purge job.
func (s *RedisStore) WithExpiry(d time.Duration) *RedisStore {
	s.expiry = d
	return s
}

func hashKey(scope string) string {
	return "storage:" + scope
}

func (s *RedisStore) GetItem(ctx context.Context, scope, key string) (string, bool, error) {
	value, err := s.client.HGet(ctx, hashKey(scope), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.WrapCredentialStore("get", err)
	}
	return value, true, nil
}

func (s *RedisStore) SetItem(ctx context.Context, scope, key, value string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hashKey(scope), key, value)
		if s.expiry > 0 {
			pipe.Expire(ctx, hashKey(scope), s.expiry)
		}
		return nil
	})
	if err != nil {
		return domain.WrapCredentialStore("set", err)
	}
	return nil
}

func (s *RedisStore) RemoveItem(ctx context.Context, scope, key string) error {
	if err := s.client.HDel(ctx, hashKey(scope), key).Err(); err != nil {
		return domain.WrapCredentialStore("remove", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
