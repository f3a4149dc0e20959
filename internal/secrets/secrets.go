// internal/secrets/secrets.go

// Package secrets keeps runtime credentials such as the mail provider key out
// of the config file. Values are written once by an operator and read at
// startup.
package secrets

import (
	"context"
	"errors"

	errs "clinic-reminders/internal/common/errors"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "clinic:secret:"

// Store reads and writes named secrets.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
	SetSecret(ctx context.Context, name, value string) error
}

// RedisStore keeps secrets in Redis under a fixed key prefix.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetSecret(ctx context.Context, name string) (string, error) {
	val, err := s.client.Get(ctx, keyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", errs.NewNotFoundError("secret", name)
	}
	if err != nil {
		return "", errs.NewStorageError(err)
	}
	return val, nil
}

func (s *RedisStore) SetSecret(ctx context.Context, name, value string) error {
	if err := s.client.Set(ctx, keyPrefix+name, value, 0).Err(); err != nil {
		return errs.NewStorageError(err)
	}
	return nil
}
