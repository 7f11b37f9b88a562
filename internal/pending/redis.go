package pending

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/redis"
	"github.com/google/uuid"
)

// RedisClient is the subset of pkg/redis used by RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	PendingKey(clientID, slot string) string
	LockKey(clientID, slot string) string
}

// RedisStore keeps the slot in Redis so several processes for one client share it.
// It implements Locker with a SETNX lease.
type RedisStore struct {
	client   RedisClient
	clientID string
	lockTTL  time.Duration
}

func NewRedisStore(client RedisClient, clientID string, lockTTL time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	if lockTTL <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	return &RedisStore{client: client, clientID: clientID, lockTTL: lockTTL}, nil
}

func (s *RedisStore) key() string {
	return s.client.PendingKey(s.clientID, SlotName)
}

func (s *RedisStore) Read(ctx context.Context) (*Record, error) {
	value, err := s.client.Get(ctx, s.key())
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read pending record")
	}
	return Decode([]byte(value))
}

func (s *RedisStore) Write(ctx context.Context, record Record) error {
	raw, err := Encode(record)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(), string(raw), 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write pending record")
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear pending record")
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Lock takes the slot lease or fails with STATE_CONFLICT when another process holds it.
func (s *RedisStore) Lock(ctx context.Context) (func(context.Context) error, error) {
	lockKey := s.client.LockKey(s.clientID, SlotName)
	token := uuid.NewString()
	acquired, err := s.client.SetNX(ctx, lockKey, token, s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire pending lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "another session is handling this payment")
	}
	return func(ctx context.Context) error {
		if _, err := s.client.ReleaseLock(ctx, lockKey, token); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release pending lock")
		}
		return nil
	}, nil
}
