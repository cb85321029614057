package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"derogation-bot/internal/common/config"
	"derogation-bot/internal/dialogue"
)

const keyPrefix = "session:"

// RedisStore keeps snapshots in redis with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient opens a client for cfg.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Ping tests the Redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (dialogue.State, error) {
	raw, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return dialogue.Empty(), nil
	}
	if err != nil {
		return dialogue.Empty(), fmt.Errorf("get session %s: %w", id, err)
	}
	return decode(raw)
}

func (r *RedisStore) Set(ctx context.Context, id string, st dialogue.State) error {
	raw, err := encode(st)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, keyPrefix+id, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", id, err)
	}
	return nil
}

// Merge reads, patches and writes the snapshot inside an optimistic transaction.
func (r *RedisStore) Merge(ctx context.Context, id string, patch []byte) error {
	key := keyPrefix + id
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		merged, err := applyPatch(current, patch)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, merged, r.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < 3; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("merge session %s: %w", id, err)
		}
		return nil
	}
	return fmt.Errorf("merge session %s: %w", id, redis.TxFailedErr)
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
