package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/webitel/rocrate-exporter/internal/cache"
	"github.com/webitel/rocrate-exporter/internal/model"
)

const (
	keyPrefix  = "rocrate_exporter:job:"
	maxRetries = 16

	// staleAfter bounds the life of a job that never reached a terminal phase,
	// e.g. because the process running it exited.
	staleAfter = 24 * time.Hour
)

var _ cache.JobStore = (*RedisCache)(nil)

// RedisCache shares job states between exporter instances. Terminal states expire
// through a key TTL equal to the retention window.
type RedisCache struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisCache(addr, password string, db int, retention time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Ping Redis to check the connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return &RedisCache{client: rdb, retention: retention}, nil
}

func (r *RedisCache) Create(ctx context.Context, state *model.JobState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, jobKey(state.JobID), payload, staleAfter).Result()
	if err != nil {
		return err
	}
	if !ok {
		return cache.ErrExists
	}
	return nil
}

func (r *RedisCache) Update(ctx context.Context, jobID string, fn func(*model.JobState) bool) error {
	key := jobKey(jobID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return cache.ErrNotFound
			}
			return err
		}
		var state model.JobState
		if err := json.Unmarshal(data, &state); err != nil {
			return err
		}
		if !fn(&state) {
			return nil
		}
		payload, err := json.Marshal(&state)
		if err != nil {
			return err
		}

		ttl := time.Duration(redis.KeepTTL)
		if state.Phase.Terminal() {
			ttl = r.retention
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update job %s: too much contention", jobID)
}

func (r *RedisCache) Get(ctx context.Context, jobID string) (*model.JobState, error) {
	data, err := r.client.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}
	var state model.JobState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *RedisCache) Delete(ctx context.Context, jobID string) error {
	return r.client.Del(ctx, jobKey(jobID)).Err()
}

// Sweep is a no-op: terminal keys expire on their own.
func (r *RedisCache) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

// helper to standardize keys
func jobKey(id string) string {
	return keyPrefix + id
}
