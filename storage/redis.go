package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Remote and Drafts on top of Redis.
// Remote blobs are hashes under "<prefix>blob:<name>" with "content" and
// "version" fields; conditional writes use WATCH/MULTI so a concurrent
// writer aborts the transaction. Drafts are plain string keys under
// "<prefix>draft:<key>".
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cookbook:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) blobKey(name string) string {
	return r.prefix + "blob:" + name
}

func (r *RedisStore) draftKey(key string) string {
	return r.prefix + "draft:" + key
}

// ReadBlob implements Remote.ReadBlob
func (r *RedisStore) ReadBlob(ctx context.Context, name string) (Blob, error) {
	vals, err := r.client.HGetAll(ctx, r.blobKey(name)).Result()
	if err != nil {
		return Blob{}, fmt.Errorf("redis read %s: %w", name, err)
	}
	if len(vals) == 0 {
		return Blob{}, nil
	}
	return Blob{Content: []byte(vals["content"]), Version: vals["version"]}, nil
}

// WriteBlob implements Remote.WriteBlob
func (r *RedisStore) WriteBlob(ctx context.Context, name string, content []byte, expectedVersion string) (string, error) {
	key := r.blobKey(name)
	var next string
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "version").Result()
		if errors.Is(err, redis.Nil) {
			current = ""
		} else if err != nil {
			return err
		}
		if current != expectedVersion {
			return fmt.Errorf("blob %s at version %q, expected %q: %w", name, current, expectedVersion, ErrVersionConflict)
		}

		n := 0
		if current != "" {
			n, err = strconv.Atoi(current)
			if err != nil {
				return fmt.Errorf("corrupt version %q for blob %s: %w", current, name, err)
			}
		}
		next = strconv.Itoa(n + 1)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "content", content, "version", next)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return "", fmt.Errorf("blob %s modified during write: %w", name, ErrVersionConflict)
	}
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return "", err
		}
		return "", fmt.Errorf("redis write %s: %w", name, err)
	}
	return next, nil
}

// Get implements Drafts.Get
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, r.draftKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Set implements Drafts.Set
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.draftKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
