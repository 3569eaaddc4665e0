package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis relies on native key expiry, so it does not implement Sweeper.
type Redis struct {
	cli *redis.Client
}

// NewRedis parses a redis:// URL and pings the server once.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	cli := redis.NewClient(opt)
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{cli: cli}, nil
}

func NewRedisFromClient(cli *redis.Client) *Redis {
	return &Redis{cli: cli}
}

func (r *Redis) Close() error { return r.cli.Close() }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.cli.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.cli.Set(ctx, key, value, clampTTL(ttl)).Err()
}

func (r *Redis) Swap(ctx context.Context, key string, old, value []byte, ttl time.Duration) error {
	if old == nil {
		ok, err := r.cli.SetNX(ctx, key, value, clampTTL(ttl)).Result()
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		return nil
	}
	err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrConflict
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(cur, old) {
			return ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, clampTTL(ttl))
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.cli.Del(ctx, key).Err()
}

// go-redis treats negative durations as KEEPTTL; we want "no expiry" instead.
func clampTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
