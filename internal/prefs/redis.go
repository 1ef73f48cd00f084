package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "paradero:theme:"

// Redis stores themes as plain keys and publishes changes on a channel of
// the same name.
type Redis struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewRedis connects to a redis:// URL and pings it.
func NewRedis(ctx context.Context, url string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{rdb: rdb, logger: logger}, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func key(client string) string { return keyPrefix + client }

func (r *Redis) Get(ctx context.Context, client string) (Theme, error) {
	v, err := r.rdb.Get(ctx, key(client)).Result()
	if errors.Is(err, redis.Nil) {
		return ThemeUnset, nil
	}
	if err != nil {
		return ThemeUnset, fmt.Errorf("get theme: %w", err)
	}
	return Theme(v), nil
}

func (r *Redis) Toggle(ctx context.Context, client string) (Theme, error) {
	cur, err := r.Get(ctx, client)
	if err != nil {
		return ThemeUnset, err
	}
	next := cur.Toggled()
	if err := r.rdb.Set(ctx, key(client), string(next), 0).Err(); err != nil {
		return ThemeUnset, fmt.Errorf("set theme: %w", err)
	}
	if err := r.rdb.Publish(ctx, key(client), string(next)).Err(); err != nil {
		r.logger.Warn("publish theme change", "client", client, "error", err)
	}
	return next, nil
}

func (r *Redis) Subscribe(ctx context.Context, client string) (<-chan Theme, error) {
	sub := r.rdb.Subscribe(ctx, key(client))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe theme: %w", err)
	}

	out := make(chan Theme, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- Theme(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
