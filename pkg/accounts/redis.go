package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis reads sessions from hashes <prefix>:<ref> with fields user_id, platform, username and status.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis connects to redisURL and pings it.
func NewRedis(ctx context.Context, redisURL, prefix string) (*Redis, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisWithClient(client, prefix), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "sessions"
	}

	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Lookup(ctx context.Context, accountRef string) (*Account, error) {
	fields, err := r.client.HGetAll(ctx, r.prefix+":"+accountRef).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", accountRef, err)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountRef)
	}

	return &Account{
		Ref:      accountRef,
		UserID:   fields["user_id"],
		Platform: fields["platform"],
		Username: fields["username"],
		Status:   SessionStatus(fields["status"]),
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
