// Package redis stores revoked session tokens in Redis. Every key carries
// a TTL equal to the token's remaining lifetime, so Redis expires rows on
// its own and the scheduled sweep has nothing to do.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "coop:blacklist:"

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type BlacklistRepository struct {
	client *goredis.Client
	clock  clockwork.Clock
}

func NewBlacklistRepository(client *goredis.Client, clock clockwork.Clock) *BlacklistRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &BlacklistRepository{client: client, clock: clock}
}

// Add stores token until expiresAt and reports whether this call created
// the key. Tokens already past their expiry are not stored: the gate
// rejects them on expiry alone.
func (r *BlacklistRepository) Add(ctx context.Context, token string, userID *uint, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.clock.Now())
	if ttl <= 0 {
		return true, nil
	}
	value := ""
	if userID != nil {
		value = strconv.FormatUint(uint64(*userID), 10)
	}
	created, err := r.client.SetNX(ctx, keyPrefix+token, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist token: %w", err)
	}
	return created, nil
}

func (r *BlacklistRepository) Contains(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("lookup blacklisted token: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired is a no-op; keys expire through their TTL.
func (r *BlacklistRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *BlacklistRepository) Close() error {
	return r.client.Close()
}
