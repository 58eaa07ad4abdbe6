package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      5,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		PoolSize:        10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// incrWindow increments the counter and arms its expiry when the counter is
// fresh, so the key's TTL is the window's reset time. A key that somehow lost
// its TTL is re-armed instead of counting forever.
var incrWindow = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if current == 1 or ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

type RedisLimiter struct {
	client redis.Scripter
	window Window
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.Scripter, window Window) (*RedisLimiter, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	return &RedisLimiter{
		client: client,
		window: window,
		prefix: "ratelimit:" + window.Name + ":",
		now:    time.Now,
	}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	values, err := incrWindow.Run(ctx, l.client, []string{l.prefix + key}, l.window.Period.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if len(values) != 2 {
		return Result{}, fmt.Errorf("unexpected rate limit script reply: %v", values)
	}

	count, ttl := values[0], values[1]
	return Result{
		Window:  l.window.Name,
		Count:   count,
		Limit:   l.window.Limit,
		ResetAt: l.now().Add(time.Duration(ttl) * time.Millisecond),
		Allowed: count <= l.window.Limit,
	}, nil
}
