package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the session store's redis connection. URL, when
// set, takes precedence over Addr, Password and DB.
type RedisConfig struct {
	URL      string
	Addr     string
	Password string
	DB       int

	// Session reads and writes are single small keys; keep timeouts short so
	// a stuck redis degrades a request instead of hanging it.
	DialTimeout time.Duration
	IOTimeout   time.Duration
	PingTimeout time.Duration

	PoolSize        int
	ConnMaxIdleTime time.Duration
}

func (c RedisConfig) options() (*redis.Options, error) {
	var opts *redis.Options
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts = parsed
	} else {
		if c.Addr == "" {
			return nil, fmt.Errorf("redis addr is required")
		}
		opts = &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	}

	opts.DialTimeout = durationOr(c.DialTimeout, 3*time.Second)
	io := durationOr(c.IOTimeout, 2*time.Second)
	opts.ReadTimeout, opts.WriteTimeout = io, io
	opts.PoolTimeout = io + time.Second
	opts.ConnMaxIdleTime = durationOr(c.ConnMaxIdleTime, 5*time.Minute)
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	} else {
		opts.PoolSize = 20
	}
	return opts, nil
}

// OpenRedis connects and verifies the server answers PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, durationOr(cfg.PingTimeout, 2*time.Second))
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
