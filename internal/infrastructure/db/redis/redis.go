package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTimeout = 5 * time.Second
	clientName     = "backoffice"
)

// Config describes the Redis instance that holds idempotency keys.
type Config struct {
	Addr     string
	Password string
	DB       int
	// Timeout bounds the initial ping and every read and write.
	Timeout time.Duration
	// PoolSize of zero keeps the go-redis default.
	PoolSize int
}

func (cfg Config) options() (*redis.Options, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis: addr is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   clientName,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		PoolSize:     cfg.PoolSize,
	}, nil
}

// Connect opens a client and pings it once; a client that cannot answer is
// closed before the error is returned.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}
