package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/hospital-scheduling/internal/config"
)

const pingTimeout = 5 * time.Second

// Options holds the connection settings for the schedule-lock store.
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	PoolSize int
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	}
}

// Lock commands are tiny, so reads and writes get short timeouts; a slow Redis
// should surface as a failed shift mutation rather than a stuck request.
func (o Options) redisOptions() *redis.Options {
	poolSize := o.PoolSize
	if poolSize <= 0 {
		poolSize = 20
	}
	return &redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		PoolSize:     poolSize,
		MinIdleConns: 1,
	}
}

// NewRedisClient connects and pings; the caller owns Close.
func NewRedisClient(ctx context.Context, opts Options) (*redis.Client, error) {
	rdb := redis.NewClient(opts.redisOptions())

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	return rdb, nil
}
