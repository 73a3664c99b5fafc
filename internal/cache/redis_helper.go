package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autopo-forecast/backend-go/internal/config"
)

const (
	defaultCacheTTL   = time.Hour
	redisPingTimeout  = 5 * time.Second
	defaultRedisHost  = "127.0.0.1"
	defaultRedisPort  = "6379"
	redisDialTimeout  = 3 * time.Second
	redisReadTimeout  = 2 * time.Second
	redisWriteTimeout = 2 * time.Second
)

// newRedisClient dials redis and returns the client with the result TTL
// resolved from config.
func newRedisClient(cfg config.CacheConfig) (*redis.Client, time.Duration, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, 0, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, 0, fmt.Errorf("redis ping %s failed: %w", opts.Addr, err)
	}

	return client, resultTTL(cfg.ResultTTLSeconds), nil
}

func resultTTL(seconds int) time.Duration {
	if seconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(seconds) * time.Second
}

// buildRedisOptions prefers REDIS_URL; otherwise host and port fall back to
// a local instance.
func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		host, port := cfg.RedisHost, cfg.RedisPort
		if host == "" {
			host = defaultRedisHost
		}
		if port == "" {
			port = defaultRedisPort
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opts.DialTimeout = redisDialTimeout
	opts.ReadTimeout = redisReadTimeout
	opts.WriteTimeout = redisWriteTimeout
	return opts, nil
}

// deleteKeysWithPrefix walks the keyspace with SCAN and removes matches in
// pipelined batches.
func deleteKeysWithPrefix(ctx context.Context, client *redis.Client, prefix string, batchSize int64) error {
	iter := client.Scan(ctx, 0, prefix+"*", batchSize).Iterator()

	batch := make([]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		_, err := client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, batch...)
			return nil
		})
		batch = batch[:0]
		if err != nil {
			return fmt.Errorf("redis delete failed: %w", err)
		}
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if int64(len(batch)) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	return flush()
}
