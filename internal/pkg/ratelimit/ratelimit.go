package ratelimit

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/storage/redis"

	"github.com/ManuelReschke/InvoiceFox/internal/pkg/cache"
	"github.com/ManuelReschke/InvoiceFox/internal/pkg/env"
)

// limiterDatabase keeps limiter counters away from the cache keyspace (DB 0).
const limiterDatabase = 1

type Config struct {
	Max        int
	Expiration time.Duration
}

// LoadConfig reads RATE_LIMIT_MAX and RATE_LIMIT_WINDOW.
func LoadConfig() Config {
	return Config{
		Max:        env.GetIntEnv("RATE_LIMIT_MAX", 30),
		Expiration: env.GetDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
	}
}

// NewStorage builds limiter storage on the Redis server the cache uses.
// It returns nil when that server is unreachable.
func NewStorage(ctx context.Context) fiber.Storage {
	cacheClient := cache.GetClient()
	if cacheClient == nil {
		return nil
	}
	if err := cacheClient.Ping(ctx).Err(); err != nil {
		log.Warnf("[RateLimit] Redis unavailable for limiter storage: %v", err)
		return nil
	}

	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(cacheClient.Options().Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	password := cacheClient.Options().Password
	if password == "" {
		password = env.GetEnv("CACHE_PASSWORD", "")
	}

	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: limiterDatabase,
		Reset:    false,
	})
}

// New returns a per-IP limiter. A nil storage falls back to fiber's in-memory store.
func New(cfg Config, storage fiber.Storage) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 30
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = time.Minute
	}
	if storage == nil {
		log.Warn("[RateLimit] No Redis storage, limits are tracked per instance")
	}
	return limiter.New(limiter.Config{
		Max:        cfg.Max,
		Expiration: cfg.Expiration,
		Storage:    storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "rate limit exceeded",
			})
		},
	})
}
