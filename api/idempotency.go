package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// HeaderIdempotencyKey lets clients retry task creation without creating duplicates.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	dedupeKeyPrefix   = "idempotency"
	maxIdempotencyKey = 128
)

// Deduper records idempotency keys per user.
type Deduper interface {
	Add(ctx context.Context, userID, key string) (bool, error)
	Remove(ctx context.Context, userID, key string) error
}

// RedisDeduper stores seen idempotency keys in Redis so every instance
// rejects the same retry.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(userID, key string) string {
	return dedupeKeyPrefix + ":" + userID + ":" + key
}

// Add records the key and reports whether it was new.
func (r *RedisDeduper) Add(ctx context.Context, userID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(userID, key), 1, r.ttl).Result()
}

// Remove forgets a key so a failed request can be retried.
func (r *RedisDeduper) Remove(ctx context.Context, userID, key string) error {
	return r.client.Del(ctx, r.key(userID, key)).Err()
}

// idempotent rejects a repeated Idempotency-Key with 409. Requests without
// the header pass through, and a Redis outage never blocks a request.
func idempotent(d Deduper, logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get(HeaderIdempotencyKey))
			if d == nil || key == "" {
				return next(c)
			}
			if len(key) > maxIdempotencyKey {
				return echo.NewHTTPError(http.StatusBadRequest, "Idempotency-Key too long")
			}
			ctx := c.Request().Context()
			userID := currentUser(c)
			added, err := d.Add(ctx, userID, key)
			if err != nil {
				logger.WithError(err).Warn("idempotency check unavailable")
				return next(c)
			}
			if !added {
				return echo.NewHTTPError(http.StatusConflict, "Duplicate request")
			}
			if err := next(c); err != nil {
				if rerr := d.Remove(ctx, userID, key); rerr != nil {
					logger.WithError(rerr).Warn("unable to release idempotency key")
				}
				return err
			}
			return nil
		}
	}
}
