package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

// Cache wraps a Store with Redis-backed caching for user lookups. Cached
// users never carry a password hash; credential checks go through
// GetUserByEmail, which always reads the backing store.
type Cache struct {
	Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching Store wrapper using the provided Redis client and TTL.
func NewCache(base Store, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{Store: base, redis: client, ttl: ttl}
}

func (c *Cache) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var cached domain.User
	if c.load(ctx, userCacheKey(id), &cached) {
		return &cached, nil
	}
	u, err := c.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userCacheKey(id), u)
	return u, nil
}

func (c *Cache) ListUsers(ctx context.Context) ([]domain.User, error) {
	var cached []domain.User
	if c.load(ctx, directoryCacheKey, &cached) {
		return cached, nil
	}
	users, err := c.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, directoryCacheKey, users)
	return users, nil
}

func (c *Cache) InsertUser(ctx context.Context, u domain.User) error {
	if err := c.Store.InsertUser(ctx, u); err != nil {
		return err
	}
	c.evict(ctx, directoryCacheKey)
	return nil
}

func (c *Cache) UpdateUser(ctx context.Context, u domain.User, previousEmail string) error {
	if err := c.Store.UpdateUser(ctx, u, previousEmail); err != nil {
		return err
	}
	c.evict(ctx, userCacheKey(u.ID), directoryCacheKey)
	return nil
}

func (c *Cache) load(ctx context.Context, key string, dst any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, dst); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

const directoryCacheKey = "users:directory"

func userCacheKey(id string) string {
	return "user:" + id
}
