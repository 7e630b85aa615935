package cache

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DateTTL is how long a sniffed publish date stays cached.
const DateTTL = 7 * 24 * time.Hour

// missing marks URLs whose page carried no usable date.
const missing = "-"

// Cache stores publish dates sniffed from article pages, keyed by URL, so
// repeated date-filtered runs do not refetch the same pages.
type Cache struct {
	client *redis.Client
}

func NewCache(ctx context.Context, addr string) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", addr)

	return &Cache{client: client}, nil
}

// DateKey generates a consistent cache key for an article URL
func DateKey(articleURL string) string {
	hash := sha256.Sum256([]byte(articleURL))
	return fmt.Sprintf("pubdate:%x", hash[:12])
}

// GetPublishedAt returns the cached date for url. found is true for a cached
// miss too, with an empty date.
func (c *Cache) GetPublishedAt(ctx context.Context, articleURL string) (date string, found bool, err error) {
	val, err := c.client.Get(ctx, DateKey(articleURL)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get publish date: %w", err)
	}
	if val == missing {
		return "", true, nil
	}
	return val, true, nil
}

// SetPublishedAt caches date for url. An empty date records a miss with a
// shorter TTL so pages that later gain metadata get another look.
func (c *Cache) SetPublishedAt(ctx context.Context, articleURL, date string) error {
	value, ttl := date, DateTTL
	if date == "" {
		value, ttl = missing, DateTTL/7
	}
	if err := c.client.Set(ctx, DateKey(articleURL), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set publish date: %w", err)
	}
	return nil
}

func (c *Cache) Health(ctx context.Context) map[string]any {
	health := map[string]any{
		"status": "healthy",
		"type":   "redis",
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		health["status"] = "unhealthy"
		health["error"] = err.Error()
		return health
	}

	if size, err := c.client.DBSize(ctx).Result(); err == nil {
		health["key_count"] = size
	}
	return health
}

func (c *Cache) Close() error {
	return c.client.Close()
}
