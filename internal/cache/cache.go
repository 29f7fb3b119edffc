// cache — кэш положительных результатов проверки blacklist в Redis.
//
// В кэш попадают только заблокированные токены: промах всегда
// проверяется по БД, поэтому устаревший кэш не может «разблокировать» токен.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-invoicing-auth/internal/models"
)

// BlacklistCache — минимальный контракт кэша blacklist.
type BlacklistCache interface {
	// Add кэширует запись до её ExpiresAt. Истёкшие записи игнорируются.
	Add(ctx context.Context, entry *models.BlacklistEntry) error
	// Contains сообщает, есть ли хэш в кэше.
	Contains(ctx context.Context, hash string) (bool, error)
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:bl:".
func NewRedisCache(ctx context.Context, redisURL, prefix string) (BlacklistCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return newRedisCache(rdb, prefix), nil
}

func newRedisCache(rdb *redis.Client, prefix string) *redisCache {
	if prefix == "" {
		prefix = "auth:bl:"
	}

	return &redisCache{rdb: rdb, prefix: prefix, now: time.Now}
}

func (c *redisCache) key(hash string) string { return c.prefix + hash }

// Храним как Redis Hash с полями typ, rsn; TTL совпадает со сроком токена.
func (c *redisCache) Add(ctx context.Context, entry *models.BlacklistEntry) error {
	ttl := entry.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	kv := map[string]string{
		"typ": string(entry.TokenType),
		"rsn": entry.Reason,
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, c.key(entry.TokenHash), kv)
	pipe.Expire(ctx, c.key(entry.TokenHash), ttl)

	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) Contains(ctx context.Context, hash string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(hash)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (c *redisCache) Close() error { return c.rdb.Close() }
