package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheRepository wraps redis for the Catalog's read cache and the
// reminder-dispatch dedupe set.
type CacheRepository struct {
	client *redis.Client
}

func NewCacheRepository(client *redis.Client) *CacheRepository {
	return &CacheRepository{client: client}
}

// Set stores value (already serialized by the caller) under key with a TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Get returns the raw cached value, or redis.Nil if absent.
func (r *CacheRepository) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Delete removes a key, used on CatalogInvalidated.
func (r *CacheRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// DeletePrefix scans and deletes every key matching a prefix, used to
// invalidate the whole catalog cache in one shot.
func (r *CacheRepository) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return r.Delete(ctx, keys...)
}

// MarkReminded records, with a generous TTL, that a booking has already
// had its reminder dispatched, so a crashed-and-restarted worker doesn't
// double-send. Returns true if this call is the first to mark it.
func (r *CacheRepository) MarkReminded(ctx context.Context, bookingID string) (bool, error) {
	ok, err := r.client.SetNX(ctx, "reminder:sent:"+bookingID, "1", 48*time.Hour).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
