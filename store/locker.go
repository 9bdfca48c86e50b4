package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLocker serializes sequence work per prospect across executor runs and
// across processes. SETNX with a TTL gives an in-flight marker that a crashed
// run cannot hold forever.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func lockKey(campaignID, prospectID uint) string {
	return fmt.Sprintf("seq:lock:%d:%d", campaignID, prospectID)
}

func (l *RedisLocker) Acquire(ctx context.Context, campaignID, prospectID uint, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, lockKey(campaignID, prospectID), 1, ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, campaignID, prospectID uint) error {
	return l.client.Del(ctx, lockKey(campaignID, prospectID)).Err()
}

// LocalLocker is the single-process fallback when Redis is not configured.
// It provides the same at-most-once property within one instance; running
// multiple instances without Redis is unsupported.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(_ context.Context, campaignID, prospectID uint, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := lockKey(campaignID, prospectID)
	if _, taken := l.keys[key]; taken {
		return false, nil
	}
	l.keys[key] = struct{}{}
	return true, nil
}

func (l *LocalLocker) Release(_ context.Context, campaignID, prospectID uint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, lockKey(campaignID, prospectID))
	return nil
}
