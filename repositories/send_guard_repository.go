package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

type RedisSendGuardStore struct {
	client *redis.Client
}

func NewRedisSendGuardStore(client *redis.Client) *RedisSendGuardStore {
	return &RedisSendGuardStore{client: client}
}

func (rs *RedisSendGuardStore) SetIfAbsent(ctx context.Context, key string, at time.Time, ttl time.Duration) (bool, error) {
	return rs.client.SetNX(ctx, key, at.UTC().Format(time.RFC3339), ttl).Result()
}

func (rs *RedisSendGuardStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := rs.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (rs *RedisSendGuardStore) Delete(ctx context.Context, key string) error {
	return rs.client.Del(ctx, key).Err()
}

// MemorySendGuardStore keeps marks in process memory until they expire.
type MemorySendGuardStore struct {
	mu    sync.Mutex
	marks map[string]time.Time
	now   func() time.Time
}

func NewMemorySendGuardStore() *MemorySendGuardStore {
	return &MemorySendGuardStore{
		marks: make(map[string]time.Time),
		now:   time.Now,
	}
}

func (ms *MemorySendGuardStore) SetIfAbsent(ctx context.Context, key string, at time.Time, ttl time.Duration) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if expiresAt, ok := ms.marks[key]; ok && ms.now().Before(expiresAt) {
		return false, nil
	}
	ms.marks[key] = ms.now().Add(ttl)
	return true, nil
}

func (ms *MemorySendGuardStore) Exists(ctx context.Context, key string) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	expiresAt, ok := ms.marks[key]
	return ok && ms.now().Before(expiresAt), nil
}

func (ms *MemorySendGuardStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.marks, key)
	return nil
}

// Prune drops expired marks and returns how many were removed.
func (ms *MemorySendGuardStore) Prune() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for key, expiresAt := range ms.marks {
		if !now.Before(expiresAt) {
			delete(ms.marks, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of marks held, expired or not.
func (ms *MemorySendGuardStore) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.marks)
}
