package repositories

import (
	"context"
	"sync"
	"time"

	"schoolfee/interfaces"

	"github.com/go-redis/redis/v8"
)

// incrementIfBelowScript checks every KEYS[i] against ARGV[2i-1] and, only if
// all are below their limit, increments each and sets its TTL (ARGV[2i], ms).
var incrementIfBelowScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	local current = tonumber(redis.call("GET", key) or "0")
	if current >= tonumber(ARGV[2*i-1]) then
		return 0
	end
end
for i, key in ipairs(KEYS) do
	local value = redis.call("INCR", key)
	if value == 1 then
		redis.call("PEXPIRE", key, ARGV[2*i])
	end
end
return 1
`)

type RedisCounterStore struct {
	client *redis.Client
}

func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (rs *RedisCounterStore) IncrementIfBelow(ctx context.Context, counters []interfaces.WindowCounter) (bool, error) {
	if len(counters) == 0 {
		return true, nil
	}

	keys := make([]string, 0, len(counters))
	args := make([]interface{}, 0, len(counters)*2)
	for _, c := range counters {
		keys = append(keys, c.Key)
		args = append(args, c.Limit, c.TTL.Milliseconds())
	}

	result, err := incrementIfBelowScript.Run(ctx, rs.client, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (rs *RedisCounterStore) Get(ctx context.Context, key string) (int64, error) {
	value, err := rs.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return value, err
}

// MemoryCounterStore is the single-process CounterStore.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: make(map[string]*memoryCounter),
		now:      time.Now,
	}
}

func (ms *MemoryCounterStore) IncrementIfBelow(ctx context.Context, counters []interfaces.WindowCounter) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	for _, c := range counters {
		if ms.valueLocked(c.Key, now) >= c.Limit {
			return false, nil
		}
	}

	for _, c := range counters {
		counter, ok := ms.counters[c.Key]
		if !ok || !now.Before(counter.expiresAt) {
			counter = &memoryCounter{expiresAt: now.Add(c.TTL)}
			ms.counters[c.Key] = counter
		}
		counter.value++
	}
	return true, nil
}

func (ms *MemoryCounterStore) Get(ctx context.Context, key string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.valueLocked(key, ms.now()), nil
}

// Prune drops expired counters and returns how many were removed.
func (ms *MemoryCounterStore) Prune() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := ms.now()
	removed := 0
	for key, counter := range ms.counters {
		if !now.Before(counter.expiresAt) {
			delete(ms.counters, key)
			removed++
		}
	}
	return removed
}

func (ms *MemoryCounterStore) valueLocked(key string, now time.Time) int64 {
	counter, ok := ms.counters[key]
	if !ok || !now.Before(counter.expiresAt) {
		return 0
	}
	return counter.value
}
