package repositories

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"schoolfee/models"

	"github.com/go-redis/redis/v8"
)

const (
	deliveryKeyPrefix = "delivery:"
	earlyKeyPrefix    = "delivery:early:"
	runKeyPrefix      = "run:"
	pendingRunsKey    = "runs:pending"
	trackedTTL        = 72 * time.Hour
	earlyStatusTTL    = time.Hour
)

// trackDeliveryScript maps KEYS[1] (a delivery) to run ARGV[1] and bumps the
// run's pending count. A status already held at KEYS[2] is applied to the
// run KEYS[3] instead and returned.
var trackDeliveryScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[3]) == 0 then
	return redis.error_reply("run is not open")
end
local early = redis.call("GET", KEYS[2])
if early then
	redis.call("DEL", KEYS[2])
	if early ~= "1" then
		redis.call("HSET", KEYS[3], "failed", "1")
	end
	return early
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("HINCRBY", KEYS[3], "pending", 1)
return false
`)

// closeRunScript marks KEYS[1] closed and returns its pending count.
var closeRunScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return redis.error_reply("run is not open")
end
redis.call("HSET", KEYS[1], "closed", "1")
if ARGV[1] == "1" then
	redis.call("HSET", KEYS[1], "failed", "1")
end
return tonumber(redis.call("HGET", KEYS[1], "pending") or "0")
`)

// resolveDeliveryScript consumes KEYS[1] (a delivery) and decrements its
// run's pending count. ARGV[1] is "1" for delivered, ARGV[2] the run key
// prefix. An unknown delivery holds its status at KEYS[2] for ARGV[3] ms.
// Returns {runID, remaining, closed} or nil.
var resolveDeliveryScript = redis.NewScript(`
local runID = redis.call("GET", KEYS[1])
if not runID then
	redis.call("SET", KEYS[2], ARGV[1], "PX", ARGV[3])
	return false
end
redis.call("DEL", KEYS[1])
local runKey = ARGV[2] .. runID
if redis.call("EXISTS", runKey) == 0 then
	return false
end
if ARGV[1] ~= "1" then
	redis.call("HSET", runKey, "failed", "1")
end
local remaining = redis.call("HINCRBY", runKey, "pending", -1)
local closed = 0
if redis.call("HGET", runKey, "closed") == "1" then
	closed = 1
end
return {runID, remaining, closed}
`)

type RedisDeliveryTracker struct {
	client *redis.Client
}

func NewRedisDeliveryTracker(client *redis.Client) *RedisDeliveryTracker {
	return &RedisDeliveryTracker{client: client}
}

func (rt *RedisDeliveryTracker) Open(ctx context.Context, run models.PendingRun) error {
	runKey := runKeyPrefix + run.RunID
	failed := "0"
	if run.Failed {
		failed = "1"
	}

	pipe := rt.client.TxPipeline()
	pipe.HSet(ctx, runKey,
		"organizationId", run.OrganizationID,
		"ruleId", run.RuleID,
		"templateId", run.TemplateID,
		"pending", 0,
		"failed", failed,
		"closed", "0",
		"createdAt", run.CreatedAt.Unix(),
	)
	pipe.Expire(ctx, runKey, trackedTTL)
	pipe.ZAdd(ctx, pendingRunsKey, &redis.Z{
		Score:  float64(run.CreatedAt.Unix()),
		Member: run.RunID,
	})

	_, err := pipe.Exec(ctx)
	return err
}

func (rt *RedisDeliveryTracker) Track(ctx context.Context, runID, messageID string) (string, error) {
	early, err := trackDeliveryScript.Run(ctx, rt.client,
		[]string{deliveryKeyPrefix + messageID, earlyKeyPrefix + messageID, runKeyPrefix + runID},
		runID, trackedTTL.Milliseconds()).Text()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return heldStatus(early == "1"), nil
}

func (rt *RedisDeliveryTracker) Close(ctx context.Context, runID string, failed bool) (*models.PendingRun, bool, error) {
	flag := "0"
	if failed {
		flag = "1"
	}

	remaining, err := closeRunScript.Run(ctx, rt.client, []string{runKeyPrefix + runID}, flag).Int64()
	if err != nil {
		return nil, false, err
	}
	return rt.snapshot(ctx, runID, remaining, true)
}

func (rt *RedisDeliveryTracker) Resolve(ctx context.Context, messageID string, delivered bool) (*models.PendingRun, bool, error) {
	flag := "0"
	if delivered {
		flag = "1"
	}

	result, err := resolveDeliveryScript.Run(ctx, rt.client,
		[]string{deliveryKeyPrefix + messageID, earlyKeyPrefix + messageID},
		flag, runKeyPrefix, earlyStatusTTL.Milliseconds()).Slice()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(result) != 3 {
		return nil, false, fmt.Errorf("unexpected resolve result %v", result)
	}

	runID, _ := result[0].(string)
	remaining, _ := result[1].(int64)
	closed, _ := result[2].(int64)
	return rt.snapshot(ctx, runID, remaining, closed == 1)
}

// snapshot reads a run and forgets it when it has settled.
func (rt *RedisDeliveryTracker) snapshot(ctx context.Context, runID string, remaining int64, closed bool) (*models.PendingRun, bool, error) {
	runKey := runKeyPrefix + runID

	fields, err := rt.client.HGetAll(ctx, runKey).Result()
	if err != nil {
		return nil, false, err
	}

	run := pendingRunFromHash(runID, fields)
	run.Pending = remaining
	run.Closed = closed

	settled := closed && remaining <= 0
	if settled {
		pipe := rt.client.TxPipeline()
		pipe.Del(ctx, runKey)
		pipe.ZRem(ctx, pendingRunsKey, runID)
		if _, err := pipe.Exec(ctx); err != nil {
			return run, settled, err
		}
	}

	return run, settled, nil
}

// Prune forgets runs opened before olderThan whose deliveries never all
// reported. Held statuses expire on their own.
func (rt *RedisDeliveryTracker) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	max := strconv.FormatInt(olderThan.Unix(), 10)
	runIDs, err := rt.client.ZRangeByScore(ctx, pendingRunsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(runIDs) == 0 {
		return 0, nil
	}

	pipe := rt.client.TxPipeline()
	for _, id := range runIDs {
		pipe.Del(ctx, runKeyPrefix+id)
	}
	pipe.ZRemRangeByScore(ctx, pendingRunsKey, "-inf", max)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(runIDs), nil
}

func pendingRunFromHash(runID string, fields map[string]string) *models.PendingRun {
	run := &models.PendingRun{
		RunID:          runID,
		OrganizationID: fields["organizationId"],
		RuleID:         fields["ruleId"],
		TemplateID:     fields["templateId"],
		Failed:         fields["failed"] == "1",
		Closed:         fields["closed"] == "1",
	}
	if ts, err := strconv.ParseInt(fields["createdAt"], 10, 64); err == nil {
		run.CreatedAt = time.Unix(ts, 0)
	}
	return run
}

func heldStatus(delivered bool) string {
	if delivered {
		return models.DeliveryDelivered
	}
	return models.DeliveryFailed
}

// MemoryDeliveryTracker is the single-process DeliveryTracker.
type MemoryDeliveryTracker struct {
	mu       sync.Mutex
	runs     map[string]*models.PendingRun
	messages map[string]string
	early    map[string]heldReport
	now      func() time.Time
}

type heldReport struct {
	delivered bool
	at        time.Time
}

func NewMemoryDeliveryTracker() *MemoryDeliveryTracker {
	return &MemoryDeliveryTracker{
		runs:     make(map[string]*models.PendingRun),
		messages: make(map[string]string),
		early:    make(map[string]heldReport),
		now:      time.Now,
	}
}

func (mt *MemoryDeliveryTracker) Open(ctx context.Context, run models.PendingRun) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	run.Pending = 0
	run.Closed = false
	mt.runs[run.RunID] = &run
	return nil
}

func (mt *MemoryDeliveryTracker) Track(ctx context.Context, runID, messageID string) (string, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	run, ok := mt.runs[runID]
	if !ok {
		return "", fmt.Errorf("run %s is not open", runID)
	}

	if held, ok := mt.early[messageID]; ok {
		delete(mt.early, messageID)
		if !held.delivered {
			run.Failed = true
		}
		return heldStatus(held.delivered), nil
	}

	mt.messages[messageID] = runID
	run.Pending++
	return "", nil
}

func (mt *MemoryDeliveryTracker) Close(ctx context.Context, runID string, failed bool) (*models.PendingRun, bool, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	run, ok := mt.runs[runID]
	if !ok {
		return nil, false, fmt.Errorf("run %s is not open", runID)
	}
	run.Closed = true
	if failed {
		run.Failed = true
	}
	return mt.settleLocked(run)
}

func (mt *MemoryDeliveryTracker) Resolve(ctx context.Context, messageID string, delivered bool) (*models.PendingRun, bool, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	runID, ok := mt.messages[messageID]
	if !ok {
		mt.early[messageID] = heldReport{delivered: delivered, at: mt.now()}
		return nil, false, nil
	}
	delete(mt.messages, messageID)

	run, ok := mt.runs[runID]
	if !ok {
		return nil, false, nil
	}
	if !delivered {
		run.Failed = true
	}
	run.Pending--
	return mt.settleLocked(run)
}

func (mt *MemoryDeliveryTracker) settleLocked(run *models.PendingRun) (*models.PendingRun, bool, error) {
	snapshot := *run
	settled := run.Closed && run.Pending <= 0
	if settled {
		delete(mt.runs, run.RunID)
	}
	return &snapshot, settled, nil
}

func (mt *MemoryDeliveryTracker) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	removed := 0
	for id, run := range mt.runs {
		if run.CreatedAt.Before(olderThan) {
			delete(mt.runs, id)
			removed++
		}
	}
	for messageID, runID := range mt.messages {
		if _, ok := mt.runs[runID]; !ok {
			delete(mt.messages, messageID)
		}
	}
	heldSince := mt.now().Add(-earlyStatusTTL)
	for messageID, held := range mt.early {
		if held.at.Before(heldSince) {
			delete(mt.early, messageID)
		}
	}
	return removed, nil
}

// PendingRuns reports how many runs are still waiting on deliveries.
func (mt *MemoryDeliveryTracker) PendingRuns() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.runs)
}

// HeldReports reports how many statuses are waiting for their message to be
// tracked.
func (mt *MemoryDeliveryTracker) HeldReports() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.early)
}
