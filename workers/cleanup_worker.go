package workers

import (
	"context"
	"sync"
	"time"

	"schoolfee/interfaces"
	"schoolfee/utils"

	"github.com/sirupsen/logrus"
)

// ExpiringStore is an in-process store that can drop its expired entries.
// Redis-backed stores expire keys themselves and are not registered.
type ExpiringStore interface {
	Prune() int
}

type CleanupWorker struct {
	tracker  interfaces.DeliveryTracker
	expiring map[string]ExpiringStore
	config   CleanupWorkerConfig

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Cleanup tasks
	tasks      []CleanupTask
	tasksMutex sync.Mutex

	// Metrics
	stats      CleanupWorkerStats
	statsMutex sync.RWMutex
}

type CleanupWorkerConfig struct {
	// PendingRunRetention is how long a run may wait for delivery reports
	// before it is forgotten.
	PendingRunRetention time.Duration `json:"pendingRunRetention"`

	PendingRunCleanupInterval time.Duration `json:"pendingRunCleanupInterval"`
	ExpiredStateInterval      time.Duration `json:"expiredStateInterval"`
	SchedulerInterval         time.Duration `json:"schedulerInterval"`
}

type CleanupTask struct {
	Name        string                                 `json:"name"`
	Description string                                 `json:"description"`
	Interval    time.Duration                          `json:"interval"`
	LastRun     time.Time                              `json:"lastRun"`
	NextRun     time.Time                              `json:"nextRun"`
	Enabled     bool                                   `json:"enabled"`
	Function    func(ctx context.Context) (int, error) `json:"-"`
}

type CleanupWorkerStats struct {
	TasksExecuted      int64            `json:"tasksExecuted"`
	TasksFailed        int64            `json:"tasksFailed"`
	EntriesPruned      int64            `json:"entriesPruned"`
	PendingRunsPruned  int64            `json:"pendingRunsPruned"`
	LastCleanupAt      time.Time        `json:"lastCleanupAt"`
	TaskExecutionTimes map[string]int64 `json:"taskExecutionTimes"` // ms
	StartTime          time.Time        `json:"startTime"`
}

func DefaultCleanupWorkerConfig(retentionDays int) CleanupWorkerConfig {
	if retentionDays <= 0 {
		retentionDays = 3
	}
	return CleanupWorkerConfig{
		PendingRunRetention:       time.Duration(retentionDays) * 24 * time.Hour,
		PendingRunCleanupInterval: 6 * time.Hour,
		ExpiredStateInterval:      time.Hour,
		SchedulerInterval:         time.Minute,
	}
}

func NewCleanupWorker(tracker interfaces.DeliveryTracker, expiring map[string]ExpiringStore, config CleanupWorkerConfig) *CleanupWorker {
	ctx, cancel := context.WithCancel(context.Background())

	if config.SchedulerInterval <= 0 {
		config.SchedulerInterval = time.Minute
	}

	worker := &CleanupWorker{
		tracker:  tracker,
		expiring: expiring,
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		stats: CleanupWorkerStats{
			StartTime:          time.Now(),
			TaskExecutionTimes: make(map[string]int64),
		},
	}

	worker.initializeTasks()

	return worker
}

func (cw *CleanupWorker) Start() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.isRunning {
		return nil
	}

	cw.isRunning = true

	cw.wg.Add(1)
	go cw.taskScheduler()

	logrus.Infof("Cleanup Worker started with %d tasks", len(cw.tasks))
	return nil
}

func (cw *CleanupWorker) Stop() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.isRunning {
		return nil
	}

	logrus.Info("Stopping Cleanup Worker...")

	cw.cancel()
	cw.isRunning = false
	cw.wg.Wait()

	logrus.Info("Cleanup Worker stopped successfully")
	return nil
}

func (cw *CleanupWorker) initializeTasks() {
	cw.tasks = []CleanupTask{
		{
			Name:        "pending_run_cleanup",
			Description: "Forget runs whose delivery reports never arrived",
			Interval:    cw.config.PendingRunCleanupInterval,
			Enabled:     cw.tracker != nil && cw.config.PendingRunRetention > 0,
			Function:    cw.cleanupPendingRuns,
		},
		{
			Name:        "expired_state_cleanup",
			Description: "Drop expired send guard marks and rate counters",
			Interval:    cw.config.ExpiredStateInterval,
			Enabled:     len(cw.expiring) > 0,
			Function:    cw.cleanupExpiredState,
		},
	}

	now := time.Now()
	for i := range cw.tasks {
		cw.tasks[i].NextRun = now.Add(cw.tasks[i].Interval)
	}
}

func (cw *CleanupWorker) taskScheduler() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.config.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cw.executeScheduledTasks(time.Now())

		case <-cw.ctx.Done():
			return
		}
	}
}

func (cw *CleanupWorker) executeScheduledTasks(now time.Time) {
	cw.tasksMutex.Lock()
	defer cw.tasksMutex.Unlock()

	for i := range cw.tasks {
		task := &cw.tasks[i]

		if !task.Enabled || now.Before(task.NextRun) {
			continue
		}

		cw.runTask(task, now)
	}
}

// RunAll executes every enabled task immediately.
func (cw *CleanupWorker) RunAll() {
	cw.tasksMutex.Lock()
	defer cw.tasksMutex.Unlock()

	now := time.Now()
	for i := range cw.tasks {
		if cw.tasks[i].Enabled {
			cw.runTask(&cw.tasks[i], now)
		}
	}
}

func (cw *CleanupWorker) runTask(task *CleanupTask, now time.Time) {
	startTime := time.Now()
	removed, err := task.Function(cw.ctx)
	executionTime := time.Since(startTime)

	cw.statsMutex.Lock()
	cw.stats.TaskExecutionTimes[task.Name] = executionTime.Milliseconds()
	if err != nil {
		cw.stats.TasksFailed++
		logrus.WithError(err).Errorf("Cleanup task %s failed", task.Name)
	} else {
		cw.stats.TasksExecuted++
		cw.stats.EntriesPruned += int64(removed)
		cw.stats.LastCleanupAt = now
		logrus.Debugf("Cleanup task %s removed %d entries in %v", task.Name, removed, executionTime)
	}
	cw.statsMutex.Unlock()

	task.LastRun = now
	task.NextRun = now.Add(task.Interval)
}

func (cw *CleanupWorker) cleanupPendingRuns(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-cw.config.PendingRunRetention)

	removed, err := cw.tracker.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		cw.statsMutex.Lock()
		cw.stats.PendingRunsPruned += int64(removed)
		cw.statsMutex.Unlock()
		logrus.Warnf("Forgot %d automation runs with unreported deliveries", removed)
	}
	return removed, nil
}

func (cw *CleanupWorker) cleanupExpiredState(ctx context.Context) (int, error) {
	total := 0
	for _, store := range cw.expiring {
		total += store.Prune()
	}
	return total, nil
}

func (cw *CleanupWorker) GetStats() CleanupWorkerStats {
	cw.statsMutex.RLock()
	defer cw.statsMutex.RUnlock()

	stats := cw.stats
	stats.TaskExecutionTimes = make(map[string]int64, len(cw.stats.TaskExecutionTimes))
	for k, v := range cw.stats.TaskExecutionTimes {
		stats.TaskExecutionTimes[k] = v
	}
	return stats
}

func (cw *CleanupWorker) GetTasks() []CleanupTask {
	cw.tasksMutex.Lock()
	defer cw.tasksMutex.Unlock()

	tasks := make([]CleanupTask, len(cw.tasks))
	copy(tasks, cw.tasks)
	return tasks
}

func (cw *CleanupWorker) EnableTask(taskName string) error {
	return cw.setTaskEnabled(taskName, true)
}

func (cw *CleanupWorker) DisableTask(taskName string) error {
	return cw.setTaskEnabled(taskName, false)
}

func (cw *CleanupWorker) setTaskEnabled(taskName string, enabled bool) error {
	cw.tasksMutex.Lock()
	defer cw.tasksMutex.Unlock()

	for i := range cw.tasks {
		if cw.tasks[i].Name == taskName {
			cw.tasks[i].Enabled = enabled
			logrus.Infof("Cleanup task %s enabled=%t", taskName, enabled)
			return nil
		}
	}
	return utils.NewNotFoundError("Cleanup task " + taskName)
}
