package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"schoolfee/interfaces"
	"schoolfee/models"
	"schoolfee/utils"

	"github.com/sirupsen/logrus"
)

// Runner performs one evaluation pass.
type Runner interface {
	RunOnce(ctx context.Context, now time.Time) *models.EvaluationReport
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type AutomationWorker struct {
	runner Runner
	clock  interfaces.Clock

	// Worker configuration
	config AutomationWorkerConfig

	// Worker state
	isRunning bool
	inFlight  atomic.Bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Metrics
	stats      AutomationWorkerStats
	statsMutex sync.RWMutex
}

type AutomationWorkerConfig struct {
	TickInterval time.Duration `json:"tickInterval"`
}

type AutomationWorkerStats struct {
	PassesRun          int64                    `json:"passesRun"`
	PassesSkipped      int64                    `json:"passesSkipped"`
	RulesFired         int64                    `json:"rulesFired"`
	MessagesDispatched int64                    `json:"messagesDispatched"`
	Failures           int64                    `json:"failures"`
	AveragePassTime    float64                  `json:"averagePassTime"` // ms
	LastPassAt         time.Time                `json:"lastPassAt"`
	LastReport         *models.EvaluationReport `json:"lastReport,omitempty"`
	StartTime          time.Time                `json:"startTime"`
}

func NewAutomationWorker(runner Runner, clock interfaces.Clock, config AutomationWorkerConfig) *AutomationWorker {
	if clock == nil {
		clock = systemClock{}
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AutomationWorker{
		runner: runner,
		clock:  clock,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		stats: AutomationWorkerStats{
			StartTime: time.Now(),
		},
	}
}

func (aw *AutomationWorker) Start() error {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()

	if aw.isRunning {
		return nil
	}

	aw.isRunning = true

	logrus.Infof("Starting Automation Worker (tick every %s)", aw.config.TickInterval)

	aw.wg.Add(1)
	go aw.scheduler()

	return nil
}

// Stop halts the ticker and waits for an in-flight pass to finish.
func (aw *AutomationWorker) Stop() error {
	aw.mutex.Lock()
	defer aw.mutex.Unlock()

	if !aw.isRunning {
		return nil
	}

	logrus.Info("Stopping Automation Worker...")

	aw.cancel()
	aw.isRunning = false
	aw.wg.Wait()

	logrus.Info("Automation Worker stopped successfully")
	return nil
}

func (aw *AutomationWorker) scheduler() {
	defer aw.wg.Done()

	ticker := time.NewTicker(aw.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			aw.wg.Add(1)
			go func() {
				defer aw.wg.Done()
				if _, err := aw.runPass(aw.ctx); err != nil {
					logrus.Debug("Skipping automation tick: previous pass still running")
				}
			}()

		case <-aw.ctx.Done():
			return
		}
	}
}

// TriggerNow runs a pass immediately unless one is already running.
func (aw *AutomationWorker) TriggerNow(ctx context.Context) (*models.EvaluationReport, error) {
	return aw.runPass(ctx)
}

func (aw *AutomationWorker) runPass(ctx context.Context) (*models.EvaluationReport, error) {
	if !aw.inFlight.CompareAndSwap(false, true) {
		aw.statsMutex.Lock()
		aw.stats.PassesSkipped++
		aw.statsMutex.Unlock()
		return nil, utils.NewServiceError("PASS_IN_PROGRESS", "An automation pass is already running")
	}
	defer aw.inFlight.Store(false)

	startTime := time.Now()
	report := aw.runner.RunOnce(ctx, aw.clock.Now())
	aw.updateStats(report, time.Since(startTime))

	return report, nil
}

func (aw *AutomationWorker) updateStats(report *models.EvaluationReport, duration time.Duration) {
	aw.statsMutex.Lock()
	defer aw.statsMutex.Unlock()

	aw.stats.PassesRun++
	aw.stats.LastPassAt = time.Now()
	aw.stats.LastReport = report

	if report != nil {
		aw.stats.RulesFired += int64(report.RulesFired)
		aw.stats.MessagesDispatched += int64(report.Dispatched)
		aw.stats.Failures += int64(len(report.Failures))
	}

	// Update average processing time
	if aw.stats.AveragePassTime == 0 {
		aw.stats.AveragePassTime = float64(duration.Milliseconds())
	} else {
		aw.stats.AveragePassTime = (aw.stats.AveragePassTime + float64(duration.Milliseconds())) / 2
	}
}

func (aw *AutomationWorker) IsRunning() bool {
	aw.mutex.RLock()
	defer aw.mutex.RUnlock()
	return aw.isRunning
}

func (aw *AutomationWorker) GetStats() AutomationWorkerStats {
	aw.statsMutex.RLock()
	defer aw.statsMutex.RUnlock()
	return aw.stats
}
