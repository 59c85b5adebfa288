package cmd

import (
	"context"
	"errors"
	"fmt"

	"schoolfee/config"
	"schoolfee/controllers"
	"schoolfee/database"
	"schoolfee/interfaces"
	"schoolfee/repositories"
	"schoolfee/services"
	"schoolfee/utils"
	"schoolfee/workers"

	"github.com/sirupsen/logrus"
)

// application holds the wired object graph shared by every subcommand.
type application struct {
	store    interfaces.AutomationStore
	counters interfaces.CounterStore
	tracker  interfaces.DeliveryTracker

	automation *services.AutomationService
	delivery   *services.DeliveryService
	rules      *services.RuleService
	jwt        *utils.JWTService

	worker  *workers.AutomationWorker
	cleanup *workers.CleanupWorker

	healthChecks map[string]controllers.HealthCheckFunc
	closers      []func()
}

func buildApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{
		jwt:          utils.NewJWTService(cfg.JWTSecret, cfg.JWTTTL),
		healthChecks: make(map[string]controllers.HealthCheckFunc),
	}

	if err := app.initStore(ctx, cfg); err != nil {
		app.close()
		return nil, err
	}

	expiring, guardStore, err := app.initCounters(ctx, cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	var sink interfaces.DeliverySink
	if cfg.TwilioEnabled() {
		sink = services.NewWhatsAppService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, cfg.TwilioStatusCallbackURL)
	} else {
		logrus.Warn("Twilio credentials not configured, messages will only be logged")
		sink = services.NewLogDeliverySink()
	}

	validator := utils.NewValidationService()

	app.automation = services.NewAutomationService(services.AutomationDependencies{
		Organizations: app.store,
		Recipients:    app.store,
		Rules:         app.store,
		Sink:          sink,
		Tracker:       app.tracker,
		Limiter:       services.NewRateLimiter(app.counters),
		Guard:         services.NewSendGuard(guardStore),
		Matcher:       services.NewScheduleMatcher(cfg.AutomationWrapMidnight),
		Validator:     validator,
	}, services.AutomationConfig{
		Parallelism: cfg.AutomationParallelism,
	})
	app.delivery = services.NewDeliveryService(app.tracker, app.store)
	app.rules = services.NewRuleService(app.store, validator)

	app.worker = workers.NewAutomationWorker(app.automation, nil, workers.AutomationWorkerConfig{
		TickInterval: cfg.AutomationTick,
	})
	app.cleanup = workers.NewCleanupWorker(app.tracker, expiring, workers.DefaultCleanupWorkerConfig(cfg.SendLogRetentionDays))

	return app, nil
}

func (app *application) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
		if err != nil {
			return err
		}
		app.store = repositories.NewMongoAutomationStore(db)
		app.closers = append(app.closers, func() { _ = database.Disconnect() })
		app.healthChecks["mongo"] = func(ctx context.Context) error {
			if !database.IsConnected() {
				return errors.New("database connection lost")
			}
			return nil
		}

	case config.StoreFirestore:
		client, err := config.InitFirestore(ctx, cfg)
		if err != nil {
			return err
		}
		app.store = repositories.NewFirestoreAutomationStore(client)
		app.closers = append(app.closers, func() { _ = client.Close() })
		logrus.Info("✅ Connected to Firestore")

	case config.StoreMemory:
		logrus.Warn("Using in-memory store, data is lost on restart")
		app.store = repositories.NewMemoryAutomationStore()

	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	return nil
}

func (app *application) initCounters(ctx context.Context, cfg *config.Config) (map[string]workers.ExpiringStore, interfaces.SendGuardStore, error) {
	switch cfg.CounterDriver {
	case config.CounterRedis:
		client := config.InitRedis(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		logrus.Info("✅ Connected to Redis")

		app.counters = repositories.NewRedisCounterStore(client)
		app.tracker = repositories.NewRedisDeliveryTracker(client)
		app.closers = append(app.closers, func() { _ = client.Close() })
		app.healthChecks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
		// Redis keys expire on their own.
		return nil, repositories.NewRedisSendGuardStore(client), nil

	case config.CounterMemory:
		logrus.Warn("Using in-memory counters, rate limits are per process")
		counters := repositories.NewMemoryCounterStore()
		guard := repositories.NewMemorySendGuardStore()
		app.counters = counters
		app.tracker = repositories.NewMemoryDeliveryTracker()
		return map[string]workers.ExpiringStore{
			"rate_counters": counters,
			"send_marks":    guard,
		}, guard, nil

	default:
		return nil, nil, fmt.Errorf("unknown COUNTER_DRIVER %q", cfg.CounterDriver)
	}
}

func (app *application) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
}
