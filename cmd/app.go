package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/payroll-admin/internal"
	"github.com/frahmantamala/payroll-admin/internal/accounting"
	accountingPostgres "github.com/frahmantamala/payroll-admin/internal/accounting/postgres"
	"github.com/frahmantamala/payroll-admin/internal/core/events"
	"github.com/frahmantamala/payroll-admin/internal/device"
	devicePostgres "github.com/frahmantamala/payroll-admin/internal/device/postgres"
	"github.com/frahmantamala/payroll-admin/internal/employee"
	employeePostgres "github.com/frahmantamala/payroll-admin/internal/employee/postgres"
	"github.com/frahmantamala/payroll-admin/internal/expense"
	expensePostgres "github.com/frahmantamala/payroll-admin/internal/expense/postgres"
	"github.com/frahmantamala/payroll-admin/internal/installment"
	installmentPostgres "github.com/frahmantamala/payroll-admin/internal/installment/postgres"
	"github.com/frahmantamala/payroll-admin/internal/jobs"
	"github.com/frahmantamala/payroll-admin/internal/payroll"
	payrollPostgres "github.com/frahmantamala/payroll-admin/internal/payroll/postgres"
	"github.com/frahmantamala/payroll-admin/internal/synclock"
	"github.com/frahmantamala/payroll-admin/internal/synclog"
	synclogPostgres "github.com/frahmantamala/payroll-admin/internal/synclog/postgres"
	"github.com/frahmantamala/payroll-admin/internal/threshold"
	thresholdPostgres "github.com/frahmantamala/payroll-admin/internal/threshold/postgres"
	"github.com/frahmantamala/payroll-admin/internal/transport/rest"
	"github.com/frahmantamala/payroll-admin/internal/workflow"
	workflowPostgres "github.com/frahmantamala/payroll-admin/internal/workflow/postgres"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// application holds every long-lived dependency shared by the server, the
// scheduler worker and one-off job runs.
type application struct {
	cfg    *internal.Config
	logger *slog.Logger

	db     *gorm.DB
	redis  *redis.Client
	bus    *events.EventBus
	kafka  *events.KafkaForwarder
	locker synclock.Locker

	employees    *employee.Service
	thresholds   *threshold.Resolver
	installments *installment.Service
	expenses     *expense.Service
	workflows    *workflow.Service
	payroll      *payroll.Engine
	syncLogs     *synclog.Service
	accounting   *accounting.Service
	devices      *device.Service
}

func newApplication(cfg *internal.Config, logger *slog.Logger) (*application, error) {
	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &application{cfg: cfg, logger: logger, db: db}
	app.bus = events.NewEventBus(logger)
	app.bus.Subscribe(events.EventTypeSyncFailed, func(ctx context.Context, event events.Event) error {
		logger.Warn("sync failed", "event_id", event.EventID(), "payload", event.Payload())
		return nil
	})

	if cfg.Kafka.Enabled {
		app.kafka = events.NewKafkaForwarder(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		app.kafka.Register(app.bus)
		logger.Info("forwarding domain events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	if cfg.Redis.Enabled {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.locker = synclock.NewRedisLocker(app.redis, logger)
	} else {
		logger.Warn("redis disabled, sync locks are local to this process")
		app.locker = synclock.NewLocalLocker()
	}

	thresholdDefaults, err := threshold.DefaultsFromConfig(cfg.Deduction)
	if err != nil {
		return nil, fmt.Errorf("invalid deduction config: %w", err)
	}

	app.employees = employee.NewService(employeePostgres.NewEmployeeRepository(db))
	app.thresholds = threshold.NewResolver(thresholdPostgres.NewThresholdRepository(db), thresholdDefaults, logger)
	app.installments = installment.NewService(installmentPostgres.NewInstallmentRepository(db), app.thresholds, app.employees, logger)

	app.expenses = expense.NewService(expensePostgres.NewExpenseRepository(db), nil, app.installments, app.bus, logger)
	app.workflows = workflow.NewService(workflowPostgres.NewWorkflowRepository(db), app.expenses, app.employees, logger)
	app.expenses.SetWorkflowCreator(app.workflows)

	app.payroll = payroll.NewEngine(payrollPostgres.NewPayrollRepository(db), app.bus, logger)

	app.syncLogs = synclog.NewService(synclogPostgres.NewSyncLogRepository(db), synclog.DefaultsFromConfig(cfg.Sync), app.bus, logger)
	app.accounting = accounting.NewService(
		accountingPostgres.NewAccountingRepository(db),
		accounting.NewQuickBooksClient(accounting.ClientConfigFrom(cfg.Accounting), logger),
		app.syncLogs,
		cfg.Sync.BatchSize,
		logger,
	)
	app.devices = device.NewService(
		devicePostgres.NewDeviceRepository(db),
		device.NewGatewayClient(cfg.Device, logger),
		app.employees,
		app.syncLogs,
		app.locker,
		app.bus,
		device.ConfigFrom(cfg.Device, cfg.Sync),
		logger,
	)

	return app, nil
}

func (a *application) handlers() rest.Handlers {
	return rest.Handlers{
		Expense:     expense.NewHandler(a.expenses),
		Workflow:    workflow.NewHandler(a.workflows),
		Installment: installment.NewHandler(a.installments),
		Threshold:   threshold.NewHandler(a.thresholds),
		Payroll:     payroll.NewHandler(a.payroll),
		Accounting:  accounting.NewHandler(a.accounting, a.syncLogs),
		SyncLog:     synclog.NewHandler(a.syncLogs),
		Device:      device.NewHandler(a.devices, a.syncLogs),
	}
}

func (a *application) healthChecks() []rest.NamedCheck {
	var checks []rest.NamedCheck
	if a.redis != nil {
		checks = append(checks, rest.NamedCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return a.redis.Ping(ctx).Err() },
		})
	}
	return checks
}

// jobLockTTL bounds how long a crashed worker can keep a job name locked.
const jobLockTTL = 30 * time.Minute

func (a *application) runner() *jobs.Runner {
	return jobs.NewRunner(a.syncLogs, a.accounting, a.devices, a.syncLogs, a.locker, jobLockTTL, a.logger)
}

// Close waits for in-flight event handlers before releasing connections.
func (a *application) Close() error {
	a.bus.Wait()

	var errs []error
	if a.kafka != nil {
		errs = append(errs, a.kafka.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if sqlDB, err := a.db.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

func initDB(cfg internal.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
