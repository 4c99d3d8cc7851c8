package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/payroll-admin/internal/core/events"
	"github.com/frahmantamala/payroll-admin/internal/jobs"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start the sync scheduler or the domain event consumer.`,
}

var schedulerWorkerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the periodic sync scheduler",
	Long:  `Run scheduled accounting sync, retry sweeps, pending item sync, device polling and sync log cleanup on their configured intervals.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSchedulerWorker()
	},
}

var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start the domain event consumer",
	Long:  `Consume domain events from kafka and dispatch them to local handlers.`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var consumerGroup string

func startSchedulerWorker() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.LoggerWrapper()

	app, err := newApplication(cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("dependency close error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := jobs.NewScheduler(log, app.runner().Jobs(cfg.Sync)...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("received shutdown signal, stopping scheduler")
		return nil
	})

	log.Info("scheduler worker is running. Press Ctrl+C to stop.")
	if err := g.Wait(); err != nil {
		log.Error("scheduler worker stopped with error", "error", err)
		return
	}
	log.Info("scheduler worker shutdown complete")
}

func startEventWorker() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.LoggerWrapper()

	if !cfg.Kafka.Enabled {
		fmt.Fprintln(os.Stderr, "kafka is disabled; nothing to consume")
		os.Exit(1)
	}

	bus := events.NewEventBus(log)
	for _, t := range events.AllTypes {
		bus.Subscribe(t, func(ctx context.Context, event events.Event) error {
			log.Info("domain event received",
				"event_id", event.EventID(),
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"payload", event.Payload())
			return nil
		})
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: consumerGroup,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("event consumer started", "topic", cfg.Kafka.Topic, "group", consumerGroup)
	consumeEvents(ctx, reader, bus, log, readRetryDelay)
	log.Info("event consumer shutdown complete")
}

// readRetryDelay spaces out reads while the broker is unreachable.
const readRetryDelay = 2 * time.Second

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
}

// consumeEvents dispatches every message to bus until ctx is cancelled.
func consumeEvents(ctx context.Context, reader messageReader, bus *events.EventBus, log *slog.Logger, retryDelay time.Duration) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error("failed to read event", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
			continue
		}

		var event events.BaseEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Warn("skipping malformed event", "offset", msg.Offset, "error", err)
			continue
		}
		if err := bus.PublishSync(ctx, event); err != nil {
			log.Error("event dispatch failed", "event_id", event.ID, "error", err)
		}
	}
}

func init() {
	eventWorkerCmd.Flags().StringVar(&consumerGroup, "group", "payroll-admin-events", "kafka consumer group")

	workerCmd.AddCommand(schedulerWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
