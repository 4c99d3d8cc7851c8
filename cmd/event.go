package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/frahmantamala/payroll-admin/internal/core/events"
	"github.com/frahmantamala/payroll-admin/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish domain events by hand to check handlers and the kafka relay.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [device-id]",
	Short: "Publish a device.synced test event",
	Long:  `Publish a device.synced event through the event bus. When kafka is enabled the event is relayed to the configured topic.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		publishTestEvent(args[0])
	},
}

var eventLogsSynced int

func publishTestEvent(rawDeviceID string) {
	deviceID, err := strconv.ParseInt(rawDeviceID, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid device id %q\n", rawDeviceID)
		os.Exit(1)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.LoggerWrapper()

	eventBus := events.NewEventBus(log)
	eventBus.Subscribe(events.EventTypeDeviceSynced, func(ctx context.Context, event events.Event) error {
		log.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	if cfg.Kafka.Enabled {
		forwarder := events.NewKafkaForwarder(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), log)
		forwarder.Register(eventBus)
		defer forwarder.Close()
	}

	testEvent := events.NewDeviceSyncedEvent(deviceID, eventLogsSynced)
	log.Info("publishing test event", "event_type", testEvent.EventType(), "event_id", testEvent.EventID())

	if err := eventBus.PublishSync(context.Background(), testEvent); err != nil {
		log.Error("failed to publish event", "error", err)
		return
	}
	log.Info("test event published successfully")
}

func init() {
	publishEventCmd.Flags().IntVar(&eventLogsSynced, "logs", 0, "logs_synced value carried by the event")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
