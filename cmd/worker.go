package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/assetops/asset-management/internal/core/events"
	"github.com/assetops/asset-management/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker processes",
	Long:  `Start and manage background workers such as the event bus consumer.`,
}

// Event Bus worker command
var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start event bus worker",
	Long:  `Start the event bus consumer for assignment notifications`,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

func startEventWorker() {
	_, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)

	eventBus.Subscribe(events.EventTypeAssetAssigned, func(ctx context.Context, event events.Event) error {
		logger.Info("received assignment event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	eventBus.Subscribe(events.EventTypeAssetReturned, func(ctx context.Context, event events.Event) error {
		logger.Info("received return event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	logger.Info("event bus worker started. Waiting for events...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("event bus is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	logger.Info("received signal, shutting down event bus", "signal", sig)
	logger.Info("event bus shutdown complete")
}

func init() {
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
