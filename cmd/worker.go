package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fajarnugraha/identity-service/internal/core/events"
	"github.com/fajarnugraha/identity-service/internal/mailer"
	"github.com/fajarnugraha/identity-service/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start worker pools for various services",
	Long:  `Start and manage worker pools for background services like email delivery.`,
}

// Mailer worker command
var mailerWorkerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Start the mail delivery worker pool",
	Long:  `Start the mail delivery worker pool on its own, useful for verifying delivery configuration`,
	Run: func(cmd *cobra.Command, args []string) {
		startMailerWorker()
	},
}

// Event Bus worker command
var eventWorkerCmd = &cobra.Command{
	Use:   "events",
	Short: "Start event bus worker",
	Long:  `Start the event bus `,
	Run: func(cmd *cobra.Command, args []string) {
		startEventWorker()
	},
}

var (
	maxWorkers    int
	jobQueueSize  int
	apiURL        string
	apiKey        string
	testRecipient string
)

func startMailerWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	// Use command line flags if provided, otherwise use config values
	mailerConfig := mailer.Config{
		Enabled:      true,
		APIURL:       getStringFlag(apiURL, config.Mailer.APIURL),
		APIKey:       getStringFlag(apiKey, config.Mailer.APIKey),
		SenderName:   config.Mailer.SenderName,
		SenderEmail:  config.Mailer.SenderEmail,
		SendTimeout:  config.Mailer.SendTimeout,
		MaxWorkers:   getIntFlag(maxWorkers, config.Mailer.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, config.Mailer.JobQueueSize),
	}

	logger.Info("starting mail worker",
		"max_workers", mailerConfig.MaxWorkers,
		"job_queue_size", mailerConfig.JobQueueSize,
		"api_url", mailerConfig.APIURL)

	client := mailer.NewClient(mailerConfig, logger)

	if testRecipient != "" {
		job := mailer.EmailJob{
			To:      testRecipient,
			Subject: "Identity service test email",
			Body:    "This is a test email sent by the mail delivery worker.",
		}
		if err := client.Send(job); err != nil {
			logger.Error("failed to enqueue test email", "error", err)
		} else {
			logger.Info("test email enqueued", "to", testRecipient)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("mail worker is running. Press Ctrl+C to stop.")

	// wait for shutdown signal
	sig := <-sigChan
	logger.Info("received signal, shutting down mail worker", "signal", sig)

	client.Shutdown(30 * time.Second)
	logger.Info("mail worker pool shutdown complete")
}

func startEventWorker() {
	_, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.LoggerWrapper()

	eventBus := events.NewEventBus(logger)

	eventBus.Subscribe("test.event", func(ctx context.Context, event events.Event) error {
		logger.Info("received test event",
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

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	mailerWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	mailerWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	mailerWorkerCmd.Flags().StringVar(&apiURL, "api-url", "", "Mail API URL (overrides config)")
	mailerWorkerCmd.Flags().StringVar(&apiKey, "api-key", "", "Mail API key (overrides config)")
	mailerWorkerCmd.Flags().StringVar(&testRecipient, "test-send", "", "Send a test email to this address on startup")

	workerCmd.AddCommand(mailerWorkerCmd)
	workerCmd.AddCommand(eventWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
