package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/awssidogiri-web/AWS-Sidogiri/internal/config"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/logger"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/service/server"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// snapshotFile path where the state snapshot is persisted.
	snapshotFile string
	// workbookFile path of the durable log workbook.
	workbookFile string
	// logLevel is the minimum level for console logging.
	logLevel string

	// rootCmd represents the base command for running the alarm service.
	rootCmd = &cobra.Command{
		Use:   "sidogiri-server [listen-address]",
		Short: "Run the water-level alarm service.",
		Long: `Starts the water-level alarm service.

The service ingests sensor readings over HTTP, applies the threshold/override
alarm policy, appends every reading and alarm transition to an xlsx log
workbook (one worksheet per month) and notifies operators via Telegram.
Operator commands arrive through the same Telegram bot; current state is kept
warm in a local JSON snapshot and reconciled against the log at startup.

The listen address can be provided as an argument to override the config
(e.g., :9090, 0.0.0.0:8080). Telegram credentials come from the
TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID environment variables or a .env file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Use listen address argument if provided, otherwise rely on config.
			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			options := &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				SnapshotFile:  snapshotFile,
				WorkbookFile:  workbookFile,
			}

			return server.Run(ctx, options)
		},
	}
)

// Execute runs the sidogiri-server CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().
		StringVarP(&snapshotFile, "snapshot-file", "s", "", "path to persist the state snapshot (defaults to config)")
	rootCmd.Flags().
		StringVarP(&workbookFile, "workbook-file", "w", "", "path of the log workbook (defaults to config)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "minimum log level (debug, info, warn, error)")
}
