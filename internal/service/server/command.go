package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/awssidogiri-web/AWS-Sidogiri/internal/api"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/api/chat"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/config"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/logger"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/notify"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/repository/sheetlog"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/repository/snapshot"
	"github.com/awssidogiri-web/AWS-Sidogiri/internal/service/engine"
)

// Options controls the sidogiri-server process and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the HTTP server.
	ListenAddress string
	// SnapshotFile overrides the snapshot JSON path from the config.
	SnapshotFile string
	// WorkbookFile overrides the log workbook path from the config.
	WorkbookFile string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// Run starts the service and blocks until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "sidogiri-server")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	snapshotFile := settings.SnapshotFile
	if opts.SnapshotFile != "" {
		snapshotFile = opts.SnapshotFile
	}

	workbookFile := settings.WorkbookFile
	if opts.WorkbookFile != "" {
		workbookFile = opts.WorkbookFile
	}

	listenAddress, err := resolveListenAddress(settings.ServerAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	snapshots := snapshot.NewFileRepository(snapshotFile)
	workbook := sheetlog.NewWorkbook(workbookFile)

	defer func() {
		if err := workbook.Close(); err != nil {
			logger.ErrorKV(ctx, "Failed to close log workbook", "error", err)
		}
	}()

	// The bot serves two roles: outbound notifications and inbound operator
	// commands. The commander is attached after the engine exists; updates
	// arriving before that are dropped by the nil guard.
	var (
		notifier  notify.Notifier = notify.Noop{}
		tgBot     *bot.Bot
		commander *chat.Commander
	)

	if settings.Telegram.BotToken != "" {
		tgBot, err = bot.New(settings.Telegram.BotToken,
			bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
				if commander != nil {
					commander.Handle(ctx, b, update)
				}
			}))
		if err != nil {
			return fmt.Errorf("initialize telegram bot: %w", err)
		}

		notifier = notify.NewTelegram(tgBot, settings.Telegram.ChatID)
	} else {
		logger.Warn(ctx, "No Telegram token configured, notifications and chat commands disabled")
	}

	eng := engine.New(ctx, &engine.Options{
		Snapshots:           snapshots,
		Log:                 workbook,
		Notifier:            notifier,
		OverrideExpiry:      settings.OverrideExpiry,
		DefaultTriggerLevel: settings.DefaultTriggerLevel,
	})

	// Reconcile once at startup: the log wins over the snapshot.
	eng.Restore(ctx)

	if tgBot != nil {
		commander = chat.NewCommander(eng)

		go tgBot.Start(ctx)

		logger.InfoKV(ctx, "Telegram command interface running", "chat_id", settings.Telegram.ChatID)
	}

	httpServer := &http.Server{
		Addr:              listenAddress,
		Handler:           api.NewRouter(eng),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.InfoKV(ctx, "Server listening",
		"listen_address", listenAddress,
		"snapshot_file", snapshotFile,
		"workbook_file", workbookFile)

	// Done channel is closed after Shutdown finishes so we block until the
	// server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.ErrorKV(ctx, "HTTP shutdown failed", "error", err)
		}

		close(done)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the HTTP server.
// If override is provided, uses it directly. Otherwise extracts the port from
// configAddr to bind on all interfaces (e.g., "host.example:8080" -> ":8080").
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	return ":" + port, nil
}
