package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"feedwatch/relay/internal/config"
	"feedwatch/relay/internal/feed"
	"feedwatch/relay/internal/logging"
	"feedwatch/relay/internal/models"
	"feedwatch/relay/internal/notify"
	"feedwatch/relay/internal/process"
	"feedwatch/relay/internal/scheduler"
	"feedwatch/relay/internal/server"
	"feedwatch/relay/internal/state"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05"})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

const usage = `Usage: relay [command] [options]
Commands: start, server, feeds

For command-specific options, use: relay [command] -h`

func main() {
	cfg := config.DefaultConfig()

	var logLevelStr, intervalStr string
	logLevelDefault := config.GetEnvString("RELAY_LOG_LEVEL", config.DefaultLogLevel)

	startCmd := flag.NewFlagSet("start", flag.ExitOnError)
	startCmd.StringVar(&intervalStr, "interval", cfg.Interval.String(),
		"Time between cycles, minutes or a duration such as 90s; 0 for one-shot mode (env: RELAY_INTERVAL)")
	startCmd.StringVar(&cfg.FeedsPath, "feeds", cfg.FeedsPath,
		"Feed table file or URL (.yaml, .yml, .csv); empty for the built-in table (env: RELAY_FEEDS_PATH)")
	startCmd.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize,
		"Items per webhook message, at most 10 (env: RELAY_BATCH_SIZE)")
	startCmd.DurationVar(&cfg.BatchDelay, "batch-delay", cfg.BatchDelay,
		"Minimum delay between webhook messages (env: RELAY_BATCH_DELAY)")
	startCmd.IntVar(&cfg.FirstRunLimit, "first-run-limit", cfg.FirstRunLimit,
		"Items delivered for a feed seen for the first time (env: RELAY_FIRST_RUN_LIMIT)")
	startCmd.StringVar(&cfg.LogFile, "log-file", cfg.LogFile,
		"Rotated log file in addition to the console (env: RELAY_LOG_FILE)")
	startCmd.StringVar(&logLevelStr, "log-level", logLevelDefault,
		"Log level: debug, info, warn, error (env: RELAY_LOG_LEVEL)")
	addStateFlags(startCmd, cfg)

	serverCmd := flag.NewFlagSet("server", flag.ExitOnError)
	serverCmd.StringVar(&cfg.ServerHost, "host", cfg.ServerHost,
		"Host to bind the server to (env: RELAY_HOST)")
	serverCmd.IntVar(&cfg.ServerPort, "port", cfg.ServerPort,
		"Port to listen on (env: RELAY_PORT)")
	serverCmd.StringVar(&cfg.FeedsPath, "feeds", cfg.FeedsPath,
		"Feed table file or URL; empty for the built-in table (env: RELAY_FEEDS_PATH)")
	serverCmd.StringVar(&logLevelStr, "log-level", logLevelDefault,
		"Log level: debug, info, warn, error (env: RELAY_LOG_LEVEL)")
	addStateFlags(serverCmd, cfg)

	feedsCmd := flag.NewFlagSet("feeds", flag.ExitOnError)
	feedsCmd.StringVar(&cfg.FeedsPath, "feeds", cfg.FeedsPath,
		"Feed table file or URL; empty for the built-in table (env: RELAY_FEEDS_PATH)")

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "start":
		startCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, logLevelStr)

		interval, parseErr := config.ParseInterval(intervalStr)
		if parseErr != nil {
			log.Error().Err(parseErr).Str("interval", intervalStr).Msg("Invalid interval")
			os.Exit(2)
		}
		cfg.Interval = interval

		if err = runStart(cfg); err != nil {
			log.Error().Err(err).Msg("Processing failed")
		}

	case "server":
		serverCmd.Parse(os.Args[2:])
		applyLogLevel(cfg, logLevelStr)

		if err = runServer(cfg); err != nil {
			log.Error().Err(err).Msg("Server failed")
		}

	case "feeds":
		feedsCmd.Parse(os.Args[2:])

		if err = runFeeds(cfg, os.Stdout); err != nil {
			log.Error().Err(err).Msg("Failed to load feed table")
		}

	case "-h", "--help", "help":
		fmt.Println(usage)
		os.Exit(0)

	default:
		log.Error().Str("command", os.Args[1]).Msg("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, config.ErrMissingWebhook) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func addStateFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.StateBackend, "state-backend", cfg.StateBackend,
		"Watermark storage: file, sqlite or postgres (env: RELAY_STATE_BACKEND)")
	fs.StringVar(&cfg.StatePath, "state", cfg.StatePath,
		"State file for the file backend, database file for sqlite (env: RELAY_STATE_PATH)")
	fs.StringVar(&cfg.DatabaseURL, "db-url", cfg.DatabaseURL,
		"PostgreSQL connection URL for the postgres backend (env: RELAY_DATABASE_URL)")
}

func applyLogLevel(cfg *config.Config, levelStr string) {
	if level, err := zerolog.ParseLevel(levelStr); err == nil {
		cfg.LogLevel = level
	}
}

func setupLogging(cfg *config.Config) (io.Closer, error) {
	return logging.Setup(os.Stderr, logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
}

func openStore(cfg *config.Config, readOnly bool) (state.Store, error) {
	return state.Open(state.Options{
		Backend:     cfg.StateBackend,
		Path:        cfg.StatePath,
		DatabaseURL: cfg.DatabaseURL,
		ReadOnly:    readOnly,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runStart delivers new feed items once or periodically based on configuration.
func runStart(cfg *config.Config) error {
	closer, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	feeds, err := config.LoadFeeds(ctx, cfg.FeedsPath)
	if err != nil {
		return err
	}
	logFeeds(feeds)

	store, err := openStore(cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	source := feed.NewSource(cfg.RequestTimeout, "")
	notifier := notify.NewWebhook(cfg.WebhookURL, cfg.Username, cfg.RequestTimeout)

	driver, err := process.NewDriver(source, notifier, process.Options{
		BatchSize:     cfg.BatchSize,
		BatchDelay:    cfg.BatchDelay,
		FirstRunLimit: cfg.FirstRunLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize driver: %w", err)
	}
	processor, err := process.NewProcessor(driver, store, feeds)
	if err != nil {
		return fmt.Errorf("failed to initialize processor: %w", err)
	}

	sched, err := scheduler.New(cfg.Interval)
	if err != nil {
		return err
	}

	log.Info().
		Str("state_backend", cfg.StateBackend).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_delay", cfg.BatchDelay).
		Msg("Relay started")

	err = sched.Run(ctx, func(ctx context.Context) {
		processor.RunCycle(ctx)
	})

	delivered, failed := driver.Stats()
	log.Info().Int64("delivered", delivered).Int64("failed_batches", failed).Msg("Relay stopped")
	return err
}

// runServer starts the read-only status API.
func runServer(cfg *config.Config) error {
	closer, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := cfg.ValidateStore(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()

	feeds, err := config.LoadFeeds(ctx, cfg.FeedsPath)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	return server.Run(ctx, store, feeds, cfg.ListenAddr(), log.Logger, cfg.APIKey)
}

// runFeeds prints the resolved feed table.
func runFeeds(cfg *config.Config, out io.Writer) error {
	feeds, err := config.LoadFeeds(context.Background(), cfg.FeedsPath)
	if err != nil {
		return err
	}
	for _, f := range feeds {
		fmt.Fprintf(out, "%s\t#%06X\t%s\n", f.URL, f.Color, f.DisplayName())
	}
	return nil
}

func logFeeds(feeds []models.Feed) {
	log.Info().Int("count", len(feeds)).Msg("Monitoring feeds")
	for _, f := range feeds {
		log.Info().Str("url", f.URL).Int("color", f.Color).Str("name", f.Name).Msg("Monitoring feed")
	}
}
