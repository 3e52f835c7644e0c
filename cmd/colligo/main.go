package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/pipeline"
	"github.com/ternarybob/colligo/internal/services/events"
	"github.com/ternarybob/colligo/internal/storage/sqlite"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	runMode      = flag.String("mode", "process", "Run mode: collect, process, status, watch")
	workerCount  = flag.Int("workers", 0, "Processing workers (overrides config, max 5)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Colligo version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("colligo.toml"); err == nil {
			configFiles = append(configFiles, "colligo.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		// Use temporary logger for startup errors
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	if *workerCount != 0 {
		config.Process.Workers = *workerCount
		if err := config.Validate(); err != nil {
			tempLogger := arbor.NewLogger()
			tempLogger.Fatal().Int("workers", *workerCount).Err(err).Msg("Invalid worker count")
			os.Exit(1)
		}
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("mode", *runMode).
		Str("account", config.Profile.Account).
		Str("storage_path", config.Storage.Path).
		Int("workers", config.Process.Workers).
		Msg("Application configuration loaded")

	db, err := sqlite.NewSQLiteDB(logger, &config.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("path", config.Storage.Path).Msg("Failed to open storage")
		os.Exit(1)
	}
	store := sqlite.NewAnswerStorage(db, logger)
	defer store.Close()

	if *runMode == "status" {
		if err := printStatus(context.Background(), store); err != nil {
			logger.Fatal().Err(err).Msg("Status query failed")
			os.Exit(1)
		}
		return
	}

	eventService := events.NewService(logger)
	defer eventService.Close()

	progress := events.NewConsoleProgress(os.Stdout)
	if err := progress.Attach(eventService); err != nil {
		logger.Fatal().Err(err).Msg("Failed to attach progress renderer")
		os.Exit(1)
	}

	coordinator := pipeline.NewCoordinator(config, store, eventService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *runMode {
	case pipeline.ModeCollect, pipeline.ModeProcess:
		report, err := coordinator.Run(ctx, *runMode, config.Process.Workers)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Str("mode", *runMode).Msg("Run failed")
			os.Exit(1)
		}
		logger.Info().
			Str("run_id", report.RunID).
			Int("collected", report.Collected).
			Int("succeeded", report.Succeeded).
			Int("failed", report.Failed).
			Msg("Run finished")

	case "watch":
		scheduler := pipeline.NewScheduler(coordinator, config.Schedule.Collect, config.Process.Workers, logger)
		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Watch mode failed")
			os.Exit(1)
		}

	default:
		logger.Fatal().Str("mode", *runMode).Msg("Unknown mode, expected collect, process, status, or watch")
		os.Exit(1)
	}
}

// printStatus reports backlog counts from the store
func printStatus(ctx context.Context, store *sqlite.AnswerStorage) error {
	total, err := store.CountTotal(ctx)
	if err != nil {
		return err
	}
	complete, err := store.CountComplete(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Total records:    %d\n", total)
	fmt.Printf("Complete records: %d\n", complete)
	fmt.Printf("Pending records:  %d\n", total-complete)
	return nil
}
