package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ksred/linkdesk/internal/cache"
	"github.com/ksred/linkdesk/internal/config"
	"github.com/ksred/linkdesk/internal/database"
	"github.com/ksred/linkdesk/internal/database/patches"
	"github.com/ksred/linkdesk/internal/i18n"
	"github.com/ksred/linkdesk/internal/metrics"
	"github.com/ksred/linkdesk/internal/rpc"
	"github.com/ksred/linkdesk/internal/search"
	"github.com/ksred/linkdesk/internal/services"
	"github.com/ksred/linkdesk/internal/utils"
	"github.com/rs/zerolog"
)

// app holds everything a command needs once the database is reachable
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	db         *database.Database
	store      cache.Store
	metrics    *metrics.Collector
	runner     *database.PatchRunner
	translator *i18n.Translator
	activity   *services.ActivityService
	search     *search.Service
	patchLogs  *services.PatchLogService
	doctypes   *services.DocTypeService
	records    *services.RecordService
	methods    *rpc.Registry
}

// setupLogging configures the logger. out overrides the destination, which
// the stdio MCP server uses to keep stdout clean.
func setupLogging(cfg *config.Config, logFile string, out io.Writer) zerolog.Logger {
	logConfig := utils.LoggerConfig{
		Level:      cfg.Server.LogLevel,
		Pretty:     cfg.Server.Debug,
		CallerInfo: cfg.Server.Debug,
		LogFile:    logFile,
		Output:     out,
	}

	utils.SetupGlobalLogger(logConfig)
	return utils.NewLogger(logConfig)
}

// connectToDatabase opens the configured database and checks it answers
func connectToDatabase(cfg *config.Config, logger zerolog.Logger) (*database.Database, error) {
	logger.Info().Str("driver", cfg.Database.Driver).Msg("Connecting to database")

	db := database.NewDatabase(cfg.Database, logger)
	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.Health(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database health check failed: %w", err)
	}

	logger.Info().Msg("Database connection established")
	return db, nil
}

// newCacheStore uses redis when a URL is configured and process memory otherwise
func newCacheStore(ctx context.Context, cfg config.Cache, logger zerolog.Logger) cache.Store {
	if cfg.RedisURL == "" {
		return cache.NewMemoryStore(cfg.TTL)
	}

	store, err := cache.NewRedisStore(ctx, cfg.RedisURL, cfg.Prefix, cfg.TTL, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, caching translations in memory")
		return cache.NewMemoryStore(cfg.TTL)
	}
	return store
}

// newApp connects to the database and wires the services
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	db, err := connectToDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		store:   newCacheStore(ctx, cfg.Cache, logger),
		metrics: metrics.NewCollector("linkdesk"),
	}

	a.runner = database.NewPatchRunner(db.DB(), logger)
	a.runner.SetMetrics(a.metrics)
	if err := patches.Install(a.runner); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to install patches: %w", err)
	}

	a.translator = i18n.NewTranslator(db.DB(), a.store, cfg.Locale.Default, cfg.Cache.TTL, logger)
	a.translator.SetMetrics(a.metrics)

	a.activity = services.NewActivityService(db.DB(), logger)
	a.search = search.NewService(db.DB(), a.translator, cfg.Search, logger)
	a.search.SetMetrics(a.metrics)
	a.patchLogs = services.NewPatchLogService(db.DB(), a.runner, a.translator, a.activity, cfg.Server.DeveloperMode, logger)
	a.doctypes = services.NewDocTypeService(db.DB(), logger)
	a.records = services.NewRecordService(db.DB(), logger)

	a.methods = rpc.NewRegistry(logger)
	if err := rpc.RegisterDefaults(a.methods, a.search, a.patchLogs); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to register methods: %w", err)
	}

	return a, nil
}

// migrate runs the pending patches around the model sync
func (a *app) migrate(ctx context.Context, skipFailing bool) (*database.RunReport, error) {
	return a.runner.Run(ctx, database.RunOptions{SkipFailing: skipFailing})
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close cache")
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close database connection")
	}
}
