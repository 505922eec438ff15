package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/sakhilabs/sakhid/actions"
	"github.com/sakhilabs/sakhid/bus"
	"github.com/sakhilabs/sakhid/config"
	"github.com/sakhilabs/sakhid/contextbuilder"
	"github.com/sakhilabs/sakhid/decision"
	"github.com/sakhilabs/sakhid/extractor"
	"github.com/sakhilabs/sakhid/learning"
	sakhilogger "github.com/sakhilabs/sakhid/logger"
	"github.com/sakhilabs/sakhid/memory"
	"github.com/sakhilabs/sakhid/memory/ollama"
	"github.com/sakhilabs/sakhid/migrations"
	"github.com/sakhilabs/sakhid/orchestrator"
	"github.com/sakhilabs/sakhid/planner"
	"github.com/sakhilabs/sakhid/policy"
	"github.com/sakhilabs/sakhid/schedule"
	"github.com/sakhilabs/sakhid/server"
)

const shortTermPruneInterval = 6 * time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse command-line flags
	var (
		configPath = flag.String("config", config.GetConfigPath(), "Path to config file")
		addr       = flag.String("addr", "", "HTTP listen address. Overrides the config file")
		logFile    = flag.String("logfile", "", "Path to log file. If not set, logs to stdout/stderr")
		pretty     = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
		dbPath     = flag.String("db", "", "Path to SQLite database file. Overrides the config file")
	)
	flag.Parse()

	// Validate that --logfile and --pretty are mutually exclusive
	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}
	logPath := *logFile
	if logPath == "" && !*pretty {
		logPath = cfg.Logging.Path
	}

	logger, err := sakhilogger.InitWithOptions(logPath, cfg.Logging.Level, *pretty)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info().
		Str("config", *configPath).
		Str("addr", cfg.Server.Addr).
		Str("backend", cfg.Storage.Backend).
		Msg("sakhid starting")

	// ---------------------------
	// 1. Memory tiers
	// ---------------------------

	eventBus := bus.New(logger)

	var (
		memoryService memory.Service
		db            *sql.DB
	)
	switch cfg.Storage.Backend {
	case "sqlite":
		path := cfg.ExpandedDBPath()
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		logger.Info().Str("path", path).Msg("Initializing database and memory store")
		db, err = sql.Open("sqlite3", path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close() //nolint:errcheck // No remedy for db close errors

		if err := migrations.RunMigrations(db, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		sqliteService := memory.NewSQLiteService(db, logger,
			memory.WithSQLiteMaxShortTerm(cfg.Storage.MaxShortTerm),
			memory.WithSQLiteShortTermTTL(time.Duration(cfg.Storage.ShortTermTTLDays)*24*time.Hour),
		)
		memoryService = sqliteService
	case "inprocess":
		logger.Info().Msg("Using in-process memory store; nothing persists across restarts")
		memoryService = memory.NewInProcessService(logger,
			memory.WithMaxShortTerm(cfg.Storage.MaxShortTerm))
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	// ---------------------------
	// 2. Context builder collaborators
	// ---------------------------

	builderOpts := []contextbuilder.Option{
		contextbuilder.WithRecipe(contextbuilder.Recipe{
			WorkingLimit:      cfg.Context.WorkingLimit,
			EpisodicLimit:     cfg.Context.EpisodicLimit,
			EpisodicDiversity: cfg.Context.EpisodicDiversity,
		}),
	}
	if cfg.Embedder.Enabled {
		embedder, err := ollama.NewEmbedder(ollama.Model(cfg.Embedder.Model))
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to create ollama embedder, episodic relevance scoring disabled")
		} else {
			logger.Info().Str("model", cfg.Embedder.Model).Msg("Ollama embedder enabled")
			builderOpts = append(builderOpts, contextbuilder.WithEmbedder(embedder))
		}
	}

	scheduleStore := schedule.NewInMemoryStore()
	builder := contextbuilder.NewBuilder(memoryService, scheduleStore, schedule.ClockRhythmEngine{}, logger, builderOpts...)

	// ---------------------------
	// 3. Facet extractor and planner
	// ---------------------------

	var facetExtractor extractor.FacetExtractor
	switch cfg.Extractor.Provider {
	case "anthropic":
		if cfg.Extractor.APIKey == "" {
			return fmt.Errorf("extractor.api_key is required for the anthropic provider")
		}
		facetExtractor, err = extractor.NewAnthropicExtractor(cfg.Extractor.APIKey, cfg.Extractor.Model, logger)
		if err != nil {
			return fmt.Errorf("failed to create anthropic extractor: %w", err)
		}
		logger.Info().Str("model", cfg.Extractor.Model).Msg("Using Anthropic facet extractor")
	default:
		facetExtractor = extractor.SimpleExtractor{}
		logger.Info().Msg("Using keyword facet extractor")
	}

	decisionEngine, err := decision.NewEngine()
	if err != nil {
		return fmt.Errorf("failed to load decision templates: %w", err)
	}
	rulePlanner := planner.NewRuleBasedPlanner(decisionEngine, logger)

	// ---------------------------
	// 4. Pipeline engines
	// ---------------------------

	orch := orchestrator.New(eventBus, facetExtractor, builder, rulePlanner, logger,
		orchestrator.WithTokensBudget(cfg.Context.TokensBudget))
	orch.Start()
	defer orch.Stop()

	policyOpts := []policy.Option{}
	if cfg.Renderer.APIKey != "" {
		renderer, err := policy.NewOpenRouterRenderer(policy.OpenRouterConfig{
			APIKey:             cfg.Renderer.APIKey,
			Model:              cfg.Renderer.Model,
			ModerationAPIKey:   cfg.Renderer.ModerationAPIKey,
			ToxicityThreshold:  cfg.Renderer.ToxicityThreshold,
			ModerationFailOpen: cfg.Renderer.ModerationFailOpen,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create reply renderer: %w", err)
		}
		policyOpts = append(policyOpts, policy.WithRenderer(renderer))
		logger.Info().Str("model", cfg.Renderer.Model).Msg("LLM reply renderer available")
	}
	policyEngine := policy.NewEngine(eventBus, logger, policyOpts...)
	policyEngine.Start()
	defer policyEngine.Stop()

	learningOpts := []learning.Option{
		learning.WithDecayAfter(time.Duration(cfg.Learning.DecayAfterDays) * 24 * time.Hour),
	}
	if cfg.Learning.ConsolidationOff {
		learningOpts = append(learningOpts, learning.WithConsolidationInterval(0))
	} else {
		learningOpts = append(learningOpts,
			learning.WithConsolidationInterval(time.Duration(cfg.Learning.ConsolidationHours)*time.Hour))
	}
	learningEngine := learning.NewEngine(eventBus, memoryService, logger, learningOpts...)
	if err := learningEngine.Start(); err != nil {
		return fmt.Errorf("failed to start learning engine: %w", err)
	}
	defer learningEngine.Stop()

	nudger := actions.NewBeeepNudger(logger)
	defer nudger.Close()
	actionRouter := actions.NewRouter(eventBus, logger,
		actions.WithNudgeScheduler(nudger))
	actionRouter.Start()
	defer actionRouter.Stop()

	// ---------------------------
	// 5. Background maintenance
	// ---------------------------

	maintenanceCtx, cancelMaintenance := context.WithCancel(context.Background())
	defer cancelMaintenance()
	if sqliteService, ok := memoryService.(*memory.SQLiteService); ok {
		go pruneShortTermLoop(maintenanceCtx, sqliteService, logger)
	}

	// ---------------------------
	// 6. HTTP ingress
	// ---------------------------

	srv := server.New(server.Config{
		Addr:   cfg.Server.Addr,
		Logger: logger,
	}, eventBus)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve()
	}()

	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancelMaintenance()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.GracefulStop(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server shutdown was not clean")
		}
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info().Msg("sakhid shutdown complete")
	return nil
}

// pruneShortTermLoop drops expired short-term rows on a fixed cadence so an
// idle daemon does not accumulate stale interaction history.
func pruneShortTermLoop(ctx context.Context, svc *memory.SQLiteService, logger zerolog.Logger) {
	ticker := time.NewTicker(shortTermPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := svc.PruneExpiredShortTerm(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to prune expired short-term memory")
				continue
			}
			if pruned > 0 {
				logger.Info().Int64("rows", pruned).Msg("Pruned expired short-term memory")
			}
		}
	}
}
