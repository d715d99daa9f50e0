package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/audit"
	"github.com/queryshield/queryshield-engine/pkg/config"
	"github.com/queryshield/queryshield-engine/pkg/database"
	"github.com/queryshield/queryshield-engine/pkg/executor"
	"github.com/queryshield/queryshield-engine/pkg/generator"
	"github.com/queryshield/queryshield-engine/pkg/handlers"
	"github.com/queryshield/queryshield-engine/pkg/logging"
	"github.com/queryshield/queryshield-engine/pkg/middleware"
	"github.com/queryshield/queryshield-engine/pkg/pipeline"
	"github.com/queryshield/queryshield-engine/pkg/policy"
	"github.com/queryshield/queryshield-engine/pkg/schema"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("generator_provider", cfg.Generator.Provider),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("policy_path", cfg.PolicyPath))

	ctx := context.Background()

	pool, err := database.Connect(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer pool.Close()

	// The catalog is the ground truth for table and column validation.
	// Without it no reference can be checked, so startup stops here.
	catalog, err := schema.Load(ctx, pool, logger)
	if err != nil {
		logger.Fatal("Failed to load schema catalog", zap.String("error", logging.SanitizeError(err)))
	}

	store, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		logger.Fatal("Failed to load policy", zap.Error(err))
	}

	gen, err := generator.New(cfg.Generator.Provider, generator.Config{
		Endpoint: cfg.Generator.Endpoint,
		Model:    cfg.Generator.Model,
		APIKey:   cfg.Generator.APIKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to create SQL generator", zap.Error(err))
	}

	auditor := audit.NewSecurityAuditor(logger)
	runner := executor.New(pool, cfg.QueryTimeout(), cfg.MaxResultRows, logger)
	pipe := pipeline.New(catalog, store, runner, auditor, gen, logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, logger)
	healthHandler.RegisterRoutes(mux)

	queryHandler := handlers.NewQueryHandler(pipe, logger)
	queryMux := http.NewServeMux()
	queryHandler.RegisterRoutes(queryMux)
	mux.Handle("/ask", handlers.RequireIdentity(logger)(queryMux))

	handler := middleware.RequestLogger(logger)(mux)

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting queryshield-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
