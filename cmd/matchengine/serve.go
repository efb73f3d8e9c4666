package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/cache"
	"github.com/coderheist/rest.ai-sub000/internal/config"
	"github.com/coderheist/rest.ai-sub000/internal/db"
	"github.com/coderheist/rest.ai-sub000/internal/llm"
	"github.com/coderheist/rest.ai-sub000/internal/matching"
	"github.com/coderheist/rest.ai-sub000/internal/observability"
	"github.com/coderheist/rest.ai-sub000/internal/scheduler"
	"github.com/coderheist/rest.ai-sub000/internal/scoring"
	"github.com/coderheist/rest.ai-sub000/internal/server"
	"github.com/coderheist/rest.ai-sub000/internal/server/ratelimit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the match calculation, ranking and recruiter workflow endpoints.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url (DATABASE_URL) is required")
	}
	jwtConfig, err := cfg.Auth.JWT()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, version, logger)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	database, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	if serveMigrate {
		if err := database.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	opts := matching.Options{Workers: cfg.Matching.Workers, Logger: logger}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		opts.Cache = cache.NewStatsCache(rdb, "", cfg.Redis.StatsTTL)
		logger.Info("job stats cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	scorer, closeScorer, err := buildScorer(ctx, cfg, true, logger)
	if err != nil {
		return err
	}
	defer closeScorer()

	svc := matching.NewService(database, database, scorer, opts)

	if cfg.Matching.RefreshSchedule != "" {
		refresher := scheduler.NewRankRefresher(database, svc, logger)
		if err := refresher.Start(cfg.Matching.RefreshSchedule); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			refresher.Stop(stopCtx)
		}()
	}

	limiter := ratelimit.NewLimiter(ratelimit.NewConfig(cfg.RateLimit))
	srv := server.New(server.Config{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, svc, server.NewJWTService(jwtConfig), limiter, logger)

	return srv.Start(ctx)
}

// buildScorer returns the rule scorer, or the AI scorer falling back to the
// rules when useAI is set and an API key is configured. The returned func
// releases the LLM client.
func buildScorer(ctx context.Context, cfg *config.Config, useAI bool, logger *zap.Logger) (scoring.Scorer, func(), error) {
	rules := scoring.NewRuleScorer(cfg.Matching.Weights)
	if !useAI || cfg.LLM.APIKey == "" {
		logger.Info("scoring with rules only")
		return rules, func() {}, nil
	}

	client, err := llm.NewClient(ctx, cfg.LLM.LLMClientConfig(), cfg.LLM.APIKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	ai := scoring.NewAIScorer(client, scoring.AIOptions{
		Timeout:  cfg.LLM.Timeout,
		Weights:  cfg.Matching.Weights,
		Provider: cfg.LLM.Provider,
	}, logger)
	logger.Info("scoring with AI oracle", zap.String("provider", cfg.LLM.Provider))

	return scoring.WithFallback(ai, rules, logger), func() { _ = client.Close() }, nil
}
