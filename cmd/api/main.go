package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"finpilot/backend/internal/actions"
	"finpilot/backend/internal/advice"
	"finpilot/backend/internal/chat"
	"finpilot/backend/internal/config"
	"finpilot/backend/internal/db"
	"finpilot/backend/internal/finance"
	"finpilot/backend/internal/logging"
	"finpilot/backend/internal/server"
	"finpilot/backend/internal/store"
)

// backend is everything the HTTP layer needs from persistence.
type backend interface {
	chat.Store
	finance.Source
	actions.Writer
	server.ProfileStore
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	records, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	builder := finance.NewContextBuilder(records, logger.Named("context"))
	providers := advice.BuildProviders(ctx, cfg, logger.Named("providers"))
	orchestrator := advice.NewOrchestrator(
		providers,
		builder,
		logger.Named("advice"),
		advice.WithAttemptTimeout(cfg.AITimeout()),
	)
	hub := chat.NewHub(logger.Named("hub"))

	app := server.New(cfg, server.Deps{
		Snapshots: builder,
		Advisor:   orchestrator,
		Actions:   actions.NewExecutor(records, logger.Named("actions")),
		Chat:      chat.NewService(records, hub, logger.Named("chat")),
		Profiles:  records,
		Logger:    logger,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("finpilot api listening",
			zap.String("addr", "http://localhost:"+cfg.AppPort),
			zap.String("storage", cfg.StorageDriver),
			zap.Strings("providers", orchestrator.ProviderNames()),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, func()) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		memory := store.NewMemory()
		if demoUser := strings.TrimSpace(cfg.DemoUserID); demoUser != "" {
			memory.Load(store.DemoDataset(demoUser, "Demo User", time.Now().UTC()))
			logger.Info("loaded demo records", zap.String("user_id", demoUser))
		}
		return memory, func() {}
	}

	pool, err := db.Open(ctx, cfg.DatabaseURL, 5*time.Second,
		db.WithMaxConns(cfg.DBMaxConns),
		db.WithMaxConnIdleTime(5*time.Minute),
	)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	if cfg.AutoMigrate {
		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			logger.Fatal("database migration failed", zap.Error(err))
		}
	}
	if err := server.ValidateRuntimeSchema(ctx, pool); err != nil {
		pool.Close()
		logger.Fatal("database schema mismatch", zap.Error(err))
	}
	return store.NewPostgres(pool), pool.Close
}
