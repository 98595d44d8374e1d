package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"automl/internal/config"
	"automl/internal/history"
	"automl/internal/metrics"
	"automl/internal/pipeline"
	"automl/internal/web"
)

func main() {
	configFile := flag.String("config", "", "Path to YAML configuration file (AUTOML_CONFIG when empty)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("Starting AutoML server...")

	if err := cfg.EnsureDirs(); err != nil {
		logger.Fatal("Failed to create output directories", zap.Error(err))
	}

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		logger.Warn("Run history unavailable, continuing without it", zap.Error(err))
		store, _ = history.Open("", logger)
	}
	defer store.Close()

	m := metrics.New()
	handler := web.NewHandler(cfg,
		pipeline.NewTrainer(cfg, logger, m, store),
		pipeline.NewTester(cfg, logger, m, store),
		store, logger)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := web.NewRouter(handler)
	if err != nil {
		logger.Fatal("Failed to build router", zap.Error(err))
	}

	// Graceful shutdown
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server is running",
		zap.String("address", cfg.Server.Addr),
		zap.String("models_dir", cfg.Paths.Models),
		zap.Bool("history", store.Enabled()))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
