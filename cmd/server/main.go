package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/sopp-api/internal/app"
	"github.com/Brownie44l1/sopp-api/internal/config"
	"github.com/Brownie44l1/sopp-api/internal/handlers"
	"github.com/Brownie44l1/sopp-api/internal/logger"
	"github.com/Brownie44l1/sopp-api/internal/metrics"
	"github.com/Brownie44l1/sopp-api/internal/router"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.Server.Mode)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize model", zap.Error(err))
		return fmt.Errorf("failed to initialize model: %w", err)
	}
	defer a.Close()

	opts := handlers.Options{
		TopK:           cfg.Model.TopK,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         log,
	}
	if a.Cache != nil {
		opts.Cache = a.Cache
	}
	h := handlers.NewHandler(a.Provider, opts)

	r := router.Setup(h, router.Options{
		StaticDir:    cfg.Server.StaticDir,
		AllowOrigins: cfg.Server.AllowOrigins,
	}, log)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.Int("classes", len(a.Metadata.Classes)),
			zap.Int("top_k", cfg.Model.TopK))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	return nil
}
