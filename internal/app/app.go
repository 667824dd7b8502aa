package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Brownie44l1/sopp-api/internal/cache"
	"github.com/Brownie44l1/sopp-api/internal/config"
	"github.com/Brownie44l1/sopp-api/internal/fetch"
	"github.com/Brownie44l1/sopp-api/internal/imageproc"
	"github.com/Brownie44l1/sopp-api/internal/inference"
	"github.com/Brownie44l1/sopp-api/internal/model"
)

// App holds everything built once at startup.
type App struct {
	Config   config.Config
	Metadata model.Metadata
	Model    *model.Server
	Cache    *cache.Cache
	Provider *inference.Provider
}

// New fetches the model artifacts if needed, loads the model and builds
// the inference provider. It blocks until the model is ready.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	fetcher := fetch.New(fetch.Options{
		Timeout:     cfg.Fetch.Timeout,
		MaxRetries:  cfg.Fetch.MaxRetries,
		BaseBackoff: cfg.Fetch.BaseBackoff,
	}, logger)

	if err := fetcher.Ensure(ctx, cfg.Model.MetadataURL, cfg.Model.MetadataPath); err != nil {
		return nil, fmt.Errorf("model metadata: %w", err)
	}
	if err := fetcher.Ensure(ctx, cfg.Model.URL, cfg.Model.Path); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	meta, err := model.LoadMetadata(cfg.Model.MetadataPath)
	if err != nil {
		return nil, err
	}
	if cfg.Model.TopK > len(meta.Classes) {
		return nil, fmt.Errorf("model.top_k %d exceeds %d classes", cfg.Model.TopK, len(meta.Classes))
	}

	logger.Info("Loading model",
		zap.String("path", cfg.Model.Path),
		zap.Strings("classes", meta.Classes),
		zap.Int("image_size", meta.ImageSize))

	srv, err := model.NewServer(cfg.Model.Path, meta, cfg.Model.RuntimeLibrary)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Metadata: meta, Model: srv}

	opts := inference.Options{
		Labels:       meta.Classes,
		ApplySoftmax: meta.ApplySoftmax,
		Logger:       logger,
	}
	if cfg.Cache.RedisURL != "" {
		c, err := cache.New(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := c.Ping(ctx); err != nil {
			logger.Warn("Prediction cache unreachable, continuing", zap.Error(err))
		}
		a.Cache = c
		opts.Cache = c
	}

	mean, std := meta.Normalization(imageproc.DefaultMean, imageproc.DefaultStd)
	pre := imageproc.NewPreprocessor(meta.ImageSize, mean, std)
	a.Provider = inference.NewProvider(srv, pre, opts)

	return a, nil
}

func (a *App) Close() error {
	var err error
	if a.Cache != nil {
		err = a.Cache.Close()
	}
	if a.Model != nil {
		a.Model.Close()
	}
	return err
}
