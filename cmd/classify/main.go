// Command classify runs the mushroom classifier over local image files and
// prints one top-k summary per file.
//
//	classify -config config.yaml kantarell.jpg steinsopp.png
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Brownie44l1/sopp-api/internal/app"
	"github.com/Brownie44l1/sopp-api/internal/config"
	"github.com/Brownie44l1/sopp-api/internal/logger"
	"github.com/Brownie44l1/sopp-api/internal/ranking"
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
	if flag.NArg() == 0 {
		return fmt.Errorf("usage: %s [-config path] image...", os.Args[0])
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// Keep stdout for results.
	cfg.Log.Level = "warn"
	cfg.Cache.RedisURL = ""

	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	labels := a.Provider.Labels()
	failed := 0
	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Failed to read image", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		probs, err := a.Provider.Predict(ctx, data)
		if err != nil {
			log.Warn("Failed to classify image", zap.String("path", path), zap.Error(err))
			failed++
			continue
		}
		summary, err := ranking.RankTopK(labels, probs, cfg.Model.TopK)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Printf("%s: %s\n", path, summary)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, flag.NArg())
	}
	return nil
}
