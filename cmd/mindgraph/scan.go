package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/mindgraph/internal/config"
	"github.com/dusk-indust/mindgraph/internal/graph"
	"github.com/dusk-indust/mindgraph/internal/scan"
)

func runScan(ctx context.Context, store *graph.Store, logger *zap.Logger, cfg *config.ProjectConfig, graphPath string) error {
	scanner := scan.NewScanner(store, logger, scan.Options{
		Languages:   cfg.Languages,
		ExcludeDirs: cfg.ExcludeDirs,
	})

	result, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	patterns, err := graph.DetectPatterns(store)
	if err != nil {
		return fmt.Errorf("detect patterns: %w", err)
	}

	store.Save(graphPath)

	stats := store.Stats()
	fmt.Printf("Scanned %d files (%d skipped) in %s\n", result.FilesParsed, result.FilesSkipped, result.Duration.Round(time.Millisecond))
	fmt.Printf("Graph: %d nodes, %d edges, %d patterns\n", stats.NodeCount, stats.EdgeCount, len(patterns))
	return nil
}

func runWatch(ctx context.Context, store *graph.Store, logger *zap.Logger, cfg *config.ProjectConfig, graphPath string) error {
	scanner := scan.NewScanner(store, logger, scan.Options{
		Languages:   cfg.Languages,
		ExcludeDirs: cfg.ExcludeDirs,
	})

	if _, err := scanner.Scan(ctx); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	store.Save(graphPath)

	watcher, err := scan.NewWatcher(scanner, store, logger, scan.WatcherOptions{
		Debounce: cfg.WatchDebounce(),
		OnApply: func() {
			store.Save(graphPath)
		},
	})
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer watcher.Stop()

	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	logger.Info("watching for changes", zap.String("root", store.ProjectRoot()))
	<-ctx.Done()
	return nil
}
