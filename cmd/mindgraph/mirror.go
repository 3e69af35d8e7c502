//go:build cgo

package main

import (
	"fmt"
	"path/filepath"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

func runKuzuMirror(store *graph.Store, graphPath string) error {
	dbPath := filepath.Join(filepath.Dir(graphPath), "kuzu")

	mirror, err := graph.NewKuzuMirror(dbPath)
	if err != nil {
		return fmt.Errorf("open kuzu database: %w", err)
	}
	defer mirror.Close()

	if err := mirror.Sync(store); err != nil {
		return fmt.Errorf("mirror graph: %w", err)
	}

	fmt.Printf("Mirrored graph to %s\n", dbPath)
	return nil
}
