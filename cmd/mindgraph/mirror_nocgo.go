//go:build !cgo

package main

import (
	"errors"

	"github.com/dusk-indust/mindgraph/internal/graph"
)

func runKuzuMirror(_ *graph.Store, _ string) error {
	return errors.New("kuzu mirroring requires a cgo-enabled build")
}
