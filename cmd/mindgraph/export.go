package main

import (
	"fmt"
	"os"

	"github.com/dusk-indust/mindgraph/internal/export"
	"github.com/dusk-indust/mindgraph/internal/graph"
)

func runExport(store *graph.Store, format string) error {
	switch format {
	case "json":
		data, err := export.WriteJSON(store)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	case "mermaid":
		fmt.Print(export.GenerateMermaid(store))
		return nil
	default:
		return fmt.Errorf("unknown export format %q (want json or mermaid)", format)
	}
}
