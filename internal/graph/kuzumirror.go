//go:build cgo

package graph

import (
	"fmt"
	"os"
	"path/filepath"

	kuzu "github.com/kuzudb/go-kuzu"
)

// KuzuMirror materializes the in-memory knowledge graph into a KuzuDB
// database for ad-hoc Cypher analysis. It is a one-way mirror: the JSON
// codec remains the system of record, and the mirror is rebuilt wholesale on
// each Sync. Requires CGO because the go-kuzu driver wraps KuzuDB's C
// library.
type KuzuMirror struct {
	db   *kuzu.Database
	conn *kuzu.Connection
}

// NewKuzuMirror opens (or creates) a file-based KuzuDB at dbPath.
func NewKuzuMirror(dbPath string) (*KuzuMirror, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	cfg := kuzu.DefaultSystemConfig()
	db, err := kuzu.OpenDatabase(dbPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuMirror{db: db, conn: conn}, nil
}

// Close releases the KuzuDB connection and database.
func (m *KuzuMirror) Close() error {
	if m.conn != nil {
		m.conn.Close()
	}
	if m.db != nil {
		m.db.Close()
	}
	return nil
}

// mirrorDDL defines the mirror schema: one node table and one relationship
// table carrying the edge type as a property.
var mirrorDDL = []string{
	`CREATE NODE TABLE IF NOT EXISTS MindNode(
		id STRING,
		name STRING,
		type STRING,
		path STRING,
		confidence DOUBLE,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS RELATES(
		FROM MindNode TO MindNode,
		kind STRING,
		confidence DOUBLE
	)`,
}

// InitSchema creates the mirror tables if they do not exist.
func (m *KuzuMirror) InitSchema() error {
	for _, stmt := range mirrorDDL {
		res, err := m.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
		res.Close()
	}
	return nil
}

// Sync clears the mirror and rewrites every node and edge from the store.
func (m *KuzuMirror) Sync(store *Store) error {
	if err := m.InitSchema(); err != nil {
		return err
	}
	for _, stmt := range []string{
		"MATCH ()-[r:RELATES]->() DELETE r",
		"MATCH (n:MindNode) DELETE n",
	} {
		res, err := m.conn.Query(stmt)
		if err != nil {
			return fmt.Errorf("kuzu: clear mirror: %w", err)
		}
		res.Close()
	}

	for _, n := range store.nodes {
		err := m.exec(
			`CREATE (n:MindNode {
				id: $id, name: $name, type: $type, path: $path, confidence: $conf
			})`,
			map[string]any{
				"id":   n.ID,
				"name": n.Name,
				"type": string(n.Type),
				"path": n.Path,
				"conf": n.Confidence,
			},
		)
		if err != nil {
			return err
		}
	}

	for _, e := range store.edges {
		err := m.exec(
			`MATCH (a:MindNode {id: $src}), (b:MindNode {id: $dst})
			 CREATE (a)-[:RELATES {kind: $kind, confidence: $conf}]->(b)`,
			map[string]any{
				"src":  e.Source,
				"dst":  e.Target,
				"kind": string(e.Type),
				"conf": e.Confidence,
			},
		)
		if err != nil {
			return err
		}
	}

	return nil
}

// exec runs a parameterized Cypher statement that produces no result rows.
func (m *KuzuMirror) exec(cypher string, params map[string]any) error {
	stmt, err := m.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := m.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}
