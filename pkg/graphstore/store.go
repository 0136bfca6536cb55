// Package graphstore persists and retrieves knowledge graphs by name. It
// knows nothing about the graph builder's domain types: nodes, edges, and
// metadata cross this package boundary as opaque JSON, so graphstore and
// the graph builder package can each import the other's output without an
// import cycle.
package graphstore

import (
	"context"
	"time"
)

// Record is the persisted shape of one named KG: three JSON blobs plus the
// originating schema identifier. Callers marshal/unmarshal their own
// domain types into these fields.
type Record struct {
	Name          string
	Nodes         []byte // JSON array of nodes
	Relationships []byte // JSON array of relationships
	Metadata      []byte // JSON object (includes table_aliases)
	SchemaFile    string
	UpdatedAt     time.Time
}

// Store persists and retrieves KGs by name with read-your-writes semantics
// inside a single process.
type Store interface {
	// Put atomically replaces the KG with this name.
	Put(ctx context.Context, rec Record) error
	// Get returns a KG by name, or a NotFound error.
	Get(ctx context.Context, name string) (Record, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// Query runs a best-effort subgraph query against the named KG.
	Query(ctx context.Context, name string, pattern QueryPattern) ([]QueryMatch, error)
}

// PatternKind selects the shape of a Query.
type PatternKind string

const (
	PatternNeighbors    PatternKind = "NEIGHBORS"
	PatternEdgesBetween PatternKind = "EDGES_BETWEEN"
	PatternPath         PatternKind = "PATH"
)

// QueryPattern describes a subgraph query. Fields used depend on Kind:
// NEIGHBORS uses NodeID; EDGES_BETWEEN uses SourceTable/TargetTable;
// PATH uses SourceTable, TargetTable, and MaxHops.
type QueryPattern struct {
	Kind        PatternKind
	NodeID      string
	SourceTable string
	TargetTable string
	MaxHops     int
}

// Edge is the minimal relationship view the store needs to answer graph
// queries, independent of whatever richer edge type a caller persists.
type Edge struct {
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Inferred   bool    `json:"inferred"`
}

// QueryMatch is one result of a Query: either a single edge (NEIGHBORS,
// EDGES_BETWEEN) or a path (PATH), never both.
type QueryMatch struct {
	Edge *Edge
	Path []Edge
}
