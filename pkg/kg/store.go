package kg

import (
	"context"
	"encoding/json"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/graphstore"
)

// Store persists and retrieves Graphs by name, built on top of a
// graphstore.Store that only knows about opaque JSON. This is the thin
// marshaling layer that keeps kg's rich domain types out of graphstore and
// avoids a kg <-> graphstore import cycle.
type Store interface {
	Put(ctx context.Context, g *Graph) error
	Get(ctx context.Context, name string) (*Graph, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	// Query runs pattern against the named KG; PATH results are ordered by
	// the join-inference priority of graphstore's path search.
	Query(ctx context.Context, name string, pattern graphstore.QueryPattern) ([]graphstore.QueryMatch, error)
}

type store struct {
	backend graphstore.Store
}

// NewStore wraps a graphstore.Store with Graph-aware marshaling.
func NewStore(backend graphstore.Store) Store {
	return &store{backend: backend}
}

var _ Store = (*store)(nil)

func (s *store) Put(ctx context.Context, g *Graph) error {
	nodes, err := json.Marshal(g.Nodes)
	if err != nil {
		return apperrors.Invalidf("marshal kg nodes", err)
	}
	rels, err := json.Marshal(toStoreEdges(g.Relationships))
	if err != nil {
		return apperrors.Invalidf("marshal kg relationships", err)
	}
	meta, err := json.Marshal(g.Metadata)
	if err != nil {
		return apperrors.Invalidf("marshal kg metadata", err)
	}

	return s.backend.Put(ctx, graphstore.Record{
		Name:          g.Name,
		Nodes:         nodes,
		Relationships: rels,
		Metadata:      meta,
		SchemaFile:    g.SchemaFile,
	})
}

func (s *store) Get(ctx context.Context, name string) (*Graph, error) {
	rec, err := s.backend.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	g := &Graph{Name: rec.Name, SchemaFile: rec.SchemaFile}
	if err := json.Unmarshal(rec.Nodes, &g.Nodes); err != nil {
		return nil, apperrors.Invalidf("kg "+name+" has malformed nodes", err)
	}
	var edges []storeEdge
	if err := json.Unmarshal(rec.Relationships, &edges); err != nil {
		return nil, apperrors.Invalidf("kg "+name+" has malformed relationships", err)
	}
	g.Relationships = fromStoreEdges(edges)
	if err := json.Unmarshal(rec.Metadata, &g.Metadata); err != nil {
		return nil, apperrors.Invalidf("kg "+name+" has malformed metadata", err)
	}
	return g, nil
}

func (s *store) List(ctx context.Context) ([]string, error)   { return s.backend.List(ctx) }
func (s *store) Delete(ctx context.Context, name string) error { return s.backend.Delete(ctx, name) }
func (s *store) Exists(ctx context.Context, name string) (bool, error) {
	return s.backend.Exists(ctx, name)
}
func (s *store) Query(ctx context.Context, name string, pattern graphstore.QueryPattern) ([]graphstore.QueryMatch, error) {
	return s.backend.Query(ctx, name, pattern)
}

// storeEdge is Relationship's projection onto graphstore.Edge, carrying the
// full Relationship.Properties/Reasoning round-trip alongside the minimal
// fields the store's query engine reads.
type storeEdge struct {
	graphstore.Edge
	Reasoning  string         `json:"reasoning,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

func toStoreEdges(rels []Relationship) []storeEdge {
	out := make([]storeEdge, 0, len(rels))
	for _, r := range rels {
		out = append(out, storeEdge{
			Edge: graphstore.Edge{
				SourceID:   r.SourceID,
				TargetID:   r.TargetID,
				Type:       string(r.Type),
				Confidence: r.Confidence,
				Inferred:   r.Inferred,
			},
			Reasoning:  r.Reasoning,
			Properties: r.Properties,
		})
	}
	return out
}

func fromStoreEdges(edges []storeEdge) []Relationship {
	out := make([]Relationship, 0, len(edges))
	for _, e := range edges {
		out = append(out, Relationship{
			SourceID:   e.SourceID,
			TargetID:   e.TargetID,
			Type:       RelationshipType(e.Type),
			Confidence: e.Confidence,
			Inferred:   e.Inferred,
			Reasoning:  e.Reasoning,
			Properties: e.Properties,
		})
	}
	return out
}
