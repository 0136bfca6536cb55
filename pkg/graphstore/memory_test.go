package graphstore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/graphstore"
)

func sampleEdges(t *testing.T) []byte {
	t.Helper()
	edges := []graphstore.Edge{
		{SourceID: "s:orders", TargetID: "s:customers", Type: "FOREIGN_KEY", Confidence: 0.95},
		{SourceID: "s:customers", TargetID: "s:regions", Type: "REFERENCES", Confidence: 0.85, Inferred: true},
		{SourceID: "s:orders", TargetID: "s:regions", Type: "CROSS_SCHEMA_REFERENCE", Confidence: 0.75, Inferred: true},
	}
	data, err := json.Marshal(edges)
	require.NoError(t, err)
	return data
}

func TestMemoryStore_PutGetRoundTrip(t *testing.T) {
	store := graphstore.NewMemoryStore()
	ctx := context.Background()

	rec := graphstore.Record{Name: "orderMgmt", Nodes: []byte(`[]`), Relationships: sampleEdges(t), Metadata: []byte(`{}`)}
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "orderMgmt")
	require.NoError(t, err)
	assert.Equal(t, rec.Relationships, got.Relationships)
}

func TestMemoryStore_Get_NotFound(t *testing.T) {
	store := graphstore.NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestMemoryStore_ListAndDelete(t *testing.T) {
	store := graphstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, graphstore.Record{Name: "b", Relationships: []byte(`[]`)}))
	require.NoError(t, store.Put(ctx, graphstore.Record{Name: "a", Relationships: []byte(`[]`)}))

	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, store.Delete(ctx, "a"))
	exists, err := store.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.Delete(ctx, "a")
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestMemoryStore_Query_Neighbors(t *testing.T) {
	store := graphstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, graphstore.Record{Name: "kg", Relationships: sampleEdges(t)}))

	matches, err := store.Query(ctx, "kg", graphstore.QueryPattern{Kind: graphstore.PatternNeighbors, NodeID: "s:orders"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
}

func TestMemoryStore_Query_EdgesBetween(t *testing.T) {
	store := graphstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, graphstore.Record{Name: "kg", Relationships: sampleEdges(t)}))

	matches, err := store.Query(ctx, "kg", graphstore.QueryPattern{
		Kind: graphstore.PatternEdgesBetween, SourceTable: "s:orders", TargetTable: "s:customers",
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "FOREIGN_KEY", matches[0].Edge.Type)
}

func TestMemoryStore_Query_PathPrefersForeignKeyThenReferences(t *testing.T) {
	store := graphstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, graphstore.Record{Name: "kg", Relationships: sampleEdges(t)}))

	matches, err := store.Query(ctx, "kg", graphstore.QueryPattern{
		Kind: graphstore.PatternPath, SourceTable: "s:orders", TargetTable: "s:regions", MaxHops: 3,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(matches), 2)

	// Preferred path is the two-hop FOREIGN_KEY -> REFERENCES chain, not the
	// single-hop CROSS_SCHEMA_REFERENCE edge, per the join-inference priority order.
	best := matches[0].Path
	require.Len(t, best, 2)
	assert.Equal(t, "FOREIGN_KEY", best[0].Type)
	assert.Equal(t, "REFERENCES", best[1].Type)
}

func TestMemoryStore_Query_PathRespectsMaxHops(t *testing.T) {
	store := graphstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, graphstore.Record{Name: "kg", Relationships: sampleEdges(t)}))

	matches, err := store.Query(ctx, "kg", graphstore.QueryPattern{
		Kind: graphstore.PatternPath, SourceTable: "s:orders", TargetTable: "s:regions", MaxHops: 1,
	})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "CROSS_SCHEMA_REFERENCE", matches[0].Path[0].Type)
}
