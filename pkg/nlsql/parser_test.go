package nlsql

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/graphstore"
	"github.com/3frameslab/kgrecon/pkg/kg"
)

func newParserWithSampleGraph(t *testing.T) (Parser, *kg.Graph) {
	t.Helper()
	store := kg.NewStore(graphstore.NewMemoryStore())
	g := sampleGraph()
	putGraph(t, store, g)
	return NewParser(store, nil, zap.NewNop()), g
}

func TestParse_ComparisonNotInResolvesJoinAndFilters(t *testing.T) {
	p, g := newParserWithSampleGraph(t)
	intent, err := p.Parse(context.Background(), CompileRequest{
		KGName:     g.Name,
		Definition: "GPU materials which are not in the planning sheet and are active",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.QueryType != TypeComparison || intent.Operation != OpNotIn {
		t.Fatalf("got %+v", intent)
	}
	if intent.SourceTable != "brz_lnd_RBP_GPU" || intent.TargetTable != "brz_lnd_OPS_EXCEL_GPU" {
		t.Fatalf("unexpected table resolution: %+v", intent)
	}
	if len(intent.JoinColumns) != 1 {
		t.Fatalf("expected 1 resolved join hop, got %+v", intent.JoinColumns)
	}
}

func TestParse_ComparisonWithoutJoinPathFailsGeneration(t *testing.T) {
	store := kg.NewStore(graphstore.NewMemoryStore())
	g := &kg.Graph{
		Name: "disconnected",
		Nodes: []kg.Node{
			{ID: "s:orders", Label: kg.LabelTable, Name: "orders"},
			{ID: "s:shipments", Label: kg.LabelTable, Name: "shipments"},
		},
	}
	putGraph(t, store, g)
	p := NewParser(store, nil, zap.NewNop())

	_, err := p.Parse(context.Background(), CompileRequest{
		KGName:     g.Name,
		Definition: "orders which are not in shipments",
	})
	if err == nil {
		t.Fatal("expected comparison query with no join path to fail")
	}
}

func TestParse_NonComparisonWithoutJoinPathReturnsWarning(t *testing.T) {
	store := kg.NewStore(graphstore.NewMemoryStore())
	g := &kg.Graph{
		Name: "disconnected2",
		Nodes: []kg.Node{
			{ID: "s:orders", Label: kg.LabelTable, Name: "orders"},
			{ID: "s:shipments", Label: kg.LabelTable, Name: "shipments"},
		},
	}
	putGraph(t, store, g)
	p := NewParser(store, nil, zap.NewNop())

	intent, err := p.Parse(context.Background(), CompileRequest{
		KGName:     g.Name,
		Definition: "relate orders and shipments",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Warning == "" || len(intent.JoinColumns) != 0 {
		t.Fatalf("expected empty join_columns with a warning, got %+v", intent)
	}
}

func TestParse_NoKnownTableMentionedFails(t *testing.T) {
	p, g := newParserWithSampleGraph(t)
	_, err := p.Parse(context.Background(), CompileRequest{KGName: g.Name, Definition: "show me the widgets"})
	if err == nil {
		t.Fatal("expected failure when no known table is mentioned")
	}
}
