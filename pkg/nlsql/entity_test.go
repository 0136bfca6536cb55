package nlsql

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/kg"
)

func sampleGraph() *kg.Graph {
	return &kg.Graph{
		Name: "test-kg",
		Nodes: []kg.Node{
			{ID: "brz:brz_lnd_RBP_GPU", Label: kg.LabelTable, Name: "brz_lnd_RBP_GPU"},
			{ID: "brz:brz_lnd_OPS_EXCEL_GPU", Label: kg.LabelTable, Name: "brz_lnd_OPS_EXCEL_GPU"},
			{ID: "brz:brz_lnd_RBP_GPU:Material", Label: kg.LabelColumn, Name: "Material", Properties: map[string]any{"table": "brz_lnd_RBP_GPU"}},
			{ID: "brz:brz_lnd_OPS_EXCEL_GPU:PLANNING_SKU", Label: kg.LabelColumn, Name: "PLANNING_SKU", Properties: map[string]any{"table": "brz_lnd_OPS_EXCEL_GPU"}},
			{ID: "brz:brz_lnd_OPS_EXCEL_GPU:Active_Inactive", Label: kg.LabelColumn, Name: "Active_Inactive", Properties: map[string]any{"table": "brz_lnd_OPS_EXCEL_GPU"}},
		},
		Relationships: []kg.Relationship{
			{
				SourceID: "brz:brz_lnd_RBP_GPU", TargetID: "brz:brz_lnd_OPS_EXCEL_GPU",
				Type: kg.RelCrossSchemaReference, Confidence: 0.9,
				Properties: map[string]any{"source_column": "Material", "target_column": "PLANNING_SKU"},
			},
		},
		Metadata: kg.Metadata{
			TableAliases: kg.TableAliases{
				"brz.brz_lnd_OPS_EXCEL_GPU": {"OPS Excel", "planning sheet"},
			},
		},
	}
}

func TestResolveEntities_ExactTableNameMatch(t *testing.T) {
	g := sampleGraph()
	refs := resolveEntities(context.Background(), g, "compare brz_lnd_RBP_GPU against brz_lnd_OPS_EXCEL_GPU", nil, false, zap.NewNop())
	if len(refs) != 2 || refs[0].Table != "brz_lnd_RBP_GPU" || refs[1].Table != "brz_lnd_OPS_EXCEL_GPU" {
		t.Fatalf("got %+v", refs)
	}
}

func TestResolveEntities_LearnedAliasMatch(t *testing.T) {
	g := sampleGraph()
	refs := resolveEntities(context.Background(), g, "materials missing from the planning sheet", nil, false, zap.NewNop())
	if len(refs) != 1 || refs[0].Table != "brz_lnd_OPS_EXCEL_GPU" {
		t.Fatalf("got %+v", refs)
	}
}

func TestResolveEntities_NoMatchWithoutLLMReturnsEmpty(t *testing.T) {
	g := sampleGraph()
	refs := resolveEntities(context.Background(), g, "show me widgets", nil, false, zap.NewNop())
	if len(refs) != 0 {
		t.Fatalf("expected no matches, got %+v", refs)
	}
}
