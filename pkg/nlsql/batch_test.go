package nlsql

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/graphstore"
	"github.com/3frameslab/kgrecon/pkg/kg"
)

func TestBatchRunner_IsolatesFailuresAndAggregatesSuccesses(t *testing.T) {
	store := kg.NewStore(graphstore.NewMemoryStore())
	g := sampleGraph()
	putGraph(t, store, g)
	parser := NewParser(store, nil, zap.NewNop())
	exec := NewExecutor(parser, zap.NewNop())
	batch := NewBatchRunner(exec, zap.NewNop())

	runner := &fakeQueryExecutor{result: &datasource.QueryExecutionResult{
		RowCount: 5,
		Rows:     []map[string]any{{"a": 1}},
	}}

	result, err := batch.Run(context.Background(), BatchRequest{
		KGName:  g.Name,
		Dialect: DialectSQLServer,
		Limit:   100,
		Definitions: []string{
			"materials not in the planning sheet",
			"show me the widgets", // no known table -> fails
		},
	}, runner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalItems != 2 || result.FailedItems != 1 {
		t.Fatalf("got %+v", result)
	}
	if result.TotalRecords != 5 {
		t.Errorf("expected total records from the one successful item, got %d", result.TotalRecords)
	}
	if result.AverageConfidence <= 0 {
		t.Errorf("expected a positive average confidence over the successful item")
	}
	if result.Items[1].Error == "" {
		t.Error("expected the second item to carry an error message")
	}
}
