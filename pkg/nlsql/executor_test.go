package nlsql

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/graphstore"
	"github.com/3frameslab/kgrecon/pkg/kg"
)

type fakeQueryExecutor struct {
	result  *datasource.QueryExecutionResult
	err     error
	lastSQL string
}

func (f *fakeQueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	f.lastSQL = sqlQuery
	return f.result, f.err
}
func (f *fakeQueryExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	return f.result, f.err
}
func (f *fakeQueryExecutor) Execute(ctx context.Context, stmt string) (*datasource.ExecuteResult, error) {
	return nil, nil
}
func (f *fakeQueryExecutor) ExecuteWithParams(ctx context.Context, stmt string, params []any) (*datasource.ExecuteResult, error) {
	return nil, nil
}
func (f *fakeQueryExecutor) ValidateQuery(ctx context.Context, sqlQuery string) error { return nil }
func (f *fakeQueryExecutor) ExplainQuery(ctx context.Context, sqlQuery string) (*datasource.ExplainResult, error) {
	return nil, nil
}
func (f *fakeQueryExecutor) QuoteIdentifier(name string) string { return name }
func (f *fakeQueryExecutor) Close() error                       { return nil }

var _ datasource.QueryExecutor = (*fakeQueryExecutor)(nil)

func TestExecutor_RunCompilesAndExecutesAgainstRunner(t *testing.T) {
	store := kg.NewStore(graphstore.NewMemoryStore())
	g := sampleGraph()
	putGraph(t, store, g)
	parser := NewParser(store, nil, zap.NewNop())
	exec := NewExecutor(parser, zap.NewNop())

	runner := &fakeQueryExecutor{result: &datasource.QueryExecutionResult{
		RowCount: 3,
		Rows:     []map[string]any{{"Material": "m1"}, {"Material": "m2"}, {"Material": "m3"}},
	}}

	result, err := exec.Run(context.Background(), CompileRequest{
		KGName:     g.Name,
		Definition: "materials not in the planning sheet",
		Dialect:    DialectSQLServer,
		Limit:      1000,
	}, runner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RecordCount != 3 {
		t.Errorf("expected record count 3, got %d", result.RecordCount)
	}
	if len(result.SampleRows) != 3 {
		t.Errorf("expected 3 sample rows, got %d", len(result.SampleRows))
	}
	if result.SQL == "" || runner.lastSQL != result.SQL {
		t.Errorf("expected the executed SQL to match the returned SQL")
	}
}

func TestExecutor_RunPropagatesQueryFailure(t *testing.T) {
	store := kg.NewStore(graphstore.NewMemoryStore())
	g := sampleGraph()
	putGraph(t, store, g)
	parser := NewParser(store, nil, zap.NewNop())
	exec := NewExecutor(parser, zap.NewNop())

	runner := &fakeQueryExecutor{err: context.DeadlineExceeded}
	_, err := exec.Run(context.Background(), CompileRequest{
		KGName:     g.Name,
		Definition: "materials not in the planning sheet",
		Dialect:    DialectSQLServer,
	}, runner)
	if err == nil {
		t.Fatal("expected the runner's error to propagate")
	}
}
