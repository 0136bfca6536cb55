package extract_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/extract"
)

type fakeQueryExecutor struct {
	rows    []map[string]any
	columns []datasource.ColumnInfo
}

func (f *fakeQueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	rows := f.rows
	if limit < len(rows) {
		rows = rows[:limit]
	}
	return &datasource.QueryExecutionResult{Columns: f.columns, Rows: rows, RowCount: len(rows)}, nil
}

func (f *fakeQueryExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	return f.Query(ctx, sqlQuery, limit)
}

func (f *fakeQueryExecutor) Execute(ctx context.Context, sqlStatement string) (*datasource.ExecuteResult, error) {
	return &datasource.ExecuteResult{}, nil
}

func (f *fakeQueryExecutor) ExecuteWithParams(ctx context.Context, sqlStatement string, params []any) (*datasource.ExecuteResult, error) {
	return &datasource.ExecuteResult{}, nil
}

func (f *fakeQueryExecutor) ValidateQuery(ctx context.Context, sqlQuery string) error { return nil }

func (f *fakeQueryExecutor) ExplainQuery(ctx context.Context, sqlQuery string) (*datasource.ExplainResult, error) {
	return &datasource.ExplainResult{}, nil
}

func (f *fakeQueryExecutor) QuoteIdentifier(name string) string { return `"` + name + `"` }

func (f *fakeQueryExecutor) Close() error { return nil }

func TestQueryExecutorReader_Columns(t *testing.T) {
	runner := &fakeQueryExecutor{
		columns: []datasource.ColumnInfo{{Name: "id", Type: "integer"}, {Name: "email", Type: "text"}},
		rows:    []map[string]any{{"id": 1, "email": "a@example.com"}},
	}
	reader := extract.NewQueryExecutorReader(runner, "customers")

	cols, err := reader.Columns(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "integer", cols[0].SourceType)
	assert.Equal(t, "email", cols[1].Name)
}

func TestQueryExecutorReader_ReadPage(t *testing.T) {
	runner := &fakeQueryExecutor{
		columns: []datasource.ColumnInfo{{Name: "id", Type: "integer"}, {Name: "email", Type: "text"}},
		rows: []map[string]any{
			{"id": 1, "email": "a@example.com"},
			{"id": 2, "email": "b@example.com"},
		},
	}
	reader := extract.NewQueryExecutorReader(runner, "customers")

	rows, err := reader.ReadPage(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []any{1, "a@example.com"}, rows[0])
	assert.Equal(t, []any{2, "b@example.com"}, rows[1])
}
