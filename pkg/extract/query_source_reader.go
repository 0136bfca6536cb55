package extract

import (
	"context"
	"fmt"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/landing"
)

// QueryExecutorReader adapts any registered datasource.QueryExecutor
// (postgres, mssql, ...) into a SourceReader, so the extractor never needs
// to know which adapter backs a given source.
type QueryExecutorReader struct {
	runner    datasource.QueryExecutor
	tableName string
}

// NewQueryExecutorReader reads tableName through runner, paging with
// OFFSET/LIMIT. Both sides of a reconciliation run use the same reader
// type; only the underlying QueryExecutor and table name differ.
func NewQueryExecutorReader(runner datasource.QueryExecutor, tableName string) *QueryExecutorReader {
	return &QueryExecutorReader{runner: runner, tableName: tableName}
}

// Columns probes the table's column names and types with a single-row
// query, since datasource.QueryExecutor has no schema-introspection method
// of its own.
func (r *QueryExecutorReader) Columns(ctx context.Context) ([]landing.ColumnSpec, error) {
	quoted := r.runner.QuoteIdentifier(r.tableName)
	result, err := r.runner.Query(ctx, fmt.Sprintf("SELECT * FROM %s", quoted), 1)
	if err != nil {
		return nil, fmt.Errorf("inspect columns of %s: %w", r.tableName, err)
	}

	specs := make([]landing.ColumnSpec, len(result.Columns))
	for i, col := range result.Columns {
		specs[i] = landing.ColumnSpec{Name: col.Name, SourceType: col.Type}
	}
	return specs, nil
}

// ReadPage reads pageSize rows starting at offset, in the column order
// Columns last reported.
func (r *QueryExecutorReader) ReadPage(ctx context.Context, offset, pageSize int) ([][]any, error) {
	quoted := r.runner.QuoteIdentifier(r.tableName)
	result, err := r.runner.Query(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY (SELECT NULL) OFFSET %d ROWS", quoted, offset), pageSize)
	if err != nil {
		return nil, fmt.Errorf("read page of %s at offset %d: %w", r.tableName, offset, err)
	}

	rows := make([][]any, len(result.Rows))
	for i, row := range result.Rows {
		vals := make([]any, len(result.Columns))
		for j, col := range result.Columns {
			vals[j] = row[col.Name]
		}
		rows[i] = vals
	}
	return rows, nil
}

var _ SourceReader = (*QueryExecutorReader)(nil)
