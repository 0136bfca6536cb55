package datasource

import "context"

// MaxQueryLimit bounds how many rows a single query execution may return,
// regardless of what the caller asked for.
const MaxQueryLimit = 10000

// ColumnInfo describes one result column.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// QueryExecutionResult is the bounded result of running a SELECT.
type QueryExecutionResult struct {
	Columns  []ColumnInfo     `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// ExecuteResult is the result of running a statement that may or may not
// return rows (DDL/DML, or a SELECT run through Execute).
type ExecuteResult struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowCount     int              `json:"row_count"`
	RowsAffected int64            `json:"rows_affected"`
}

// ExplainResult is an EXPLAIN ANALYZE plan plus derived timing and hints.
type ExplainResult struct {
	Plan             string   `json:"plan"`
	ExecutionTimeMs  float64  `json:"execution_time_ms"`
	PlanningTimeMs   float64  `json:"planning_time_ms"`
	PerformanceHints []string `json:"performance_hints,omitempty"`
}

// QueryExecutor runs bounded, ad-hoc SQL against one configured data
// source. Query/QueryWithParams always cap the result at MaxQueryLimit;
// Execute/ExecuteWithParams run statements that may mutate data.
type QueryExecutor interface {
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryExecutionResult, error)
	QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*QueryExecutionResult, error)
	Execute(ctx context.Context, sqlStatement string) (*ExecuteResult, error)
	ExecuteWithParams(ctx context.Context, sqlStatement string, params []any) (*ExecuteResult, error)
	ValidateQuery(ctx context.Context, sqlQuery string) error
	ExplainQuery(ctx context.Context, sqlQuery string) (*ExplainResult, error)
	QuoteIdentifier(name string) string
	Close() error
}
