// Package nlsql compiles a free-text KPI/query definition into executable,
// dialect-specific SQL using a knowledge graph for join inference.
package nlsql

import "time"

// QueryType is the classifier's top-level category for a definition.
type QueryType string

const (
	TypeRelationship QueryType = "RELATIONSHIP"
	TypeDataQuery    QueryType = "DATA_QUERY"
	TypeFilterQuery  QueryType = "FILTER_QUERY"
	TypeComparison   QueryType = "COMPARISON_QUERY"
	TypeAggregation  QueryType = "AGGREGATION_QUERY"
)

// Operation refines QueryType with the specific comparison/aggregation verb.
type Operation string

const (
	OpNotIn     Operation = "NOT_IN"
	OpIn        Operation = "IN"
	OpEquals    Operation = "EQUALS"
	OpContains  Operation = "CONTAINS"
	OpAggregate Operation = "AGGREGATE"
	OpNone      Operation = "NONE"
)

// Dialect is the closed set of target SQL dialects the generator renders.
type Dialect string

const (
	DialectMySQL      Dialect = "mysql"
	DialectPostgreSQL Dialect = "postgresql"
	DialectSQLServer  Dialect = "sqlserver"
	DialectOracle     Dialect = "oracle"
)

// AggregateFunc is the closed set of aggregation projections §4.9 supports.
type AggregateFunc string

const (
	AggCount AggregateFunc = "COUNT"
	AggSum   AggregateFunc = "SUM"
	AggAvg   AggregateFunc = "AVG"
)

// Filter is one WHERE predicate: column, comparison operator, value.
type Filter struct {
	Column string `json:"column"`
	Op     string `json:"op"` // "=", "!=", ">", "<", ">=", "<=", "LIKE"
	Value  string `json:"value"`
	// Table is the table this filter's column belongs to, resolved during
	// parsing so the generator can attach it to the right alias.
	Table string `json:"table,omitempty"`
}

// AdditionalColumn is a requested output column and the table it resolves
// against.
type AdditionalColumn struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// JoinType is the SQL join kind for one hop of a resolved join path.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
)

// JoinHop is one resolved join: left/right tables (by alias) and the
// columns that connect them, plus the relationship type the KG edge
// carried (used for join-path priority, not rendered into SQL).
type JoinHop struct {
	LeftAlias   string   `json:"left_alias"`
	LeftTable   string   `json:"left_table"`
	LeftCol     string   `json:"left_col"`
	RightAlias  string   `json:"right_alias"`
	RightTable  string   `json:"right_table"`
	RightCol    string   `json:"right_col"`
	Type        JoinType `json:"type"`
	RelType     string   `json:"rel_type"`
	Confidence  float64  `json:"confidence"`
}

// QueryIntent is the parser's structured reading of a free-text
// definition.
type QueryIntent struct {
	QueryType          QueryType          `json:"query_type"`
	Operation          Operation          `json:"operation"`
	SourceTable        string             `json:"source_table,omitempty"`
	TargetTable        string             `json:"target_table,omitempty"`
	Filters            []Filter           `json:"filters,omitempty"`
	AdditionalColumns  []AdditionalColumn `json:"additional_columns,omitempty"`
	JoinColumns        []JoinHop          `json:"join_columns,omitempty"`
	AggregateFunc      AggregateFunc      `json:"aggregate_func,omitempty"`
	AggregateColumn    string             `json:"aggregate_column,omitempty"`
	GroupByColumn      string             `json:"group_by_column,omitempty"`
	Confidence         float64            `json:"confidence"`
	Reasoning          string             `json:"reasoning,omitempty"`
	Warning            string             `json:"warning,omitempty"`
}

// CompileRequest is one free-text definition to compile.
type CompileRequest struct {
	KGName     string
	Definition string
	Dialect    Dialect
	Limit      int
	UseLLM     bool
	// KnownTables restricts entity resolution; empty means "every table
	// node in the KG".
	KnownTables []string
}

// QueryResult is what the NL executor returns after running generated SQL.
type QueryResult struct {
	SQL             string        `json:"sql"`
	RecordCount     int           `json:"record_count"`
	JoinColumnsUsed []JoinHop     `json:"join_columns_used,omitempty"`
	Confidence      float64       `json:"confidence"`
	ElapsedMS       int64         `json:"elapsed_ms"`
	SampleRows      []map[string]any `json:"sample_rows,omitempty"`
}

// CompiledQuery is the output of the classify->parse->generate pipeline,
// before execution.
type CompiledQuery struct {
	Intent     QueryIntent `json:"intent"`
	SQL        string      `json:"sql"`
	Dialect    Dialect     `json:"dialect"`
	Limit      int         `json:"limit"`
	CompiledAt time.Time   `json:"compiled_at"`
}
