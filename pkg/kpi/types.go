// Package kpi manages saved KPI definitions, their SQL cache flags, and
// their execution history, reusing the NL compiler (pkg/nlsql) to turn a
// definition into SQL and the reconciliation engine (pkg/recon) to locate
// the evidence rows behind a past execution.
package kpi

import "time"

// MetricType is the closed set of KPI categories. It determines which
// reconciliation rows an evidence drill-down surfaces.
type MetricType string

const (
	MetricMatchRate            MetricType = "MATCH_RATE"
	MetricUnmatchedSourceCount MetricType = "UNMATCHED_SOURCE_COUNT"
	MetricUnmatchedTargetCount MetricType = "UNMATCHED_TARGET_COUNT"
	MetricInactiveRecordCount  MetricType = "INACTIVE_RECORD_COUNT"
	MetricDataQualityScore     MetricType = "DATA_QUALITY_SCORE"
)

// ExecutionStatus is the lifecycle state of one KPI execution.
type ExecutionStatus string

const (
	ExecPending   ExecutionStatus = "pending"
	ExecSuccess   ExecutionStatus = "success"
	ExecFailed    ExecutionStatus = "failed"
	ExecTimeout   ExecutionStatus = "timeout"
	ExecCancelled ExecutionStatus = "cancelled"
)

// KPI is a saved, nameable query definition plus its SQL cache state.
type KPI struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	GroupName  string     `json:"group_name"`
	Definition string     `json:"definition"`
	KGName     string     `json:"kg_name"`
	MetricType MetricType `json:"metric_type"`

	// RulesetID links this KPI to the reconciliation ruleset whose
	// staging tables an evidence drill-down reads from. Empty means the
	// KPI has no evidence source (its definition stands alone).
	RulesetID string `json:"ruleset_id,omitempty"`
	// InactivePredicateSQL is the raw boolean fragment (over the "s"
	// staging alias) defining an inactive row, copied from the linked
	// execution request at creation time so evidence(INACTIVE_RECORD_COUNT)
	// can reproduce it after the originating request is long gone.
	InactivePredicateSQL string `json:"inactive_predicate_sql,omitempty"`

	IsAccept    bool   `json:"is_accept"`
	IsSQLCached bool   `json:"is_sql_cached"`
	CachedSQL   string `json:"cached_sql,omitempty"`

	// HasSucceededOnce records whether any execution of this KPI has
	// ever reached ExecSuccess, the precondition set_cache_flags enforces
	// before allowing is_sql_cached=true.
	HasSucceededOnce bool `json:"has_succeeded_once"`

	Deleted bool `json:"deleted"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Execution is one run of a KPI, append-only once created.
type Execution struct {
	ExecutionID string          `json:"execution_id"`
	KPIID       string          `json:"kpi_id"`
	Status      ExecutionStatus `json:"status"`

	GeneratedSQL string `json:"generated_sql"`
	EnhancedSQL  string `json:"enhanced_sql"`

	NumberOfRecords int              `json:"number_of_records"`
	ExecutionTimeMS int64            `json:"execution_time_ms"`
	ConfidenceScore float64          `json:"confidence_score"`
	ResultData      []map[string]any `json:"result_data,omitempty"`
	SourceTable     string           `json:"source_table,omitempty"`
	TargetTable     string           `json:"target_table,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`

	ExecutionTimestamp time.Time `json:"execution_timestamp"`
}

// maxSampleRows bounds how many result rows an execution record carries
// inline, mirroring nlsql.Executor's own sampling cap.
const maxSampleRows = 20

// ExecutionFilters narrows list_executions.
type ExecutionFilters struct {
	Status ExecutionStatus
	Limit  int
	Offset int
}

// ExecuteParams is the caller-supplied input to one KPI execution. Params
// binds named values for a cached KPI whose SQL carries {{param}}
// placeholders; it is ignored when the KPI isn't SQL-cached, since a fresh
// compile takes its inputs from the KPI's free-text Definition instead.
type ExecuteParams struct {
	Dialect string
	Limit   int
	UseLLM  bool
	Params  map[string]any
}

// DrilldownRequest pages through one execution's result set by re-running
// its SQL with OFFSET/LIMIT; no ORDER BY is added.
type DrilldownRequest struct {
	ExecutionID string
	Page        int
	PageSize    int
}

// DrilldownResult is one page of an execution's underlying rows.
type DrilldownResult struct {
	Rows     []map[string]any `json:"rows"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// EvidenceRequest reads reconciliation rows behind a KPI's most recent
// linked execution, filtered by the KPI's implicit match category plus an
// optional additional user filter.
type EvidenceRequest struct {
	KPIID       string
	MatchStatus string // optional additional filter, ANDed with the implicit one
	Limit       int
	Offset      int
}

// DashboardGroup is one group_name's rollup for the aggregation endpoint.
type DashboardGroup struct {
	GroupName           string          `json:"group_name"`
	KPIs                []KPI           `json:"kpis"`
	LatestStatus        ExecutionStatus `json:"latest_status,omitempty"`
	LatestRecordCount   int             `json:"latest_record_count"`
	LatestExecutionTime time.Time       `json:"latest_execution_time,omitempty"`
}
