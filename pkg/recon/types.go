// Package recon executes a reconciliation ruleset end-to-end using the
// landing-database approach: extract both sides into staging tables,
// compute matches and KPIs in one query, persist the result.
package recon

import "time"

// Status is the lifecycle state of one execution.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// ExecutionRequest is one reconciliation run request.
type ExecutionRequest struct {
	ExecutionID string
	RulesetID   string
	Limit       int
	KeepStaging bool
	StoreResult bool

	// InactivePredicateSQL is a raw boolean SQL fragment evaluated against
	// the source staging table's columns (no table alias needed — the
	// executor wraps it against the "s" alias), defining which rows count
	// as inactive for IRR. Empty means no rows are ever inactive.
	InactivePredicateSQL string
}

// KPIResult carries the four headline KPIs and their assessment buckets.
type KPIResult struct {
	RCR       float64 `json:"rcr"`
	RCRStatus string  `json:"rcr_status"`

	DQCS       float64 `json:"dqcs"`
	DQCSStatus string  `json:"dqcs_status"`

	REI       float64 `json:"rei"`
	REIStatus string  `json:"rei_status"`

	IRR       float64 `json:"irr"`
	IRRStatus string  `json:"irr_status"`
}

// ExecutionRecord is the persisted outcome of one reconciliation run.
type ExecutionRecord struct {
	ExecutionID string    `json:"execution_id"`
	RulesetID   string    `json:"ruleset_id"`
	Status      Status    `json:"status"`
	SourceTable string    `json:"source_table"`
	TargetTable string    `json:"target_table"`
	KPIs        KPIResult `json:"kpis"`
	ErrorMessage string   `json:"error_message,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	TotalSourceCount     int64 `json:"total_source_count"`
	TotalTargetCount     int64 `json:"total_target_count"`
	MatchedCount         int64 `json:"matched_count"`
	UnmatchedSourceCount int64 `json:"unmatched_source_count"`
	UnmatchedTargetCount int64 `json:"unmatched_target_count"`
}
