// Package landing manages the landing database: the scratch area staging
// tables are bulk-loaded into before reconciliation runs a single
// KPI-computing query across them.
package landing

import "time"

// Side identifies which half of a reconciliation a staging table holds.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

// ColumnSpec describes one column to stage, using the logical type names
// a schema descriptor or data extractor produces (e.g. "string", "int",
// "decimal", "date", "timestamp"), not a dialect-specific SQL type.
type ColumnSpec struct {
	Name       string
	SourceType string
	MaxLength  int // only meaningful for string columns; 0 means unknown/default
}

// StagingTableSpec is a request to create one staging table.
type StagingTableSpec struct {
	ExecutionID string
	Side        Side
	Columns     []ColumnSpec
	TTL         time.Duration // 0 uses the manager's default TTL
}

// StagingTableMetadata is the bookkeeping row kept for one staging table,
// used both for TTL-based cleanup and for execution auditing.
type StagingTableMetadata struct {
	TableName   string
	ExecutionID string
	Side        Side
	RowCount    int64
	CreatedAt   time.Time
	ExpiresAt   time.Time
}
