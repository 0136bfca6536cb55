// Package extract reads rows from an arbitrary source database, paged,
// and bulk-loads them into a landing database staging table ahead of
// reconciliation.
package extract

import (
	"context"
	"time"

	"github.com/3frameslab/kgrecon/pkg/landing"
)

// DefaultPageSize is how many rows one ReadPage call returns absent an
// override.
const DefaultPageSize = 10000

// MinConnectTimeout and MinQueryTimeout are connection timeout floors: a
// caller-supplied shorter timeout is raised to these minimums, since a
// source database under load during a bulk extract routinely needs more
// time than an interactive query would.
const (
	MinConnectTimeout = 60 * time.Second
	MinQueryTimeout   = 120 * time.Second
)

// ClampTimeouts raises connect/query timeouts to the configured floors.
// A zero value means "use the floor", not "no timeout".
func ClampTimeouts(connect, query time.Duration) (time.Duration, time.Duration) {
	if connect < MinConnectTimeout {
		connect = MinConnectTimeout
	}
	if query < MinQueryTimeout {
		query = MinQueryTimeout
	}
	return connect, query
}

// SourceReader reads one source table's columns and rows, page by page.
// Implementations wrap a specific source adapter (Postgres, SQL Server,
// ...); the extractor only depends on this interface.
type SourceReader interface {
	Columns(ctx context.Context) ([]landing.ColumnSpec, error)
	ReadPage(ctx context.Context, offset, pageSize int) ([][]any, error)
}

// ExtractRequest is one extract-to-landing request for one side of a
// reconciliation run.
type ExtractRequest struct {
	ExecutionID string
	Side        landing.Side
	Reader      SourceReader
	PageSize    int // 0 uses DefaultPageSize
	IndexColumns []string
}

// ExtractResult reports what landed.
type ExtractResult struct {
	TableName     string
	RowsExtracted int64
}
