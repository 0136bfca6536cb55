package extract_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/extract"
	"github.com/3frameslab/kgrecon/pkg/landing"
)

type fakeLandingManager struct {
	created []landing.StagingTableSpec
	dropped []string
}

func (f *fakeLandingManager) Bootstrap(ctx context.Context) error { return nil }

func (f *fakeLandingManager) CreateStaging(ctx context.Context, spec landing.StagingTableSpec) (*landing.StagingTableMetadata, error) {
	f.created = append(f.created, spec)
	return &landing.StagingTableMetadata{
		TableName: landing.StagingTableName(spec.ExecutionID, spec.Side, time.Unix(0, 0)),
		ExecutionID: spec.ExecutionID, Side: spec.Side,
	}, nil
}

func (f *fakeLandingManager) CreateIndexes(ctx context.Context, tableName string, columns []string) error {
	return nil
}

func (f *fakeLandingManager) DropStaging(ctx context.Context, tableName string) error {
	f.dropped = append(f.dropped, tableName)
	return nil
}

func (f *fakeLandingManager) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (f *fakeLandingManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

var _ landing.Manager = (*fakeLandingManager)(nil)

type fakeReader struct {
	columns []landing.ColumnSpec
	pages   [][][]any
	readErr error
}

func (f *fakeReader) Columns(ctx context.Context) ([]landing.ColumnSpec, error) {
	return f.columns, nil
}

func (f *fakeReader) ReadPage(ctx context.Context, offset, pageSize int) ([][]any, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	page := offset / pageSize
	if page >= len(f.pages) {
		return nil, nil
	}
	return f.pages[page], nil
}

type fakeLoader struct {
	loaded  int
	failOn  int // fail on the Nth call (1-indexed), 0 = never fail
	calls   int
}

func (f *fakeLoader) Load(ctx context.Context, tableName string, columnNames []string, rows [][]any) (int64, error) {
	f.calls++
	if f.failOn != 0 && f.calls == f.failOn {
		return 0, apperrors.New(apperrors.KindDBQuery, "simulated load failure", false, nil)
	}
	f.loaded += len(rows)
	return int64(len(rows)), nil
}

func TestExtractToLanding_PagesUntilShortPage(t *testing.T) {
	reader := &fakeReader{
		columns: []landing.ColumnSpec{{Name: "id", SourceType: "int"}},
		pages: [][][]any{
			{{1}, {2}},
			{{3}},
		},
	}
	landingMgr := &fakeLandingManager{}
	loader := &fakeLoader{}

	ex := extract.NewExtractor(landingMgr, loader, zap.NewNop())
	result, err := ex.ExtractToLanding(context.Background(), extract.ExtractRequest{
		ExecutionID: "exec-1", Side: landing.SideSource, Reader: reader, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.RowsExtracted)
	assert.Len(t, landingMgr.created, 1)
	assert.Empty(t, landingMgr.dropped)
}

func TestExtractToLanding_DropsStagingOnLoadFailure(t *testing.T) {
	reader := &fakeReader{
		columns: []landing.ColumnSpec{{Name: "id", SourceType: "int"}},
		pages:   [][][]any{{{1}, {2}}},
	}
	landingMgr := &fakeLandingManager{}
	loader := &fakeLoader{failOn: 1}

	ex := extract.NewExtractor(landingMgr, loader, zap.NewNop())
	_, err := ex.ExtractToLanding(context.Background(), extract.ExtractRequest{
		ExecutionID: "exec-1", Side: landing.SideSource, Reader: reader, PageSize: 10,
	})
	assert.Error(t, err)
	assert.Len(t, landingMgr.dropped, 1)
}

func TestExtractToLanding_RetriesOnceOnTransientConnectError(t *testing.T) {
	attempts := 0
	reader := &fakeReaderWithConnectFailureOnce{attempts: &attempts}
	landingMgr := &fakeLandingManager{}
	loader := &fakeLoader{}

	ex := extract.NewExtractor(landingMgr, loader, zap.NewNop())
	result, err := ex.ExtractToLanding(context.Background(), extract.ExtractRequest{
		ExecutionID: "exec-1", Side: landing.SideSource, Reader: reader, PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "expected one retry after the first transient connect failure")
	assert.Equal(t, int64(1), result.RowsExtracted)
}

type fakeReaderWithConnectFailureOnce struct {
	attempts *int
}

func (f *fakeReaderWithConnectFailureOnce) Columns(ctx context.Context) ([]landing.ColumnSpec, error) {
	return []landing.ColumnSpec{{Name: "id", SourceType: "int"}}, nil
}

func (f *fakeReaderWithConnectFailureOnce) ReadPage(ctx context.Context, offset, pageSize int) ([][]any, error) {
	*f.attempts++
	if *f.attempts == 1 {
		return nil, apperrors.New(apperrors.KindDBConnect, "connection refused", true, nil)
	}
	if offset > 0 {
		return nil, nil
	}
	return [][]any{{1}}, nil
}

func TestExtractToLanding_DoesNotRetryOnNonConnectError(t *testing.T) {
	reader := &fakeReader{
		columns: []landing.ColumnSpec{{Name: "id", SourceType: "int"}},
		readErr: apperrors.New(apperrors.KindInputInvalid, "bad query", false, nil),
	}
	landingMgr := &fakeLandingManager{}
	loader := &fakeLoader{}

	ex := extract.NewExtractor(landingMgr, loader, zap.NewNop())
	_, err := ex.ExtractToLanding(context.Background(), extract.ExtractRequest{
		ExecutionID: "exec-1", Side: landing.SideSource, Reader: reader, PageSize: 10,
	})
	assert.Error(t, err)
	assert.Len(t, landingMgr.created, 1, "only the single non-retried attempt should have created staging")
}
