package extract

import (
	"context"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/landing"
)

// Extractor pages a source table into a freshly created landing staging
// table.
type Extractor interface {
	ExtractToLanding(ctx context.Context, req ExtractRequest) (*ExtractResult, error)
}

// Loader writes a page of rows into an existing staging table. BulkLoader
// is the production implementation; tests can substitute a fake.
type Loader interface {
	Load(ctx context.Context, tableName string, columnNames []string, rows [][]any) (int64, error)
}

type extractor struct {
	landing landing.Manager
	loader  Loader
	logger  *zap.Logger
}

func NewExtractor(landingMgr landing.Manager, loader Loader, logger *zap.Logger) Extractor {
	return &extractor{landing: landingMgr, loader: loader, logger: logger.Named("extract.extractor")}
}

func (e *extractor) ExtractToLanding(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	result, err := e.extractOnce(ctx, req)
	if err != nil && apperrors.IsKind(err, apperrors.KindDBConnect) {
		e.logger.Warn("extract failed on a transient connect error, retrying once", zap.String("execution_id", req.ExecutionID), zap.Error(err))
		result, err = e.extractOnce(ctx, req)
	}
	return result, err
}

// extractOnce runs one end-to-end attempt: create staging, page the
// source in, bulk-load each page. Any failure drops the staging table it
// created before surfacing the error — a failed extract never leaves a
// half-loaded table behind.
func (e *extractor) extractOnce(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	columns, err := req.Reader.Columns(ctx)
	if err != nil {
		return nil, err
	}

	meta, err := e.landing.CreateStaging(ctx, landing.StagingTableSpec{
		ExecutionID: req.ExecutionID, Side: req.Side, Columns: columns,
	})
	if err != nil {
		return nil, err
	}

	columnNames := make([]string, len(columns))
	for i, c := range columns {
		columnNames[i] = c.Name
	}

	var total int64
	if loadErr := e.loadAllPages(ctx, meta.TableName, columnNames, req, pageSize, &total); loadErr != nil {
		if dropErr := e.landing.DropStaging(ctx, meta.TableName); dropErr != nil {
			e.logger.Error("failed to drop staging table after extract failure", zap.String("table", meta.TableName), zap.Error(dropErr))
		}
		return nil, loadErr
	}

	if len(req.IndexColumns) > 0 {
		if err := e.landing.CreateIndexes(ctx, meta.TableName, req.IndexColumns); err != nil {
			if dropErr := e.landing.DropStaging(ctx, meta.TableName); dropErr != nil {
				e.logger.Error("failed to drop staging table after index failure", zap.String("table", meta.TableName), zap.Error(dropErr))
			}
			return nil, err
		}
	}

	return &ExtractResult{TableName: meta.TableName, RowsExtracted: total}, nil
}

func (e *extractor) loadAllPages(ctx context.Context, tableName string, columnNames []string, req ExtractRequest, pageSize int, total *int64) error {
	offset := 0
	for {
		rows, err := req.Reader.ReadPage(ctx, offset, pageSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		n, err := e.loader.Load(ctx, tableName, columnNames, rows)
		if err != nil {
			return err
		}
		*total += n

		if len(rows) < pageSize {
			return nil
		}
		offset += pageSize
	}
}
