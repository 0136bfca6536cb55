package nlsql

import (
	"context"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
)

// BatchRequest carries multiple independent definitions to compile and run
// against the same KG and dialect.
type BatchRequest struct {
	KGName      string
	Definitions []string
	Dialect     Dialect
	Limit       int
	UseLLM      bool
	KnownTables []string
}

// BatchItemResult is one definition's outcome: either a result or an error
// message, never both.
type BatchItemResult struct {
	Definition string       `json:"definition"`
	Result     *QueryResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// BatchResult aggregates statistics over the successful items only; a
// failed item contributes to TotalItems/FailedItems but not to the
// averages.
type BatchResult struct {
	Items             []BatchItemResult `json:"items"`
	TotalItems        int               `json:"total_items"`
	FailedItems       int               `json:"failed_items"`
	TotalRecords      int               `json:"total_records"`
	TotalElapsedMS    int64             `json:"total_elapsed_ms"`
	AverageConfidence float64           `json:"average_confidence"`
}

// BatchRunner runs a BatchRequest, isolating each definition's failure from
// the rest.
type BatchRunner interface {
	Run(ctx context.Context, req BatchRequest, runner datasource.QueryExecutor) (*BatchResult, error)
}

type batchRunner struct {
	executor Executor
	logger   *zap.Logger
}

// NewBatchRunner builds a BatchRunner over an Executor.
func NewBatchRunner(executor Executor, logger *zap.Logger) BatchRunner {
	return &batchRunner{executor: executor, logger: logger.Named("nlsql.batch")}
}

func (b *batchRunner) Run(ctx context.Context, req BatchRequest, runner datasource.QueryExecutor) (*BatchResult, error) {
	result := &BatchResult{TotalItems: len(req.Definitions)}

	var confidenceSum float64
	var succeeded int
	for _, def := range req.Definitions {
		item := BatchItemResult{Definition: def}

		itemReq := CompileRequest{
			KGName:      req.KGName,
			Definition:  def,
			Dialect:     req.Dialect,
			Limit:       req.Limit,
			UseLLM:      req.UseLLM,
			KnownTables: req.KnownTables,
		}
		qr, err := b.executor.Run(ctx, itemReq, runner)
		if err != nil {
			b.logger.Warn("batch item failed", zap.String("definition", def), zap.Error(err))
			item.Error = err.Error()
			result.FailedItems++
		} else {
			item.Result = qr
			result.TotalRecords += qr.RecordCount
			result.TotalElapsedMS += qr.ElapsedMS
			confidenceSum += qr.Confidence
			succeeded++
		}
		result.Items = append(result.Items, item)
	}

	if succeeded > 0 {
		result.AverageConfidence = confidenceSum / float64(succeeded)
	}
	return result, nil
}
