package nlsql

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/adapters/datasource"
	"github.com/3frameslab/kgrecon/pkg/apperrors"
	querysql "github.com/3frameslab/kgrecon/pkg/sql"
)

// Executor compiles and runs one free-text definition end to end:
// classify -> resolve entities -> infer joins -> generate SQL -> execute.
// Distinct from the reconciliation executor (C8): this runs read-only
// ad-hoc queries against a single configured data source, not a
// source/target pair.
type Executor interface {
	Compile(ctx context.Context, req CompileRequest) (*CompiledQuery, error)
	Run(ctx context.Context, req CompileRequest, runner datasource.QueryExecutor) (*QueryResult, error)
}

type executor struct {
	parser Parser
	logger *zap.Logger
}

// NewExecutor builds an Executor over a Parser (which owns KG access and
// the optional LLM client).
func NewExecutor(parser Parser, logger *zap.Logger) Executor {
	return &executor{parser: parser, logger: logger.Named("nlsql.executor")}
}

func (e *executor) Compile(ctx context.Context, req CompileRequest) (*CompiledQuery, error) {
	intent, err := e.parser.Parse(ctx, req)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = datasource.MaxQueryLimit
	}
	generated, err := Generate(*intent, req.Dialect, limit)
	if err != nil {
		return nil, err
	}

	validation := querysql.ValidateAndNormalize(generated)
	if validation.Error != nil {
		return nil, apperrors.New(apperrors.KindLLMSchemaViolation, "generated sql failed validation", false, validation.Error)
	}

	return &CompiledQuery{Intent: *intent, SQL: validation.NormalizedSQL, Dialect: req.Dialect, Limit: limit}, nil
}

func (e *executor) Run(ctx context.Context, req CompileRequest, runner datasource.QueryExecutor) (*QueryResult, error) {
	compiled, err := e.Compile(ctx, req)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, err := runner.Query(ctx, compiled.SQL, compiled.Limit)
	elapsed := time.Since(started)
	if err != nil {
		e.logger.Warn("nl query execution failed", zap.String("sql", compiled.SQL), zap.Error(err))
		return nil, err
	}

	sampleSize := len(result.Rows)
	if sampleSize > 20 {
		sampleSize = 20
	}

	return &QueryResult{
		SQL:             compiled.SQL,
		RecordCount:     result.RowCount,
		JoinColumnsUsed: compiled.Intent.JoinColumns,
		Confidence:      compiled.Intent.Confidence,
		ElapsedMS:       elapsed.Milliseconds(),
		SampleRows:      result.Rows[:sampleSize],
	}, nil
}
