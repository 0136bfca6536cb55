package recon

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/extract"
	"github.com/3frameslab/kgrecon/pkg/landing"
	"github.com/3frameslab/kgrecon/pkg/rules"
)

// Executor runs one ruleset end-to-end against two already-connected
// source readers.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest, sourceReader, targetReader extract.SourceReader) (*ExecutionRecord, error)
}

// querier is the slice of *database.DB this package actually needs, so
// tests can drive the KPI phase with a fake instead of a live pool.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type executor struct {
	rulesStore rules.Store
	landing    landing.Manager
	extractor  extract.Extractor
	db         querier
	results    Store
	logger     *zap.Logger
}

func NewExecutor(rulesStore rules.Store, landingMgr landing.Manager, extractor extract.Extractor, db querier, results Store, logger *zap.Logger) Executor {
	return &executor{rulesStore: rulesStore, landing: landingMgr, extractor: extractor, db: db, results: results, logger: logger.Named("recon.executor")}
}

func (e *executor) Execute(ctx context.Context, req ExecutionRequest, sourceReader, targetReader extract.SourceReader) (*ExecutionRecord, error) {
	startedAt := time.Now().UTC()
	record := &ExecutionRecord{ExecutionID: req.ExecutionID, RulesetID: req.RulesetID, Status: StatusRunning, StartedAt: startedAt}

	result, err := e.run(ctx, req, sourceReader, targetReader, record, startedAt)
	record.CompletedAt = time.Now().UTC()
	if err != nil {
		record.Status = StatusFailed
		record.ErrorMessage = err.Error()
	} else {
		record.Status = StatusSucceeded
		record = result
		record.CompletedAt = time.Now().UTC()
	}

	if req.StoreResult && e.results != nil {
		if persistErr := e.results.Put(ctx, record); persistErr != nil {
			e.logger.Error("failed to persist execution record", zap.String("execution_id", req.ExecutionID), zap.Error(persistErr))
		}
	}

	if err != nil {
		return record, err
	}
	return record, nil
}

func (e *executor) run(ctx context.Context, req ExecutionRequest, sourceReader, targetReader extract.SourceReader, record *ExecutionRecord, startedAt time.Time) (*ExecutionRecord, error) {
	// Phase 1: plan.
	ruleset, err := e.rulesStore.Get(ctx, req.RulesetID)
	if err != nil {
		return nil, err
	}
	executable := ruleset.ExecutableRules()
	predicates, skipped, err := renderRulePredicates(executable)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		e.logger.Warn("skipped non-renderable rules for this execution", zap.Int("count", len(skipped)))
	}
	sourceTable, targetTable, indexCols := planTables(executable)

	// Phase 2: extract source.
	sourceResult, err := e.extractor.ExtractToLanding(ctx, extract.ExtractRequest{
		ExecutionID: req.ExecutionID, Side: landing.SideSource, Reader: sourceReader, IndexColumns: indexCols.source,
	})
	if err != nil {
		return nil, err
	}

	// Phase 3: extract target.
	targetResult, err := e.extractor.ExtractToLanding(ctx, extract.ExtractRequest{
		ExecutionID: req.ExecutionID, Side: landing.SideTarget, Reader: targetReader, IndexColumns: indexCols.target,
	})
	if err != nil {
		e.dropIfNotKept(ctx, req, sourceResult.TableName)
		return nil, err
	}

	if !req.KeepStaging {
		defer e.dropIfNotKept(ctx, req, sourceResult.TableName)
		defer e.dropIfNotKept(ctx, req, targetResult.TableName)
	}

	// Phase 4: reconcile + KPI in one query.
	query := buildKPIQuery(kpiQueryPlan{
		sourceTable: sourceResult.TableName, targetTable: targetResult.TableName,
		rulePredicates: predicates, inactivePredicate: req.InactivePredicateSQL,
	})

	var totalSource, totalTarget, matchedCount, unmatchedSource, unmatchedTarget, inactiveCount int64
	var avgConfidence float64
	var highConfidenceCount int64
	ruleHits := make([]int64, len(predicates))

	row := e.db.QueryRow(ctx, query)
	scanArgs := []any{&totalSource, &totalTarget, &matchedCount, &avgConfidence, &highConfidenceCount, &unmatchedSource, &unmatchedTarget, &inactiveCount}
	for i := range ruleHits {
		scanArgs = append(scanArgs, &ruleHits[i])
	}
	if err := row.Scan(scanArgs...); err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "scan reconciliation kpi row", true, err)
	}

	executionSeconds := time.Since(startedAt).Seconds()
	if executionSeconds <= 0 {
		executionSeconds = 0.001
	}
	kpis := ComputeKPIs(totalSource, matchedCount, avgConfidence, inactiveCount, ruleHits, executionSeconds)

	_ = highConfidenceCount // surfaced via evidence drill-down (C10), not the headline KPI set

	record.SourceTable, record.TargetTable = sourceTable, targetTable
	record.TotalSourceCount, record.TotalTargetCount = totalSource, totalTarget
	record.MatchedCount = matchedCount
	record.UnmatchedSourceCount, record.UnmatchedTargetCount = unmatchedSource, unmatchedTarget
	record.KPIs = kpis

	return record, nil
}

func (e *executor) dropIfNotKept(ctx context.Context, req ExecutionRequest, tableName string) {
	if req.KeepStaging || tableName == "" {
		return
	}
	if err := e.landing.DropStaging(ctx, tableName); err != nil {
		e.logger.Warn("failed to drop staging table during retention", zap.String("table", tableName), zap.Error(err))
	}
}

type joinColumns struct {
	source []string
	target []string
}

// planTables picks the (source table, target table) pair the ruleset's
// executable, non-composite rules target, and the columns those rules
// join on, so the extractor can index the right columns.
func planTables(executable []rules.Rule) (sourceTable, targetTable string, cols joinColumns) {
	seenSource, seenTarget := map[string]bool{}, map[string]bool{}
	for _, r := range executable {
		if r.MatchType == rules.MatchComposite {
			continue
		}
		if sourceTable == "" {
			sourceTable, targetTable = r.SourceTable, r.TargetTable
		}
		for _, c := range r.SourceColumns {
			if !seenSource[c] {
				seenSource[c] = true
				cols.source = append(cols.source, c)
			}
		}
		for _, c := range r.TargetColumns {
			if !seenTarget[c] {
				seenTarget[c] = true
				cols.target = append(cols.target, c)
			}
		}
	}
	return sourceTable, targetTable, cols
}
