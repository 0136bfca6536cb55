package kpi

import (
	"fmt"
	"strings"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
)

// evidencePlan is everything buildEvidenceQuery needs to render the
// filtered SELECT behind one evidence() call.
type evidencePlan struct {
	metricType        MetricType
	sourceTable       string
	targetTable       string
	matchPredicateSQL string
	inactivePredicate string
	userFilterSQL     string
	limit             int
	offset            int
}

// buildEvidenceQuery renders the SELECT for one match category, mirroring
// the matched/unmatched_source/unmatched_target partition buildKPIQuery
// (pkg/recon) computes in aggregate, but returning rows instead of counts.
// MATCH_RATE and DATA_QUALITY_SCORE both read the matched partition: the
// former counts it, the latter scores it, but the evidence rows are the
// same join.
func buildEvidenceQuery(plan evidencePlan) (string, error) {
	if plan.sourceTable == "" || plan.targetTable == "" {
		return "", apperrors.Invalidf("kpi has no linked staging tables to draw evidence from", nil)
	}

	source, target := quoteIdent(plan.sourceTable), quoteIdent(plan.targetTable)
	userFilter := ""
	if plan.userFilterSQL != "" {
		userFilter = " AND (" + plan.userFilterSQL + ")"
	}

	var sql string
	switch plan.metricType {
	case MetricMatchRate, MetricDataQualityScore:
		predicate := plan.matchPredicateSQL
		if predicate == "" {
			return "", apperrors.Invalidf("kpi has no match predicate for its evidence partition", nil)
		}
		sql = fmt.Sprintf("SELECT s.* FROM %s s JOIN %s t ON (%s) WHERE true%s", source, target, predicate, userFilter)

	case MetricUnmatchedSourceCount:
		predicate := plan.matchPredicateSQL
		if predicate == "" {
			return "", apperrors.Invalidf("kpi has no match predicate for its evidence partition", nil)
		}
		sql = fmt.Sprintf("SELECT s.* FROM %s s WHERE NOT EXISTS (SELECT 1 FROM %s t WHERE %s)%s", source, target, predicate, userFilter)

	case MetricUnmatchedTargetCount:
		predicate := plan.matchPredicateSQL
		if predicate == "" {
			return "", apperrors.Invalidf("kpi has no match predicate for its evidence partition", nil)
		}
		sql = fmt.Sprintf("SELECT t.* FROM %s t WHERE NOT EXISTS (SELECT 1 FROM %s s WHERE %s)%s", target, source, predicate, userFilter)

	case MetricInactiveRecordCount:
		inactive := plan.inactivePredicate
		if inactive == "" {
			inactive = "FALSE"
		}
		sql = fmt.Sprintf("SELECT s.* FROM %s s WHERE (%s)%s", source, inactive, userFilter)

	default:
		return "", apperrors.Invalidf("unknown kpi metric type "+string(plan.metricType), nil)
	}

	return fmt.Sprintf("%s LIMIT %d OFFSET %d", sql, positiveOr(plan.limit, 100), plan.offset), nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
