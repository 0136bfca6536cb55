package recon

import (
	"fmt"
	"strconv"
	"strings"
)

// rulePredicate pairs a rendered SQL boolean expression with the static
// confidence of the rule it came from (rules carry a fixed confidence
// from generation time; reconciliation doesn't re-score matches per row).
type rulePredicate struct {
	sql        string
	confidence float64
}

// kpiQueryPlan is everything buildKPIQuery needs to render the single
// reconcile+KPI SQL statement.
type kpiQueryPlan struct {
	sourceTable       string
	targetTable       string
	rulePredicates    []rulePredicate
	inactivePredicate string
}

// buildKPIQuery renders the single statement spec.md's reconciliation
// phase calls for: match/unmatched counts, average confidence, high
// confidence count, per-rule hit counts, and the inactive-source count —
// all via CTEs so no intermediate result set needs materializing
// client-side. Every rule contributes one UNION branch tagged with its
// static confidence; a source row's match confidence is the best
// (highest) confidence among the rules that matched it. KPI arithmetic
// itself (rcr/dqcs/rei/irr) happens in Go from the returned aggregates —
// see ComputeKPIs — since rei needs execution_seconds, which only the
// caller's wall clock knows.
func buildKPIQuery(plan kpiQueryPlan) string {
	inactive := plan.inactivePredicate
	if inactive == "" {
		inactive = "FALSE"
	}
	sourceTable, targetTable := quoteIdent(plan.sourceTable), quoteIdent(plan.targetTable)

	var branches []string
	for _, rp := range plan.rulePredicates {
		branches = append(branches, fmt.Sprintf(
			"SELECT s.recon_row_id AS source_row_id, t.recon_row_id AS target_row_id, %s AS confidence FROM %s s JOIN %s t ON (%s)",
			strconv.FormatFloat(rp.confidence, 'f', -1, 64), sourceTable, targetTable, rp.sql))
	}

	var b strings.Builder
	fmt.Fprintf(&b, `WITH source_total AS (
    SELECT COUNT(*) AS total_source FROM %s s
),
target_total AS (
    SELECT COUNT(*) AS total_target FROM %s t
),
matches AS (
    %s
),
best_match_per_source AS (
    SELECT source_row_id, MAX(target_row_id) AS target_row_id, MAX(confidence) AS confidence
    FROM matches
    GROUP BY source_row_id
),
match_summary AS (
    SELECT
        COUNT(*) AS matched_count,
        COALESCE(AVG(confidence), 0) AS avg_confidence,
        COUNT(*) FILTER (WHERE confidence >= 0.9) AS high_confidence_count
    FROM best_match_per_source
),
unmatched_source AS (
    SELECT COUNT(*) AS unmatched_source_count
    FROM %s s
    WHERE NOT EXISTS (SELECT 1 FROM matches m WHERE m.source_row_id = s.recon_row_id)
),
unmatched_target AS (
    SELECT COUNT(*) AS unmatched_target_count
    FROM %s t
    WHERE NOT EXISTS (SELECT 1 FROM matches m WHERE m.target_row_id = t.recon_row_id)
),
inactive_source AS (
    SELECT COUNT(*) AS inactive_count FROM %s s WHERE %s
)
SELECT
    st.total_source, tt.total_target,
    ms.matched_count, ms.avg_confidence, ms.high_confidence_count,
    us.unmatched_source_count, ut.unmatched_target_count,
    isrc.inactive_count`,
		sourceTable, targetTable,
		strings.Join(branches, "\n    UNION ALL\n    "),
		sourceTable,
		targetTable,
		sourceTable, inactive,
	)

	for i, rp := range plan.rulePredicates {
		fmt.Fprintf(&b, ",\n    (SELECT COUNT(*) FROM %s s WHERE EXISTS (SELECT 1 FROM %s t WHERE %s)) AS rule_%d_hits",
			sourceTable, targetTable, rp.sql, i)
	}

	b.WriteString("\nFROM source_total st, target_total tt, match_summary ms, unmatched_source us, unmatched_target ut, inactive_source isrc")

	return b.String()
}
