package nlsql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
)

// materialMasterNamePattern matches a table whose canonical name identifies
// it as the material master, by configured name or substring.
var materialMasterNamePattern = "material_master"

func looksLikeMaterialMaster(table string) bool {
	return strings.Contains(strings.ToLower(table), materialMasterNamePattern)
}

// Generate renders intent into dialect-specific SQL. Comparison queries
// require a resolved join; aggregation and filter queries tolerate zero
// joins (single-table).
func Generate(intent QueryIntent, dialect Dialect, limit int) (string, error) {
	switch intent.QueryType {
	case TypeComparison:
		return generateComparison(intent, dialect, limit)
	case TypeAggregation:
		return generateAggregation(intent, dialect, limit)
	default:
		return generateFilterQuery(intent, dialect, limit)
	}
}

func generateComparison(intent QueryIntent, dialect Dialect, limit int) (string, error) {
	if len(intent.JoinColumns) == 0 {
		return "", apperrors.Invalidf("comparison query has no resolved join path", nil)
	}
	cols := selectColumns(intent, dialect, "s")
	from := "FROM " + quoteIdent(dialect, intent.SourceTable) + " s"

	joinType := JoinLeft
	if intent.Operation == OpIn {
		joinType = JoinInner
	}
	joins := renderJoins(intent.JoinColumns, dialect, joinType)

	where := renderFilters(intent, dialect)
	if intent.Operation == OpNotIn {
		lastHop := intent.JoinColumns[len(intent.JoinColumns)-1]
		nullPred := qualifyCol(dialect, lastHop.RightAlias, lastHop.RightCol) + " IS NULL"
		where = andAll(nullPred, where)
	}
	where = andAll(where, rownumPredicate(dialect, limit))

	return assemble(dialect, limit, "SELECT DISTINCT", cols, from, joins, where, ""), nil
}

func generateFilterQuery(intent QueryIntent, dialect Dialect, limit int) (string, error) {
	cols := selectColumns(intent, dialect, "s")
	from := "FROM " + quoteIdent(dialect, intent.SourceTable) + " s"
	joins := renderJoins(intent.JoinColumns, dialect, JoinInner)
	where := andAll(renderFilters(intent, dialect), rownumPredicate(dialect, limit))
	return assemble(dialect, limit, "SELECT DISTINCT", cols, from, joins, where, ""), nil
}

func generateAggregation(intent QueryIntent, dialect Dialect, limit int) (string, error) {
	targetAlias := "s"
	if intent.TargetTable != "" {
		targetAlias = aliasForTable(intent, intent.TargetTable, "t")
	}

	var projection string
	switch intent.AggregateFunc {
	case AggSum:
		projection = fmt.Sprintf("SUM(%s) AS total", qualifyCol(dialect, targetAlias, intent.AggregateColumn))
	case AggAvg:
		projection = fmt.Sprintf("AVG(%s) AS average", qualifyCol(dialect, targetAlias, intent.AggregateColumn))
	default:
		projection = "COUNT(*) AS count"
	}

	from := "FROM " + quoteIdent(dialect, intent.SourceTable) + " s"
	joins := renderJoins(intent.JoinColumns, dialect, JoinInner)
	where := andAll(renderFilters(intent, dialect), rownumPredicate(dialect, limit))

	groupBy := ""
	if intent.GroupByColumn != "" {
		groupBy = "GROUP BY " + qualifyCol(dialect, targetAlias, intent.GroupByColumn)
	}

	return assemble(dialect, limit, "SELECT", projection, from, joins, where, groupBy), nil
}

// assemble glues the clauses together with dialect-correct LIMIT/TOP
// placement.
func assemble(dialect Dialect, limit int, selectKw, cols, from, joins, where, trailer string) string {
	var b strings.Builder
	b.WriteString(selectKw)
	b.WriteString(" ")
	b.WriteString(selectPrefix(dialect, limit))
	b.WriteString(cols)
	b.WriteString(" ")
	b.WriteString(from)
	if joins != "" {
		b.WriteString(" ")
		b.WriteString(joins)
	}
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	if trailer != "" {
		b.WriteString(" ")
		b.WriteString(trailer)
	}
	b.WriteString(limitSuffix(dialect, limit))
	return b.String()
}

// selectColumns builds the projection list: "s.*" plus the OPS_PLANNER
// enhancement for every materialized alias whose table looks like the
// material master.
func selectColumns(intent QueryIntent, dialect Dialect, baseAlias string) string {
	cols := []string{baseAlias + ".*"}
	seen := map[string]bool{}

	checkOpsPlanner := func(alias, table string) {
		if !looksLikeMaterialMaster(table) {
			return
		}
		if seen[alias] {
			return
		}
		seen[alias] = true
		cols = append(cols, qualifyCol(dialect, alias, "OPS_PLANNER")+" AS ops_planner")
	}

	checkOpsPlanner(baseAlias, intent.SourceTable)
	for _, hop := range intent.JoinColumns {
		checkOpsPlanner(hop.RightAlias, hop.RightTable)
	}

	return strings.Join(cols, ", ")
}

// renderJoins renders one JOIN clause per hop. override, when set, replaces
// the join kind for primary-path hops (those inferJoinPath marked INNER)
// so a comparison's NOT_IN/IN choice controls the source/target hop; hops
// already marked LEFT (terminal or additional-column enrichment) keep
// their own kind regardless, per the "terminal enrichment tables are LEFT
// JOIN" rule.
func renderJoins(hops []JoinHop, dialect Dialect, override JoinType) string {
	var parts []string
	for _, h := range hops {
		jt := h.Type
		if override != "" && jt == JoinInner {
			jt = override
		}
		kw := "INNER JOIN"
		if jt == JoinLeft {
			kw = "LEFT JOIN"
		}
		parts = append(parts, fmt.Sprintf("%s %s %s ON %s = %s",
			kw, quoteIdent(dialect, h.RightTable), h.RightAlias,
			qualifyCol(dialect, h.LeftAlias, h.LeftCol), qualifyCol(dialect, h.RightAlias, h.RightCol)))
	}
	return strings.Join(parts, " ")
}

// renderFilters attaches each filter to the alias its Table resolves to:
// source gets "s", target (or the first hop whose RightTable matches) gets
// its resolved alias, any other table keeps whatever alias inferJoinPath
// assigned it.
func renderFilters(intent QueryIntent, dialect Dialect) string {
	var parts []string
	for _, f := range intent.Filters {
		alias := aliasForTable(intent, f.Table, "s")
		parts = append(parts, fmt.Sprintf("%s %s '%s'", qualifyCol(dialect, alias, f.Column), f.Op, escapeLiteral(f.Value)))
	}
	sort.Strings(parts)
	return strings.Join(parts, " AND ")
}

func aliasForTable(intent QueryIntent, table, fallback string) string {
	if table == intent.SourceTable || table == "" {
		return "s"
	}
	for _, h := range intent.JoinColumns {
		if h.RightTable == table {
			return h.RightAlias
		}
		if h.LeftTable == table {
			return h.LeftAlias
		}
	}
	return fallback
}

func andAll(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " AND ")
}

func escapeLiteral(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}
