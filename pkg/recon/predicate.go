package recon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/rules"
)

var transformTokenPattern = regexp.MustCompile(`\b([xyab])\b`)

// buildRulePredicate renders one rule into a SQL boolean expression over
// the source ("s") and target ("t") staging table aliases.
//
// Multi-table COMPOSITE rules aren't renderable here: the single-query
// KPI computation joins exactly two staging tables (source and target),
// and a composite rule's intermediate tables aren't staged. Composite
// rules are planned around, not executed directly, by this component.
func buildRulePredicate(r rules.Rule) (string, error) {
	switch r.MatchType {
	case rules.MatchComposite:
		return "", apperrors.Invalidf("rule "+r.RuleID+" is a multi-table composite rule, not directly executable against two staging tables", nil)

	case rules.MatchTransformation, rules.MatchFuzzy:
		if len(r.SourceColumns) != 1 || len(r.TargetColumns) != 1 {
			return "", apperrors.Invalidf("rule "+r.RuleID+" has a transformation/fuzzy match type but not exactly one column on each side", nil)
		}
		return renderTransformation(r.Transformation, r.SourceColumns[0], r.TargetColumns[0]), nil

	default: // EXACT, SEMANTIC: column-for-column equality
		if len(r.SourceColumns) == 0 || len(r.SourceColumns) != len(r.TargetColumns) {
			return "", apperrors.Invalidf("rule "+r.RuleID+" has mismatched source/target column counts", nil)
		}
		var clauses []string
		for i := range r.SourceColumns {
			clauses = append(clauses, fmt.Sprintf("%s = %s", qualify("s", r.SourceColumns[i]), qualify("t", r.TargetColumns[i])))
		}
		return strings.Join(clauses, " AND "), nil
	}
}

// renderTransformation substitutes the x/y/a/b placeholder tokens a
// pattern-based transformation template uses with qualified column
// references.
func renderTransformation(template, sourceCol, targetCol string) string {
	sourceRef, targetRef := qualify("s", sourceCol), qualify("t", targetCol)
	return transformTokenPattern.ReplaceAllStringFunc(template, func(tok string) string {
		switch tok {
		case "x", "a":
			return sourceRef
		case "y", "b":
			return targetRef
		default:
			return tok
		}
	})
}

func qualify(alias, column string) string {
	return alias + "." + quoteIdent(column)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CombinedMatchPredicateSQL ORs every executable rule's rendered predicate
// into a single boolean expression over the "s"/"t" aliases. Used by the
// KPI engine's evidence drill-down to reproduce the same match/unmatched
// partition the headline KPI query computed, without re-deriving it from
// buildKPIQuery's CTEs.
func CombinedMatchPredicateSQL(ruleset *rules.Ruleset) (string, error) {
	predicates, _, err := renderRulePredicates(ruleset.ExecutableRules())
	if err != nil {
		return "", err
	}
	clauses := make([]string, len(predicates))
	for i, p := range predicates {
		clauses[i] = "(" + p.sql + ")"
	}
	return strings.Join(clauses, " OR "), nil
}

// renderRulePredicates renders every executable rule into a SQL boolean
// expression tagged with its confidence. Composite rules are skipped
// (see buildRulePredicate) and reported back so the caller can plan
// around them.
func renderRulePredicates(executable []rules.Rule) (rendered []rulePredicate, skipped []rules.Rule, err error) {
	for _, r := range executable {
		clause, buildErr := buildRulePredicate(r)
		if buildErr != nil {
			skipped = append(skipped, r)
			continue
		}
		rendered = append(rendered, rulePredicate{sql: clause, confidence: r.Confidence})
	}
	if len(rendered) == 0 {
		return nil, skipped, apperrors.Invalidf("no executable, renderable rules for reconciliation", nil)
	}
	return rendered, skipped, nil
}
