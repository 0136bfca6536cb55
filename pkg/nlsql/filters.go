package nlsql

import (
	"regexp"
	"strings"

	"github.com/3frameslab/kgrecon/pkg/kg"
)

// columnsOfTable returns every column node's name belonging to table.
func columnsOfTable(g *kg.Graph, tableName string) []string {
	var out []string
	for _, n := range g.Nodes {
		if n.Label != kg.LabelColumn {
			continue
		}
		if t, _ := n.Properties["table"].(string); t == tableName {
			out = append(out, n.Name)
		}
	}
	return out
}

func columnContaining(columns []string, fragment string) (string, bool) {
	fragment = strings.ToLower(fragment)
	for _, c := range columns {
		if strings.Contains(strings.ToLower(c), fragment) {
			return c, true
		}
	}
	return "", false
}

var (
	activePattern   = regexp.MustCompile(`\binactive\b|\bactive\b`)
	dateRangePattern = regexp.MustCompile(`\b(since|after|before|between)\s+(\S+)`)
)

// extractFilters is the rule-based fallback: it matches status qualifiers
// ("active"/"inactive") and simple date-range phrases against the target
// table's own columns. The LLM-based extraction (definition + allowed
// column schema, temperature-default, no custom sampling) is the primary
// path when a client is wired in; this always runs as a fallback/floor.
func extractFilters(definition, table string, columns []string) []Filter {
	lower := strings.ToLower(definition)
	var filters []Filter

	if m := activePattern.FindString(lower); m != "" {
		if col, ok := columnContaining(columns, "active"); ok {
			value := "Active"
			if m == "inactive" {
				value = "Inactive"
			}
			filters = append(filters, Filter{Column: col, Op: "=", Value: value, Table: table})
		}
	}

	if m := dateRangePattern.FindStringSubmatch(lower); len(m) == 3 {
		if col, ok := columnContaining(columns, "date"); ok {
			op := ">="
			if m[1] == "before" {
				op = "<="
			}
			filters = append(filters, Filter{Column: col, Op: op, Value: m[2], Table: table})
		}
	}

	return filters
}
