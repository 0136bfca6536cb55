package kg

import "strings"

// importantColumnSuffixes are the literal "important column" markers from
// the node-creation step: a column matching any of these (case-insensitive)
// becomes its own COLUMN node instead of a TABLE property.
var importantColumnSuffixes = []string{"_id", "_uid", "code", "key", "ref"}

// isImportantColumn reports whether col should become a COLUMN node: it is
// a primary key, a foreign key source column, matches a reference pattern,
// or matches an important-column suffix. Field-preference columns are
// added by the caller; explicit-pair columns are not considered here.
func isImportantColumn(colName string, primaryKey, foreignKeySource, referenced bool) bool {
	if primaryKey || foreignKeySource || referenced {
		return true
	}
	lower := strings.ToLower(colName)
	for _, suffix := range importantColumnSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// referencedTableName derives the table name implied by a column matching
// a reference pattern, e.g. "customer_id" -> "customer", "order_uid" ->
// "order". Returns ok=false when the column carries no recognizable
// reference suffix.
func referencedTableName(colName string) (name string, ok bool) {
	lower := strings.ToLower(colName)
	switch {
	case strings.HasSuffix(lower, "_id"):
		return strings.TrimSuffix(lower, "_id"), true
	case strings.HasSuffix(lower, "_uid"):
		return strings.TrimSuffix(lower, "_uid"), true
	case strings.HasSuffix(lower, "_code"):
		return strings.TrimSuffix(lower, "_code"), true
	case strings.HasSuffix(lower, "_key"):
		return strings.TrimSuffix(lower, "_key"), true
	case strings.HasSuffix(lower, "_ref"):
		return strings.TrimSuffix(lower, "_ref"), true
	default:
		return "", false
	}
}

// isUIDOrCodePattern reports whether a column name matches the narrower
// UID/code pattern used to upgrade REFERENCES/CROSS_SCHEMA_REFERENCE edges
// to EXACT reconciliation rules.
func isUIDOrCodePattern(colName string) bool {
	lower := strings.ToLower(colName)
	return strings.HasSuffix(lower, "_uid") || strings.HasSuffix(lower, "_code") ||
		strings.Contains(lower, "uid") || strings.Contains(lower, "code")
}
