package landing

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// quoteIdent quotes a single identifier the way the postgres adapter's
// schema discoverer does for generated DDL.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// buildCreateTableDDL generates a CREATE TABLE statement for a staging
// table: every column is nullable (source data is staged as-is, with
// validation happening downstream during reconciliation) plus a
// recon_row_id identity column used to stably order paged reads.
func buildCreateTableDDL(tableName string, columns []ColumnSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", quoteIdent(tableName))
	b.WriteString("    recon_row_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY")
	for _, c := range columns {
		fmt.Fprintf(&b, ",\n    %s %s", quoteIdent(c.Name), sqlType(c))
	}
	b.WriteString("\n)")
	return b.String()
}

func buildDropTableDDL(tableName string) string {
	return "DROP TABLE IF EXISTS " + quoteIdent(tableName)
}

// buildIndexDDL generates a single-column index, named deterministically
// from the table and column so repeated calls are idempotent under
// IF NOT EXISTS.
func buildIndexDDL(tableName, column string) string {
	indexName := "idx_" + sanitizeIndexNamePart(tableName) + "_" + sanitizeIndexNamePart(column)
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", quoteIdent(indexName), quoteIdent(tableName), quoteIdent(column))
}

func sanitizeIndexNamePart(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}
