package landing

import (
	"strconv"
	"strings"
)

const maxVarcharLength = 4000

// sqlType maps a column's logical source type to the landing database's
// PostgreSQL column type. String types are capped at maxVarcharLength;
// numeric, date, and time types pass through to their closest PostgreSQL
// equivalent.
func sqlType(col ColumnSpec) string {
	switch normalizeSourceType(col.SourceType) {
	case "int", "integer", "int4":
		return "BIGINT"
	case "bigint", "int8", "long":
		return "BIGINT"
	case "smallint", "int2":
		return "BIGINT"
	case "decimal", "numeric", "float", "double", "real":
		return "DECIMAL"
	case "bool", "boolean":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "time":
		return "TIME"
	case "timestamp", "datetime", "datetime2":
		return "TIMESTAMP"
	case "timestamptz", "datetimeoffset":
		return "TIMESTAMPTZ"
	case "uuid", "guid":
		return "UUID"
	case "json", "jsonb":
		return "JSONB"
	default:
		length := col.MaxLength
		if length <= 0 || length > maxVarcharLength {
			length = maxVarcharLength
		}
		return varchar(length)
	}
}

func varchar(length int) string {
	return "VARCHAR(" + strconv.Itoa(length) + ")"
}

func normalizeSourceType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
