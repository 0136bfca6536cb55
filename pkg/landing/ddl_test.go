package landing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStagingTableName_FollowsConvention(t *testing.T) {
	now := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	name := StagingTableName("exec-123", SideSource, now)
	assert.Equal(t, "recon_stage_exec-123_source_20260305_143000", name)
}

func TestSQLType_StringCapsAtMaxVarchar(t *testing.T) {
	assert.Equal(t, "VARCHAR(4000)", sqlType(ColumnSpec{SourceType: "varchar", MaxLength: 10000}))
	assert.Equal(t, "VARCHAR(50)", sqlType(ColumnSpec{SourceType: "varchar", MaxLength: 50}))
	assert.Equal(t, "VARCHAR(4000)", sqlType(ColumnSpec{SourceType: "varchar"}))
}

func TestSQLType_NumericAndTemporalMapping(t *testing.T) {
	assert.Equal(t, "BIGINT", sqlType(ColumnSpec{SourceType: "INT"}))
	assert.Equal(t, "DECIMAL", sqlType(ColumnSpec{SourceType: "numeric"}))
	assert.Equal(t, "DATE", sqlType(ColumnSpec{SourceType: "date"}))
	assert.Equal(t, "TIMESTAMP", sqlType(ColumnSpec{SourceType: "datetime2"}))
	assert.Equal(t, "BOOLEAN", sqlType(ColumnSpec{SourceType: "boolean"}))
}

func TestBuildCreateTableDDL_IncludesIdentityAndAllColumns(t *testing.T) {
	ddl := buildCreateTableDDL("recon_stage_x", []ColumnSpec{
		{Name: "customer_id", SourceType: "int"},
		{Name: "full_name", SourceType: "varchar", MaxLength: 100},
	})
	assert.True(t, strings.Contains(ddl, "recon_row_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY"))
	assert.True(t, strings.Contains(ddl, `"customer_id" BIGINT`))
	assert.True(t, strings.Contains(ddl, `"full_name" VARCHAR(100)`))
}

func TestBuildIndexDDL_IsIdempotentAndSanitized(t *testing.T) {
	ddl := buildIndexDDL("recon_stage_x", "customer-id")
	assert.True(t, strings.Contains(ddl, "IF NOT EXISTS"))
	assert.True(t, strings.Contains(ddl, `"idx_recon_stage_x_customer_id"`))
}

func TestBuildDropTableDDL_IsSafeIfMissing(t *testing.T) {
	ddl := buildDropTableDDL("recon_stage_x")
	assert.Equal(t, `DROP TABLE IF EXISTS "recon_stage_x"`, ddl)
}
