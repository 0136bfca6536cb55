package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3frameslab/kgrecon/pkg/schema"
)

const sampleSchemaJSON = `{
  "database": "orderMgmt",
  "total_tables": 2,
  "tables": {
    "zebra_table": {
      "table_name": "zebra_table",
      "columns": [{"name": "id", "type": "int", "nullable": false, "primary_key": true}],
      "primary_keys": ["id"],
      "foreign_keys": [],
      "indexes": []
    },
    "alpha_table": {
      "table_name": "alpha_table",
      "columns": [
        {"name": "id", "type": "int", "nullable": false, "primary_key": true},
        {"name": "zebra_id", "type": "int", "nullable": true}
      ],
      "primary_keys": ["id"],
      "foreign_keys": [{"source_column": "zebra_id", "target_table": "zebra_table", "target_column": "id"}],
      "indexes": []
    }
  }
}`

func TestDescriptor_UnmarshalPreservesTableOrder(t *testing.T) {
	var desc schema.Descriptor
	require.NoError(t, json.Unmarshal([]byte(sampleSchemaJSON), &desc))

	assert.Equal(t, []string{"zebra_table", "alpha_table"}, desc.TableOrder)

	ordered := desc.OrderedTables()
	require.Len(t, ordered, 2)
	assert.Equal(t, "zebra_table", ordered[0].TableName)
	assert.Equal(t, "alpha_table", ordered[1].TableName)
}

func TestDescriptor_Validate_Success(t *testing.T) {
	var desc schema.Descriptor
	require.NoError(t, json.Unmarshal([]byte(sampleSchemaJSON), &desc))
	assert.NoError(t, desc.Validate())
}

func TestDescriptor_Validate_ZeroTablesIsError(t *testing.T) {
	desc := schema.Descriptor{Database: "empty", Tables: map[string]schema.Table{}}
	err := desc.Validate()
	require.Error(t, err)
}

func TestDescriptor_Validate_PrimaryKeyNotInColumnsIsError(t *testing.T) {
	desc := schema.Descriptor{
		Database: "bad",
		Tables: map[string]schema.Table{
			"t": {
				TableName:   "t",
				Columns:     []schema.Column{{Name: "id"}},
				PrimaryKeys: []string{"missing_col"},
			},
		},
	}
	err := desc.Validate()
	require.Error(t, err)
}

func TestTable_Column_CaseSensitiveLookup(t *testing.T) {
	tbl := schema.Table{Columns: []schema.Column{{Name: "Material"}}}

	_, ok := tbl.Column("Material")
	assert.True(t, ok)

	_, ok = tbl.Column("material")
	assert.False(t, ok)
}
