package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildMultiRowInsert_GeneratesPositionalParamsAcrossRows(t *testing.T) {
	query, args := buildMultiRowInsert("recon_stage_x", []string{"id", "name"}, [][]any{
		{1, "alice"},
		{2, "bob"},
	})

	assert.Contains(t, query, `INSERT INTO "recon_stage_x" ("id", "name") VALUES`)
	assert.Contains(t, query, "($1, $2), ($3, $4)")
	assert.Equal(t, []any{1, "alice", 2, "bob"}, args)
}
