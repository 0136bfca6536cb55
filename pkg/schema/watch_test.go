package schema_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/schema"
)

func TestFileStore_ReloadOnChange_InvalidatesCache(t *testing.T) {
	dir := t.TempDir()
	writeSchemaFile(t, dir, "watched", sampleSchemaJSON)

	store := schema.NewFileStore(dir)
	ctx := context.Background()

	first, err := store.Load(ctx, "watched")
	require.NoError(t, err)

	changed, stop, err := store.ReloadOnChange(zap.NewNop())
	require.NoError(t, err)
	defer stop()

	updated := `{"database": "orderMgmt2", "total_tables": 2, "tables": {
		"zebra_table": {"table_name": "zebra_table", "columns": [{"name": "id", "type": "int", "primary_key": true}], "primary_keys": ["id"], "foreign_keys": [], "indexes": []},
		"alpha_table": {"table_name": "alpha_table", "columns": [{"name": "id", "type": "int", "primary_key": true}], "primary_keys": ["id"], "foreign_keys": [], "indexes": []}
	}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "watched.schema.json"), []byte(updated), 0644))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for file change notification")
	}

	second, err := store.Load(ctx, "watched")
	require.NoError(t, err)
	require.NotSame(t, first, second)
	require.Equal(t, "orderMgmt2", second.Database)
}
