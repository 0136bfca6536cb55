//go:build integration

package testhelpers

import (
	"context"
	"testing"
)

func TestGetTestDB_Connects(t *testing.T) {
	testDB := GetTestDB(t)

	ctx := context.Background()
	var one int
	if err := testDB.Pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		t.Fatalf("failed to query test container: %v", err)
	}
	if one != 1 {
		t.Fatalf("expected 1, got %d", one)
	}
}

func TestGetReconDB_AppliesMigrations(t *testing.T) {
	reconDB := GetReconDB(t)

	ctx := context.Background()
	tables := []string{"kg_graphs", "reconciliation_rulesets", "execution_records", "kpis", "kpi_executions"}
	for _, table := range tables {
		var exists bool
		err := reconDB.DB.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)", table).
			Scan(&exists)
		if err != nil {
			t.Fatalf("failed to check table %s: %v", table, err)
		}
		if !exists {
			t.Errorf("expected migrated table %q to exist", table)
		}
	}
}
