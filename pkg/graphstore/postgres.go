package graphstore

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/database"
)

// PostgresStore persists KGs in a single kg_graphs table, one row per name,
// with nodes/relationships/metadata stored as jsonb columns.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore wraps an already-connected pool. Callers run the
// kg_graphs migration before first use.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

var _ Store = (*PostgresStore)(nil)

func (s *PostgresStore) Put(ctx context.Context, rec Record) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return apperrors.New(apperrors.KindDBConnect, "begin put transaction", true, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
		INSERT INTO kg_graphs (name, nodes, relationships, metadata, schema_file, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (name) DO UPDATE SET
			nodes = EXCLUDED.nodes,
			relationships = EXCLUDED.relationships,
			metadata = EXCLUDED.metadata,
			schema_file = EXCLUDED.schema_file,
			updated_at = EXCLUDED.updated_at`

	if _, err := tx.Exec(ctx, query, rec.Name, rec.Nodes, rec.Relationships, rec.Metadata, rec.SchemaFile); err != nil {
		return apperrors.New(apperrors.KindDBQuery, "put kg "+rec.Name, true, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.New(apperrors.KindDBConnect, "commit put transaction", true, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, name string) (Record, error) {
	const query = `SELECT name, nodes, relationships, metadata, schema_file, updated_at FROM kg_graphs WHERE name = $1`

	var rec Record
	row := s.db.QueryRow(ctx, query, name)
	if err := row.Scan(&rec.Name, &rec.Nodes, &rec.Relationships, &rec.Metadata, &rec.SchemaFile, &rec.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Record{}, apperrors.NotFoundf("kg", name)
		}
		return Record{}, apperrors.New(apperrors.KindDBQuery, "get kg "+name, true, err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM kg_graphs ORDER BY name`)
	if err != nil {
		return nil, apperrors.New(apperrors.KindDBQuery, "list kgs", true, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperrors.New(apperrors.KindDBQuery, "scan kg name", true, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM kg_graphs WHERE name = $1`, name)
	if err != nil {
		return apperrors.New(apperrors.KindDBQuery, "delete kg "+name, true, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundf("kg", name)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM kg_graphs WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, apperrors.New(apperrors.KindDBQuery, "check kg exists "+name, true, err)
	}
	return exists, nil
}

// Query loads the named KG's relationships into an in-process adjacency
// index and answers the pattern against it. KGs are small enough (schema
// counts, not row counts) that rebuilding the index per call is cheap and
// avoids a recursive-CTE dialect dependency for bounded-path search.
func (s *PostgresStore) Query(ctx context.Context, name string, pattern QueryPattern) ([]QueryMatch, error) {
	rec, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	var edges []Edge
	if err := json.Unmarshal(rec.Relationships, &edges); err != nil {
		return nil, apperrors.Invalidf("kg "+name+" has malformed relationships", err)
	}
	return runQuery(edges, pattern), nil
}
