package landing

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/database"
)

// DefaultTTL is how long a staging table lives before CleanupExpired
// reaps it, absent an override on the request.
const DefaultTTL = 24 * time.Hour

// Manager owns the landing database's staging tables: creating them,
// indexing the columns reconciliation will join on, and tearing them
// down either explicitly or once their TTL expires.
type Manager interface {
	Bootstrap(ctx context.Context) error
	CreateStaging(ctx context.Context, spec StagingTableSpec) (*StagingTableMetadata, error)
	CreateIndexes(ctx context.Context, tableName string, columns []string) error
	DropStaging(ctx context.Context, tableName string) error
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// PostgresManager implements Manager against a landing database reached
// over the same pgxpool-backed connection the rest of the module uses.
type PostgresManager struct {
	db         *database.DB
	defaultTTL time.Duration
	logger     *zap.Logger
}

func NewPostgresManager(db *database.DB, defaultTTL time.Duration, logger *zap.Logger) *PostgresManager {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &PostgresManager{db: db, defaultTTL: defaultTTL, logger: logger.Named("landing.manager")}
}

var _ Manager = (*PostgresManager)(nil)

// Bootstrap creates the landing database's own bookkeeping tables. It is
// idempotent and safe to call on every startup.
func (m *PostgresManager) Bootstrap(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS staging_table_metadata (
    table_name   text PRIMARY KEY,
    execution_id text NOT NULL,
    side         text NOT NULL,
    row_count    bigint NOT NULL DEFAULT 0,
    created_at   timestamptz NOT NULL DEFAULT now(),
    expires_at   timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS execution_history (
    execution_id   text PRIMARY KEY,
    ruleset_id     text NOT NULL,
    status         text NOT NULL,
    started_at     timestamptz NOT NULL DEFAULT now(),
    completed_at   timestamptz,
    metrics        jsonb NOT NULL DEFAULT '{}'
);`
	if _, err := m.db.Exec(ctx, ddl); err != nil {
		return apperrors.New(apperrors.KindDBQuery, "bootstrap landing database", true, err)
	}
	return nil
}

// CreateStaging creates one staging table named by StagingTableName and
// records it in staging_table_metadata.
func (m *PostgresManager) CreateStaging(ctx context.Context, spec StagingTableSpec) (*StagingTableMetadata, error) {
	ttl := spec.TTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	now := time.Now().UTC()
	tableName := StagingTableName(spec.ExecutionID, spec.Side, now)

	meta := &StagingTableMetadata{
		TableName: tableName, ExecutionID: spec.ExecutionID, Side: spec.Side,
		CreatedAt: now, ExpiresAt: now.Add(ttl),
	}

	err := m.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, buildCreateTableDDL(tableName, spec.Columns)); err != nil {
			return apperrors.New(apperrors.KindDBQuery, "create staging table "+tableName, true, err)
		}
		const insert = `
			INSERT INTO staging_table_metadata (table_name, execution_id, side, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.Exec(ctx, insert, meta.TableName, meta.ExecutionID, string(meta.Side), meta.CreatedAt, meta.ExpiresAt); err != nil {
			return apperrors.New(apperrors.KindDBQuery, "record staging table metadata "+tableName, true, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// CreateIndexes builds one index per named column on an existing staging
// table — typically the reconciliation rule's match columns, so the
// single KPI-computing query doesn't scan.
func (m *PostgresManager) CreateIndexes(ctx context.Context, tableName string, columns []string) error {
	for _, col := range columns {
		if _, err := m.db.Exec(ctx, buildIndexDDL(tableName, col)); err != nil {
			return apperrors.New(apperrors.KindDBQuery, "create staging index on "+tableName+"."+col, true, err)
		}
	}
	return nil
}

// DropStaging drops a staging table and its metadata row. Dropping the
// table and removing the bookkeeping row happen in the same transaction
// so a crash never leaves an orphaned metadata row pointing at a table
// that no longer exists.
func (m *PostgresManager) DropStaging(ctx context.Context, tableName string) error {
	return m.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, buildDropTableDDL(tableName)); err != nil {
			return apperrors.New(apperrors.KindDBQuery, "drop staging table "+tableName, true, err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM staging_table_metadata WHERE table_name = $1`, tableName); err != nil {
			return apperrors.New(apperrors.KindDBQuery, "remove staging table metadata "+tableName, true, err)
		}
		return nil
	})
}

// CleanupExpired drops every staging table whose TTL has passed as of
// now, returning how many were reaped.
func (m *PostgresManager) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	rows, err := m.db.Query(ctx, `SELECT table_name FROM staging_table_metadata WHERE expires_at < $1`, now)
	if err != nil {
		return 0, apperrors.New(apperrors.KindDBQuery, "list expired staging tables", true, err)
	}
	var expired []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return 0, apperrors.New(apperrors.KindDBQuery, "scan expired staging table name", true, err)
		}
		expired = append(expired, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, apperrors.New(apperrors.KindDBQuery, "iterate expired staging tables", true, err)
	}

	reaped := 0
	for _, name := range expired {
		if err := m.DropStaging(ctx, name); err != nil {
			m.logger.Warn("failed to reap expired staging table", zap.String("table", name), zap.Error(err))
			continue
		}
		reaped++
	}
	return reaped, nil
}

// WithTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (m *PostgresManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return apperrors.New(apperrors.KindDBQuery, "begin landing transaction", true, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.New(apperrors.KindDBQuery, "commit landing transaction", true, err)
	}
	return nil
}
