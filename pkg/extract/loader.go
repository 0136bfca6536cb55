package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/database"
)

// insertBatchSize is how many rows one multi-row INSERT statement carries
// when the bulk-copy path isn't available.
const insertBatchSize = 500

// BulkLoader writes staged rows using the fastest mechanism the target
// supports, falling back in order: server-side bulk copy, multi-row
// INSERT batches, then per-row INSERT.
type BulkLoader struct {
	db     *database.DB
	logger *zap.Logger
}

func NewBulkLoader(db *database.DB, logger *zap.Logger) *BulkLoader {
	return &BulkLoader{db: db, logger: logger.Named("extract.loader")}
}

// Load writes rows into tableName's columnNames, returning how many rows
// landed.
func (l *BulkLoader) Load(ctx context.Context, tableName string, columnNames []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := l.copyFrom(ctx, tableName, columnNames, rows)
	if err == nil {
		return n, nil
	}
	l.logger.Warn("bulk copy failed, falling back to batched insert", zap.String("table", tableName), zap.Error(err))

	n, err = l.batchInsert(ctx, tableName, columnNames, rows)
	if err == nil {
		return n, nil
	}
	l.logger.Warn("batched insert failed, falling back to per-row insert", zap.String("table", tableName), zap.Error(err))

	return l.rowInsert(ctx, tableName, columnNames, rows)
}

func (l *BulkLoader) copyFrom(ctx context.Context, tableName string, columnNames []string, rows [][]any) (int64, error) {
	n, err := l.db.Pool.CopyFrom(ctx, pgx.Identifier{tableName}, columnNames, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, apperrors.New(apperrors.KindDBQuery, "bulk copy into "+tableName, true, err)
	}
	return n, nil
}

func (l *BulkLoader) batchInsert(ctx context.Context, tableName string, columnNames []string, rows [][]any) (int64, error) {
	var total int64
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		query, args := buildMultiRowInsert(tableName, columnNames, chunk)
		if _, err := l.db.Exec(ctx, query, args...); err != nil {
			return total, apperrors.New(apperrors.KindDBQuery, "batched insert into "+tableName, true, err)
		}
		total += int64(len(chunk))
	}
	return total, nil
}

func (l *BulkLoader) rowInsert(ctx context.Context, tableName string, columnNames []string, rows [][]any) (int64, error) {
	var total int64
	for _, row := range rows {
		query, args := buildMultiRowInsert(tableName, columnNames, [][]any{row})
		if _, err := l.db.Exec(ctx, query, args...); err != nil {
			return total, apperrors.New(apperrors.KindDBQuery, "row insert into "+tableName, true, err)
		}
		total++
	}
	return total, nil
}

func buildMultiRowInsert(tableName string, columnNames []string, rows [][]any) (string, []any) {
	quotedCols := make([]string, len(columnNames))
	for i, c := range columnNames {
		quotedCols[i] = pgx.Identifier{c}.Sanitize()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", pgx.Identifier{tableName}.Sanitize(), strings.Join(quotedCols, ", "))

	args := make([]any, 0, len(rows)*len(columnNames))
	paramIdx := 1
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		placeholders := make([]string, len(row))
		for j, v := range row {
			placeholders[j] = fmt.Sprintf("$%d", paramIdx)
			args = append(args, v)
			paramIdx++
		}
		sb.WriteString("(" + strings.Join(placeholders, ", ") + ")")
	}

	return sb.String(), args
}
