package executor

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// PgxQuerier is satisfied by *pgxpool.Pool and pgx.Tx.
type PgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PgxExecutor struct {
	db      PgxQuerier
	timeout time.Duration
}

func NewPgxExecutor(db PgxQuerier, timeout time.Duration) *PgxExecutor {
	return &PgxExecutor{db: db, timeout: timeout}
}

func (e *PgxExecutor) Query(ctx context.Context, sql string, params []any) ([]Row, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.Query(ctx, sql, params...)
	if err != nil {
		return nil, errors.Wrap(err, "pgx: query")
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, errors.Wrap(err, "pgx: collect rows")
	}
	out := make([]Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, normalizeRow(m))
	}
	return out, nil
}
