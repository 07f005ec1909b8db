package executor

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// SQLExecutor runs plans through database/sql, for deployments that share a
// *sql.DB with other components.
type SQLExecutor struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewSQLExecutor(db *sqlx.DB, timeout time.Duration) *SQLExecutor {
	return &SQLExecutor{db: db, timeout: timeout}
}

// OpenPostgres opens a lib/pq backed handle. Plans use $n placeholders, which
// the postgres driver accepts without rebinding.
func OpenPostgres(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlx: open")
	}
	return db, nil
}

func (e *SQLExecutor) Query(ctx context.Context, sql string, params []any) ([]Row, error) {
	ctx, cancel := withTimeout(ctx, e.timeout)
	defer cancel()

	rows, err := e.db.QueryxContext(ctx, sql, params...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlx: query")
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		m := map[string]any{}
		if err := rows.MapScan(m); err != nil {
			return nil, errors.Wrap(err, "sqlx: scan")
		}
		out = append(out, normalizeRow(m))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlx: rows")
	}
	return out, nil
}
