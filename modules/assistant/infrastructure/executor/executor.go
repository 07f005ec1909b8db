// Package executor runs planned SQL against the fleet datastore.
package executor

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/flotatrack/fleet-assistant/pkg/serrors"
)

var ErrExecution = serrors.NewError("ASSISTANT_EXECUTION_FAILED", "query execution failed", "Assistant.Errors.Execution")

// Row is one result row keyed by column name.
type Row map[string]any

type Executor interface {
	Query(ctx context.Context, sql string, params []any) ([]Row, error)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// normalize converts driver specific values into plain Go values so rows
// can be rendered and cached uniformly.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int32:
		return int64(val)
	case int16:
		return int64(val)
	case float32:
		return float64(val)
	}
	return v
}

func normalizeRow(m map[string]any) Row {
	row := make(Row, len(m))
	for k, v := range m {
		row[k] = normalize(v)
	}
	return row
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		c := make(Row, len(r))
		for k, v := range r {
			c[k] = v
		}
		out[i] = c
	}
	return out
}
