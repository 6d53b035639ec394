package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// pgxSession runs statements on a single native pgx connection.
type pgxSession struct {
	conn *pgx.Conn
}

var _ sqlmcp.Session = (*pgxSession)(nil)

func newPgxSession(conn *pgx.Conn) *pgxSession {
	return &pgxSession{conn: conn}
}

func (s *pgxSession) Driver() sqlmcp.Driver {
	return sqlmcp.DriverPostgres
}

// Query reads every row inside a transaction that is always rolled back.
func (s *pgxSession) Query(ctx context.Context, sql string, args ...any) (*sqlmcp.ResultSet, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &sqlmcp.ResultSet{Columns: make([]string, len(fields))}
	for i, fd := range fields {
		result.Columns[i] = fd.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizePgValue(v, fields[i].DataTypeOID)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Exec runs sql in a transaction and commits it. Statements PostgreSQL
// refuses inside a transaction block are run again on their own.
func (s *pgxSession) Exec(ctx context.Context, sql string) (int64, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, sql)
	if err != nil {
		if !requiresAutocommit(err) {
			return 0, err
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return 0, err
		}
		if tag, err = s.conn.Exec(ctx, sql); err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *pgxSession) Close(ctx context.Context) error {
	if s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close(ctx)
}

// normalizePgValue maps pgx decoded values onto the small set of Go types
// the renderer understands.
func normalizePgValue(v any, oid uint32) any {
	switch val := v.(type) {
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case time.Time:
		if oid == pgtype.DateOID {
			return sqlmcp.Date{Time: val}
		}
		return val
	case pgtype.Numeric:
		dv, err := val.Value()
		if err != nil || dv == nil {
			return nil
		}
		return sqlmcp.Decimal(fmt.Sprint(dv))
	case [16]byte:
		return uuid.UUID(val).String()
	case fmt.Stringer:
		return val.String()
	}
	return v
}
