package db

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// pgActiveSQLTransaction is raised by VACUUM, CREATE INDEX CONCURRENTLY and
// similar statements inside a transaction block.
const pgActiveSQLTransaction = "25001"

// sqlSession runs statements on one connection of a database/sql handle
// that exists only for this session.
type sqlSession struct {
	db     *sqlx.DB
	conn   *sqlx.Conn
	driver sqlmcp.Driver

	closeOnce sync.Once
	closeErr  error
}

var _ sqlmcp.Session = (*sqlSession)(nil)

func newSQLSession(db *sqlx.DB, conn *sqlx.Conn, driver sqlmcp.Driver) *sqlSession {
	return &sqlSession{db: db, conn: conn, driver: driver}
}

func (s *sqlSession) Driver() sqlmcp.Driver {
	return s.driver
}

// Query reads every row inside a transaction that is always rolled back.
func (s *sqlSession) Query(ctx context.Context, sql string, args ...any) (*sqlmcp.ResultSet, error) {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	result := &sqlmcp.ResultSet{Columns: columns}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = normalizeSQLValue(v, types[i].DatabaseTypeName(), s.driver)
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Exec runs sql in a transaction and commits it. Statements the engine
// refuses inside a transaction, such as VACUUM, are run again on their own.
func (s *sqlSession) Exec(ctx context.Context, sql string) (int64, error) {
	tx, err := s.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, sql)
	if err != nil {
		if !requiresAutocommit(err) {
			return 0, err
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			return 0, err
		}
		if res, err = s.conn.ExecContext(ctx, sql); err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *sqlSession) Close(_ context.Context) error {
	s.closeOnce.Do(func() {
		connErr := s.conn.Close()
		dbErr := s.db.Close()
		if connErr != nil {
			s.closeErr = connErr
		} else {
			s.closeErr = dbErr
		}
	})
	return s.closeErr
}

// requiresAutocommit reports whether err means the statement cannot run
// inside a transaction block.
func requiresAutocommit(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgActiveSQLTransaction
	}
	return strings.Contains(err.Error(), "from within a transaction")
}

// normalizeSQLValue converts raw driver values into typed Go values using
// the column's database type name. MySQL's text protocol hands back every
// non-temporal value as []byte; SQLite only does so for BLOB storage.
func normalizeSQLValue(v any, dbType string, driver sqlmcp.Driver) any {
	dbType = strings.ToUpper(dbType)

	switch val := v.(type) {
	case []byte:
		if driver == sqlmcp.DriverSQLite {
			return val
		}
		return convertBytes(val, dbType)
	case time.Time:
		// zero dates ('0000-00-00') arrive as the zero time
		if driver == sqlmcp.DriverMySQL && val.IsZero() {
			return nil
		}
		if dbType == "DATE" {
			return sqlmcp.Date{Time: val}
		}
		return val
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case string:
		if isDecimalType(dbType) {
			return sqlmcp.Decimal(val)
		}
		return val
	case float64:
		if isDecimalType(dbType) {
			return sqlmcp.Decimal(strconv.FormatFloat(val, 'f', -1, 64))
		}
		return val
	}
	return v
}

func convertBytes(b []byte, dbType string) any {
	switch {
	case isBinaryType(dbType):
		return append([]byte(nil), b...)
	case dbType == "BIT":
		var n uint64
		for _, c := range b {
			n = n<<8 | uint64(c)
		}
		return int64(n)
	case isDecimalType(dbType):
		return sqlmcp.Decimal(b)
	case dbType == "TIME":
		if d, ok := parseMySQLTime(string(b)); ok {
			return d
		}
	}

	s := string(b)
	switch {
	case strings.HasPrefix(dbType, "UNSIGNED") && strings.HasSuffix(dbType, "INT"):
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
	case strings.HasSuffix(dbType, "INT") || dbType == "INTEGER" || dbType == "YEAR":
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case dbType == "FLOAT" || dbType == "DOUBLE" || dbType == "REAL":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func isDecimalType(dbType string) bool {
	return strings.HasPrefix(dbType, "DECIMAL") || strings.HasPrefix(dbType, "NUMERIC")
}

func isBinaryType(dbType string) bool {
	switch dbType {
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "GEOMETRY":
		return true
	}
	return false
}

// parseMySQLTime parses a TIME value such as "-838:59:59" or
// "12:00:00.250000" into a duration.
func parseMySQLTime(s string) (time.Duration, bool) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	clock, frac, _ := strings.Cut(s, ".")
	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return 0, false
	}

	var d time.Duration
	for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, false
		}
		d += time.Duration(n) * unit
	}
	if frac != "" {
		if len(frac) > 6 {
			frac = frac[:6]
		}
		us, err := strconv.Atoi(frac + strings.Repeat("0", 6-len(frac)))
		if err != nil {
			return 0, false
		}
		d += time.Duration(us) * time.Microsecond
	}

	if neg {
		d = -d
	}
	return d, true
}
