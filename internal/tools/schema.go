package tools

import (
	"fmt"
	"strings"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// Introspection statements. Each returns six columns per table column, in
// ordinal order: field, type, null, key, default, extra. The table name and
// optional schema are always bound, never interpolated.
const (
	describePostgres = `SELECT c.column_name,
       c.data_type,
       c.is_nullable,
       COALESCE((
           SELECT CASE tc.constraint_type WHEN 'PRIMARY KEY' THEN 'PRI' ELSE 'UNI' END
           FROM information_schema.table_constraints tc
           JOIN information_schema.key_column_usage kcu
             ON kcu.constraint_name = tc.constraint_name
            AND kcu.constraint_schema = tc.constraint_schema
            AND kcu.table_name = tc.table_name
           WHERE tc.table_schema = c.table_schema
             AND tc.table_name = c.table_name
             AND kcu.column_name = c.column_name
             AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
           ORDER BY tc.constraint_type
           LIMIT 1
       ), '') AS column_key,
       c.column_default,
       CASE WHEN c.is_identity = 'YES' OR c.column_default LIKE 'nextval(%' THEN 'auto_increment' ELSE '' END AS extra
FROM information_schema.columns c
WHERE c.table_schema = COALESCE($1, current_schema())
  AND c.table_name = $2
ORDER BY c.ordinal_position`

	describeMySQL = `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT, EXTRA
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(?, DATABASE())
  AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

	describeSQLite = `SELECT name,
       type,
       CASE WHEN "notnull" = 1 OR pk > 0 THEN 'NO' ELSE 'YES' END,
       CASE WHEN pk > 0 THEN 'PRI' ELSE '' END,
       dflt_value,
       ''
FROM pragma_table_info(?, ?)
ORDER BY cid`
)

// describeStatement returns the introspection statement and its arguments
// for table on the given driver. "schema.table" selects a schema; a bare
// name uses the connection's current schema.
func describeStatement(driver sqlmcp.Driver, table string) (string, []any, error) {
	var schema any
	name := table
	if s, t, ok := strings.Cut(table, "."); ok {
		schema, name = s, t
	}

	switch driver {
	case sqlmcp.DriverPostgres:
		return describePostgres, []any{schema, name}, nil
	case sqlmcp.DriverMySQL:
		return describeMySQL, []any{schema, name}, nil
	case sqlmcp.DriverSQLite:
		if schema == nil {
			schema = "main"
		}
		return describeSQLite, []any{name, schema}, nil
	default:
		return "", nil, fmt.Errorf("describe is not supported for driver %q: %w", driver, sqlmcp.ErrUnsupportedDriver)
	}
}

func columnsFromResultSet(rs *sqlmcp.ResultSet) []ColumnInfo {
	if rs == nil {
		return nil
	}
	columns := make([]ColumnInfo, 0, len(rs.Rows))
	for _, r := range rs.Rows {
		var v [6]any
		copy(v[:], r)
		columns = append(columns, ColumnInfo{
			Field:   v[0],
			Type:    v[1],
			Null:    v[2],
			Key:     v[3],
			Default: v[4],
			Extra:   v[5],
		})
	}
	return columns
}
