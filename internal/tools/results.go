package tools

import (
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// Field is one column value of a fetched row.
type Field struct {
	Name  string
	Value any
}

// Row is an ordered column-name to value mapping. Names are unique within a
// row; when a result carries duplicate column names the last value wins and
// the first position is kept.
type Row []Field

// QueryResult holds every row of a read, in fetch order. An empty Rows means
// the statement produced nothing.
type QueryResult struct {
	Columns []string
	Rows    []Row
}

// MutationResult reports the driver's affected-row count.
type MutationResult struct {
	RowsAffected int64
}

// ColumnInfo is one line of a table description. Values keep their database
// form; NULL is nil.
type ColumnInfo struct {
	Field   any
	Type    any
	Null    any
	Key     any
	Default any
	Extra   any
}

// SchemaResult describes the columns of one table in ordinal order.
type SchemaResult struct {
	Table   string
	Columns []ColumnInfo
}

// Operation names used in ExecutionError.
const (
	OpQuery    = "query"
	OpUpdate   = "update"
	OpDescribe = "describe"
)

// ExecutionError reports a statement that the database rejected.
// Error returns the driver's message unchanged.
type ExecutionError struct {
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() []error {
	return []error{e.Err, sqlmcp.ErrExecutionFailed}
}

func newExecutionError(op string, err error) error {
	return &ExecutionError{Op: op, Err: err}
}

// rowsFromResultSet builds field-named rows, collapsing duplicate column
// names.
func rowsFromResultSet(rs *sqlmcp.ResultSet) []Row {
	if rs == nil || len(rs.Rows) == 0 {
		return nil
	}

	// index of the first occurrence of each name
	position := make(map[string]int, len(rs.Columns))
	names := make([]string, 0, len(rs.Columns))
	slot := make([]int, len(rs.Columns))
	for i, name := range rs.Columns {
		p, seen := position[name]
		if !seen {
			p = len(names)
			position[name] = p
			names = append(names, name)
		}
		slot[i] = p
	}

	rows := make([]Row, len(rs.Rows))
	for r, values := range rs.Rows {
		row := make(Row, len(names))
		for p, name := range names {
			row[p].Name = name
		}
		for i, v := range values {
			if i < len(slot) {
				row[slot[i]].Value = v
			}
		}
		rows[r] = row
	}
	return rows
}
