package sqlmcp

import (
	"context"
	"time"
)

// Connector opens database connections.
// Different implementations handle the supported drivers and authentication
// methods (passwords, cloud IAM tokens, Cloud SQL dialers).
//
// Every call to Connect opens a new connection; connections are never pooled
// or shared between callers.
type Connector interface {
	// Connect opens a live connection to the configured database.
	// The returned Session must be closed by the caller when done.
	Connect(ctx context.Context) (Session, error)
}

// Session is a single live connection owned by one operation.
//
// Thread-Safety: a Session is not safe for concurrent use.
type Session interface {
	// Query executes sql and materializes every row. The statement runs in a
	// transaction that is rolled back, never committed.
	Query(ctx context.Context, sql string, args ...any) (*ResultSet, error)

	// Exec executes sql in a transaction and commits it, returning the
	// driver-reported affected-row count. Nothing is committed on error.
	Exec(ctx context.Context, sql string) (int64, error)

	// Driver reports which engine the session talks to.
	Driver() Driver

	// Close releases the connection. It is safe to call more than once.
	Close(ctx context.Context) error
}

// ResultSet holds fully materialized rows in fetch order.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// Decimal is an exact numeric value kept in its database text form so no
// precision is lost in transit.
type Decimal string

// Date is a calendar date without a time-of-day component.
type Date struct {
	time.Time
}
