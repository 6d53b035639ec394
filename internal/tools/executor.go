package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vvka-141/sqlmcp/internal/logging"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the diagnostic logger. Defaults to a NullLogger.
func WithLogger(logger sqlmcp.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTimeout bounds each operation, connection included. Zero means no
// limit.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// Executor runs the three database operations. Every operation opens its own
// session and closes it before returning, so an Executor is safe for
// concurrent use.
type Executor struct {
	connector sqlmcp.Connector
	logger    sqlmcp.Logger
	timeout   time.Duration
}

// NewExecutor creates an Executor that acquires sessions from connector.
// Panics if connector is nil.
func NewExecutor(connector sqlmcp.Connector, opts ...ExecutorOption) *Executor {
	if connector == nil {
		panic("connector cannot be nil")
	}
	e := &Executor{
		connector: connector,
		logger:    logging.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Query executes sql verbatim and materializes every row in fetch order.
// The statement never commits. A statement that yields no columns fails
// with sqlmcp.ErrNoResultSet.
func (e *Executor) Query(ctx context.Context, sql string) (*QueryResult, error) {
	e.logger.Info("Executing query: %s", sql)

	var result *QueryResult
	err := e.withSession(ctx, OpQuery, func(ctx context.Context, s sqlmcp.Session) error {
		rs, err := s.Query(ctx, sql)
		if err != nil {
			return newExecutionError(OpQuery, err)
		}
		if rs == nil || len(rs.Columns) == 0 {
			return newExecutionError(OpQuery, sqlmcp.ErrNoResultSet)
		}
		result = &QueryResult{Columns: rs.Columns, Rows: rowsFromResultSet(rs)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Mutate executes sql and commits it.
func (e *Executor) Mutate(ctx context.Context, sql string) (*MutationResult, error) {
	e.logger.Info("Executing update: %s", sql)

	var result *MutationResult
	err := e.withSession(ctx, OpUpdate, func(ctx context.Context, s sqlmcp.Session) error {
		n, err := s.Exec(ctx, sql)
		if err != nil {
			return newExecutionError(OpUpdate, err)
		}
		result = &MutationResult{RowsAffected: n}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Describe reads the column metadata of table.
func (e *Executor) Describe(ctx context.Context, table string) (*SchemaResult, error) {
	e.logger.Info("Describing table: %s", table)

	result := &SchemaResult{Table: table}
	err := e.withSession(ctx, OpDescribe, func(ctx context.Context, s sqlmcp.Session) error {
		stmt, args, err := describeStatement(s.Driver(), table)
		if err != nil {
			return newExecutionError(OpDescribe, err)
		}
		rs, err := s.Query(ctx, stmt, args...)
		if err != nil {
			return newExecutionError(OpDescribe, err)
		}
		result.Columns = columnsFromResultSet(rs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RunQuery is Query rendered to the text returned to the agent.
func (e *Executor) RunQuery(ctx context.Context, sql string) string {
	result, err := e.Query(ctx, sql)
	if err != nil {
		return RenderError(OpQuery, err)
	}
	return RenderQuery(result)
}

// RunMutation is Mutate rendered to the text returned to the agent.
func (e *Executor) RunMutation(ctx context.Context, sql string) string {
	result, err := e.Mutate(ctx, sql)
	if err != nil {
		return RenderError(OpUpdate, err)
	}
	return RenderMutation(result)
}

// DescribeTable is Describe rendered to the text returned to the agent.
func (e *Executor) DescribeTable(ctx context.Context, table string) string {
	result, err := e.Describe(ctx, table)
	if err != nil {
		return RenderError(OpDescribe, err)
	}
	return RenderSchema(result)
}

// withSession acquires a session, runs fn and closes the session on every
// exit path. Acquisition failures are logged and returned as
// sqlmcp.ErrConnectionFailed.
func (e *Executor) withSession(ctx context.Context, op string, fn func(context.Context, sqlmcp.Session) error) error {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	callID := uuid.NewString()[:8]
	start := time.Now()

	session, err := e.connector.Connect(ctx)
	if err != nil {
		e.logger.Error("Error connecting to database: %v", err)
		if !errors.Is(err, sqlmcp.ErrConnectionFailed) {
			err = fmt.Errorf("%w: %w", sqlmcp.ErrConnectionFailed, err)
		}
		return err
	}
	e.logger.Verbose("[%s] %s: connected in %v", callID, op, time.Since(start).Round(time.Millisecond))

	defer func() {
		// release even when the operation's context has expired
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			e.logger.Verbose("[%s] %s: close: %v", callID, op, err)
		}
		e.logger.Verbose("[%s] %s: finished in %v", callID, op, time.Since(start).Round(time.Millisecond))
	}()

	return fn(ctx, session)
}

// RenderError turns a failed operation into the text returned to the agent.
func RenderError(op string, err error) string {
	if errors.Is(err, sqlmcp.ErrConnectionFailed) {
		return MsgConnectionFailed
	}

	msg := err.Error()
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		msg = execErr.Err.Error()
	}
	if errors.Is(err, sqlmcp.ErrNoResultSet) {
		msg = MsgNoResultSet
	}

	switch op {
	case OpQuery:
		return "Error executing query: " + msg
	case OpUpdate:
		return "Error executing update: " + msg
	default:
		return "Error describing table: " + msg
	}
}
