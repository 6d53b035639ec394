package tools

import (
	"context"
	"errors"
	"sync"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// stubConnector hands out one shared stubSession, or fails.
type stubConnector struct {
	mu       sync.Mutex
	session  *stubSession
	err      error
	connects int
}

func (c *stubConnector) Connect(ctx context.Context) (sqlmcp.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

type stubSession struct {
	mu     sync.Mutex
	driver sqlmcp.Driver

	result  *sqlmcp.ResultSet
	err     error
	panicOn string

	affected int64

	statements []string
	args       [][]any
	closes     int
}

func (s *stubSession) Query(ctx context.Context, sql string, args ...any) (*sqlmcp.ResultSet, error) {
	s.record(sql, args)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubSession) Exec(ctx context.Context, sql string) (int64, error) {
	s.record(sql, nil)
	if s.err != nil {
		return 0, s.err
	}
	return s.affected, nil
}

func (s *stubSession) record(sql string, args []any) {
	s.mu.Lock()
	s.statements = append(s.statements, sql)
	s.args = append(s.args, args)
	s.mu.Unlock()
	if s.panicOn != "" && s.panicOn == sql {
		panic("driver exploded")
	}
}

func (s *stubSession) Driver() sqlmcp.Driver {
	if s.driver == "" {
		return sqlmcp.DriverMySQL
	}
	return s.driver
}

func (s *stubSession) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

var errRefused = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")
