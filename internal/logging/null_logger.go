package logging

import "github.com/vvka-141/sqlmcp/pkg/sqlmcp"

var (
	_ sqlmcp.Logger = (*NullLogger)(nil)
	_ sqlmcp.Logger = (*ConsoleLogger)(nil)
)

// NullLogger discards every message. Used by tests and one-shot commands
// that must keep stderr quiet.
type NullLogger struct{}

// NewNullLogger creates a new NullLogger.
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) Verbose(format string, args ...interface{}) {}

func (l *NullLogger) Info(format string, args ...interface{}) {}

func (l *NullLogger) Error(format string, args ...interface{}) {}
