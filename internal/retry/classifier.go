package retry

import (
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

var _ sqlmcp.ErrorClassifier = (*ConnectionClassifier)(nil)

// PostgreSQL error codes for transient conditions.
// See: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"
	pgCodeLockNotAvailable     = "55P03"
)

// MySQL server error numbers for transient conditions.
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlConCountError          = 1040
	mysqlServerShutdown         = 1053
	mysqlTooManyUserConnections = 1203
	mysqlLockWaitTimeout        = 1205
	mysqlLockDeadlock           = 1213
)

// ConnectionClassifier decides whether a failed connection attempt is worth
// retrying. It understands pgconn and go-sql-driver/mysql errors as well as
// plain network errors, so one classifier serves every driver.
type ConnectionClassifier struct{}

// NewConnectionClassifier creates a new ConnectionClassifier.
func NewConnectionClassifier() *ConnectionClassifier {
	return &ConnectionClassifier{}
}

// IsTransient determines if an error is temporary and retryable.
func (c *ConnectionClassifier) IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isTransientPgCode(pgErr.Code)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return isTransientMySQLNumber(myErr.Number)
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	if isNetworkError(err) {
		return true
	}

	return hasTransientMessage(err)
}

func isTransientPgCode(code string) bool {
	// Class 08 connection exception, 53 insufficient resources, 57 operator intervention
	for _, class := range []string{"08", "53", "57"} {
		if strings.HasPrefix(code, class) {
			return true
		}
	}

	switch code {
	case pgCodeSerializationFailure, pgCodeDeadlockDetected, pgCodeLockNotAvailable:
		return true
	}
	return false
}

func isTransientMySQLNumber(number uint16) bool {
	switch number {
	case mysqlConCountError,
		mysqlServerShutdown,
		mysqlTooManyUserConnections,
		mysqlLockWaitTimeout,
		mysqlLockDeadlock:
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() || dnsErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH)
	}

	return false
}

// hasTransientMessage catches wrapped errors that lost their concrete type,
// e.g. pgconn.ConnectError formatting the dial failure into its message.
func hasTransientMessage(err error) bool {
	msg := strings.ToLower(err.Error())

	// auth and catalog failures never heal by waiting
	for _, fatal := range []string{"password authentication failed", "access denied", "does not exist", "unknown database"} {
		if strings.Contains(msg, fatal) {
			return false
		}
	}

	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"connection timeout",
		"broken pipe",
		"server closed the connection",
		"too many connections",
		"the database system is starting up",
		"the database system is shutting down",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
