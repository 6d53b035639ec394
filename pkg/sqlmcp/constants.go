package sqlmcp

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Command completed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Failed to connect to database
	ExitExecutionFailed = 13 // SQL execution failed
)

const (
	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts
	// when acquiring a connection. Statements are never retried.
	DefaultRetryMaxAttempts = 3

	// DefaultMaxConcurrency bounds the number of tool calls served at once.
	DefaultMaxConcurrency = 4

	// DefaultPostgresPort and DefaultMySQLPort are used when no port is configured.
	DefaultPostgresPort = 5432
	DefaultMySQLPort    = 3306

	// ServerName is advertised to clients during the initialize handshake.
	ServerName = "SQL_Connection"
)
