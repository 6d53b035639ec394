package sqlmcp

import "time"

// ErrorClassifier determines if an error is transient (retryable) or fatal.
type ErrorClassifier interface {
	// IsTransient returns true if the error is temporary and the operation may succeed on retry.
	IsTransient(err error) bool
}

// BackoffStrategy calculates delays between retry attempts.
type BackoffStrategy interface {
	// NextDelay returns the delay before the given retry attempt (0-based).
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the maximum number of retries (-1 = unlimited, 0 = no retries).
	MaxAttempts() int
}
