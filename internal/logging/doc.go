// Package logging provides concrete implementations of the sqlmcp.Logger interface.
//
// Available implementations:
//   - ConsoleLogger: Writes formatted messages to stderr (or any io.Writer) with thread-safe output
//   - NullLogger: Discards all messages (useful for testing)
//
// Loggers never write to stdout, which is reserved for protocol messages.
// All logger implementations are safe for concurrent use by multiple goroutines.
package logging
