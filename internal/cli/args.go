package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RequireStatement validates that exactly one SQL statement argument is provided.
// Returns a helpful error message with usage and examples if missing or too many.
func RequireStatement(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`missing required argument: <sql>

Usage: %s

Example:
  %s "SELECT * FROM users WHERE id = 1"`, cmd.UseLine(), cmd.CommandPath())
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d\n\nTip: quote the statement so the shell passes it as one argument", len(args))
	}
	return nil
}

// RequireTable validates that exactly one table name argument is provided.
func RequireTable(cmd *cobra.Command, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf(`missing required argument: <table>

Usage: %s

Example:
  %s users`, cmd.UseLine(), cmd.CommandPath())
	}
	if len(args) > 1 {
		return fmt.Errorf("accepts 1 arg(s), received %d", len(args))
	}
	return nil
}
