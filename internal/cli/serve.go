package cli

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vvka-141/sqlmcp/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the database tools over stdio (MCP)",
	Long: `Serve starts an MCP server speaking newline-delimited JSON-RPC on
stdin/stdout. It is meant to be launched by an MCP client, not run by hand.

stdout carries protocol messages only; diagnostics go to stderr.
The server stops when stdin is closed, after finishing calls in flight.

Examples:
  # MySQL from environment variables
  DB_CONNECTION=mysql DB_HOST=127.0.0.1 DB_DATABASE=shop DB_USERNAME=app DB_PASSWORD=... sqlmcp serve

  # Read-only PostgreSQL with a 30s bound per call
  sqlmcp serve --connection "postgresql://reader@db/app" --read-only --query-timeout 30s

  # Local SQLite file
  sqlmcp serve --driver sqlite --database ./app.db`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.logger.Info("Warning: stdin is a terminal. sqlmcp serve expects an MCP client to send JSON-RPC messages.")
	}

	opts := []mcpserver.Option{
		mcpserver.WithLogger(a.logger),
		mcpserver.WithMaxConcurrency(a.settings.MaxConcurrency),
		mcpserver.WithVersion(resolvedVersion()),
	}
	if a.settings.Instructions != "" {
		opts = append(opts, mcpserver.WithInstructions(a.settings.Instructions))
	}

	server := mcpserver.NewServer(a.registry, opts...)
	return server.Serve(commandContext(cmd), in, cmd.OutOrStdout())
}
