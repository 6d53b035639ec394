package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlmcp/internal/tools"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run query_database once and print the result",
	Long: `Query runs a statement the same way the query_database tool does: on a fresh
connection, inside a transaction that is always rolled back.

Formats:
  text   the exact text an agent would receive (default)
  table  a box-drawn table followed by the row count

Examples:
  sqlmcp query "SELECT id, name FROM users LIMIT 5" --driver sqlite -d ./app.db
  sqlmcp query "SELECT * FROM orders" --connection "$DATABASE_URL" --format table`,
	Args: RequireStatement,
	RunE: runQuery,
}

var queryFormat string

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryFormat, "format", "text", "Output format: text|table")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryFormat != "text" && queryFormat != "table" {
		return fmt.Errorf("invalid --format %q: expected text or table: %w", queryFormat, sqlmcp.ErrInvalidConfig)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.executor.Query(commandContext(cmd), args[0])
	if err != nil {
		printResult(cmd, tools.RenderError(tools.OpQuery, err))
		return err
	}

	if queryFormat == "table" {
		renderTable(cmd.OutOrStdout(), result)
		return nil
	}
	printResult(cmd, tools.RenderQuery(result))
	return nil
}

func renderTable(w io.Writer, result *tools.QueryResult) {
	if len(result.Rows) == 0 {
		_, _ = fmt.Fprintln(w, tools.MsgNoResults)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(result.Rows[0]))
	for i, f := range result.Rows[0] {
		header[i] = f.Name
	}
	t.AppendHeader(header)

	for _, row := range result.Rows {
		r := make(table.Row, len(row))
		for i, f := range row {
			r[i] = tools.Str(f.Value)
		}
		t.AppendRow(r)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", len(result.Rows))
}
