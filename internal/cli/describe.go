package cli

import (
	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlmcp/internal/tools"
)

var describeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "Run describe_table once and print the schema",
	Long: `Describe prints one line per column of the table: name, type, nullability,
key, default and extra information. A schema-qualified name (schema.table)
selects a schema other than the default one.

Examples:
  sqlmcp describe users --driver sqlite -d ./app.db
  sqlmcp describe public.orders --connection "$DATABASE_URL"`,
	Args: RequireTable,
	RunE: runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.executor.Describe(commandContext(cmd), args[0])
	if err != nil {
		printResult(cmd, tools.RenderError(tools.OpDescribe, err))
		return err
	}
	printResult(cmd, tools.RenderSchema(result))
	return nil
}
