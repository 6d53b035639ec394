package cli

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlmcp/internal/mcpserver"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the advertised tools as JSON",
	Long: `Tools prints the tool surface exactly as tools/list returns it: names,
descriptions and JSON input schemas. The surface depends on the driver,
--read-only and whether an update token is configured.

No database connection is made.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

var toolsWithInstructions bool

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().BoolVar(&toolsWithInstructions, "instructions", false, "Print the server instructions instead of the tools")
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if toolsWithInstructions {
		text := a.settings.Instructions
		if text == "" {
			text = a.registry.Instructions()
		}
		printResult(cmd, text)
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(mcp.ListToolsResult{Tools: mcpserver.Tools(a.registry)})
}
