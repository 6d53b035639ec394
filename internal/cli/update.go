package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlmcp/internal/tools"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

var updateCmd = &cobra.Command{
	Use:   "update <sql>",
	Short: "Run update_database once and commit",
	Long: `Update runs a statement the same way the update_database tool does: on a
fresh connection, committed when it succeeds.

When an update token is configured ($SQLMCP_UPDATE_TOKEN or server.update_token
in sqlmcp.yaml), --token must match it.

Examples:
  sqlmcp update "UPDATE users SET status = 'active' WHERE id = 1" --driver sqlite -d ./app.db
  SQLMCP_UPDATE_TOKEN=s3cret sqlmcp update "DELETE FROM sessions" --token s3cret`,
	Args: RequireStatement,
	RunE: runUpdate,
}

var updateToken string

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().StringVar(&updateToken, "token", "", "Authorization token for updates")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.settings.ReadOnly {
		return fmt.Errorf("updates are disabled in read-only mode: %w", sqlmcp.ErrUnauthorized)
	}

	if err := tools.NewUpdateAuthorizer(a.settings.UpdateToken).Authorize(updateToken); err != nil {
		a.logger.Error("Rejected update: %v", err)
		printResult(cmd, tools.MsgUpdateRejected)
		return err
	}

	result, err := a.executor.Mutate(commandContext(cmd), args[0])
	if err != nil {
		printResult(cmd, tools.RenderError(tools.OpUpdate, err))
		return err
	}
	printResult(cmd, tools.RenderMutation(result))
	return nil
}
