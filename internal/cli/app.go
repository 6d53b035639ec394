package cli

import (
	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlmcp/internal/db"
	"github.com/vvka-141/sqlmcp/internal/logging"
	"github.com/vvka-141/sqlmcp/internal/tools"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// app wires one invocation's settings to a connector, executor and registry.
type app struct {
	settings  *settings
	logger    sqlmcp.Logger
	connector *db.Connector
	executor  *tools.Executor
	registry  *tools.Registry
}

func newApp(cmd *cobra.Command) (*app, error) {
	logger := logging.NewWriterLogger(cmd.ErrOrStderr(), globals.verbose)

	s, err := loadSettings(&globals)
	if err != nil {
		return nil, err
	}
	logConnectionVerbose(logger, s)

	connector, err := db.NewConnector(s.Conn, db.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	executor := tools.NewExecutor(connector,
		tools.WithLogger(logger),
		tools.WithTimeout(s.QueryTimeout),
	)
	registry := tools.NewRegistry(executor, s.Conn.Driver,
		tools.WithReadOnly(s.ReadOnly),
		tools.WithUpdateAuthorizer(tools.NewUpdateAuthorizer(s.UpdateToken)),
	)

	return &app{
		settings:  s,
		logger:    logger,
		connector: connector,
		executor:  executor,
		registry:  registry,
	}, nil
}

func (a *app) Close() {
	if err := a.connector.Close(); err != nil {
		a.logger.Verbose("close connector: %v", err)
	}
}
