package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vvka-141/sqlmcp/internal/config"
	"github.com/vvka-141/sqlmcp/internal/db"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// UpdateTokenEnv names the variable holding the shared update token.
const UpdateTokenEnv = "SQLMCP_UPDATE_TOKEN"

// connectionFlags holds the common connection-related flag values.
type connectionFlags struct {
	connection     string
	driver         string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	authMethod     string
	awsRegion      string
	googleInstance string
}

// globalOptions holds every persistent flag shared by the subcommands.
type globalOptions struct {
	conn             connectionFlags
	configPath       string
	envFile          string
	verbose          bool
	readOnly         bool
	queryTimeout     string
	maxConcurrency   int
	instructionsFile string
}

var globals globalOptions

func addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()

	f.StringVar(&globals.conn.connection, "connection", "",
		"Connection string (postgresql://, mysql://, sqlite://, ADO.NET or MySQL DSN).\n"+
			"Mutually exclusive with granular flags (--host, --port, --username, --sslmode).\n"+
			"Alternative: DATABASE_URL environment variable.")
	f.StringVar(&globals.conn.driver, "driver", "",
		"Database driver: postgres|mysql|sqlite (default: postgres, or $DB_CONNECTION)")
	f.StringVar(&globals.conn.host, "host", "",
		"Database server host (default: localhost, or $DB_HOST)")
	f.IntVarP(&globals.conn.port, "port", "p", 0,
		"Database server port (default: 5432 or 3306, or $DB_PORT)")
	f.StringVarP(&globals.conn.username, "username", "U", "",
		"Database user (default: $DB_USERNAME or current OS user)")
	f.StringVarP(&globals.conn.database, "database", "d", "",
		"Database name, or file path for sqlite (default: $DB_DATABASE)")
	f.StringVar(&globals.conn.sslMode, "sslmode", "",
		"SSL mode: disable|allow|prefer|require|verify-ca|verify-full\n"+
			"(default: prefer, or $DB_SSLMODE)")
	f.StringVar(&globals.conn.authMethod, "auth-method", "",
		"Authentication: standard|aws|azure|google (default: standard, or $DB_AUTH_METHOD)")
	f.StringVar(&globals.conn.awsRegion, "aws-region", "",
		"AWS region for RDS IAM authentication (default: $AWS_REGION)")
	f.StringVar(&globals.conn.googleInstance, "google-instance", "",
		"Cloud SQL instance connection name (project:region:instance)")

	f.StringVar(&globals.configPath, "config", "",
		"Path to config file (default: ./"+config.ConfigFileName+" if present)")
	f.StringVar(&globals.envFile, "env-file", "",
		"Load environment variables from this file (default: ./.env if present)")

	f.BoolVar(&globals.readOnly, "read-only", false,
		"Withhold update_database from the tool surface")
	f.StringVar(&globals.queryTimeout, "query-timeout", "",
		"Bound each operation, e.g. 30s (default: no timeout)")
	f.IntVar(&globals.maxConcurrency, "max-concurrency", 0,
		fmt.Sprintf("Maximum tool calls served at once (default: %d)", sqlmcp.DefaultMaxConcurrency))
	f.StringVar(&globals.instructionsFile, "instructions-file", "",
		"Replace the built-in server instructions with this file's content")
}

// settings is the fully resolved configuration of one invocation.
type settings struct {
	Conn           *sqlmcp.ConnectionConfig
	ReadOnly       bool
	UpdateToken    string
	QueryTimeout   time.Duration
	MaxConcurrency int
	Instructions   string
}

// loadSettings applies precedence flag > environment > config file > default.
func loadSettings(opts *globalOptions) (*settings, error) {
	if err := config.LoadEnv(opts.envFile); err != nil {
		return nil, fmt.Errorf("%w: %w", sqlmcp.ErrInvalidConfig, err)
	}

	fileCfg, err := loadConfigFile(opts.configPath)
	if err != nil {
		return nil, err
	}

	connFlags := &db.ConnFlags{
		Driver:         opts.conn.driver,
		Host:           opts.conn.host,
		Port:           opts.conn.port,
		Username:       opts.conn.username,
		Database:       opts.conn.database,
		SSLMode:        opts.conn.sslMode,
		AuthMethod:     opts.conn.authMethod,
		AWSRegion:      opts.conn.awsRegion,
		GoogleInstance: opts.conn.googleInstance,
	}

	conn, err := db.ResolveConnectionParams(opts.conn.connection, connFlags, db.LoadFromEnvironment(), &fileCfg.Connection)
	if err != nil {
		return nil, err
	}

	s := &settings{
		Conn:        conn,
		ReadOnly:    opts.readOnly || fileCfg.Server.ReadOnly,
		UpdateToken: os.Getenv(UpdateTokenEnv),
	}
	if s.UpdateToken == "" {
		s.UpdateToken = fileCfg.Server.UpdateToken
	}

	timeout := opts.queryTimeout
	if timeout == "" {
		timeout = fileCfg.Server.QueryTimeout
	}
	s.QueryTimeout, err = config.ParseDuration("query timeout", timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sqlmcp.ErrInvalidConfig, err)
	}

	switch {
	case opts.maxConcurrency < 0:
		return nil, fmt.Errorf("--max-concurrency must be positive, got %d: %w", opts.maxConcurrency, sqlmcp.ErrInvalidConfig)
	case opts.maxConcurrency > 0:
		s.MaxConcurrency = opts.maxConcurrency
	case fileCfg.Server.MaxConcurrency > 0:
		s.MaxConcurrency = fileCfg.Server.MaxConcurrency
	default:
		s.MaxConcurrency = sqlmcp.DefaultMaxConcurrency
	}

	if opts.instructionsFile != "" {
		data, err := os.ReadFile(opts.instructionsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read instructions file: %w: %w", err, sqlmcp.ErrInvalidConfig)
		}
		s.Instructions = string(data)
	} else {
		s.Instructions = fileCfg.Server.Instructions
	}

	return s, nil
}

// loadConfigFile loads an explicit config path, or ./sqlmcp.yaml when it
// exists. An absent default file yields an empty config.
func loadConfigFile(path string) (*config.FileConfig, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w: %w", path, err, sqlmcp.ErrInvalidConfig)
		}
		return cfg, nil
	}

	cfg, err := config.Load(".")
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return &config.FileConfig{}, nil
		}
		return nil, fmt.Errorf("failed to load %s: %w: %w", config.ConfigFileName, err, sqlmcp.ErrInvalidConfig)
	}
	return cfg, nil
}

// logConnectionVerbose logs connection details when verbose mode is enabled.
func logConnectionVerbose(logger sqlmcp.Logger, s *settings) {
	c := s.Conn
	logger.Verbose("Connection resolved:")
	logger.Verbose("  Driver: %s", c.Driver)
	if c.Driver == sqlmcp.DriverSQLite {
		logger.Verbose("  File: %s", c.Database)
	} else {
		logger.Verbose("  Host: %s", c.Host)
		logger.Verbose("  Port: %d", c.Port)
		logger.Verbose("  User: %s", c.Username)
		logger.Verbose("  Database: %s", c.Database)
		logger.Verbose("  SSL Mode: %s", c.SSLMode)
		logger.Verbose("  Auth Method: %s", c.AuthMethod)
	}
	logger.Verbose("  Read-only: %t", s.ReadOnly)
	if s.QueryTimeout > 0 {
		logger.Verbose("  Query timeout: %s", s.QueryTimeout)
	}
}
