package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vvka-141/sqlmcp/internal/config"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// ConnFlags represents connection parameters from CLI flags.
//
// Note: Password is NOT included as a CLI flag for security reasons.
// Use one of these methods instead:
//  1. $DB_PASSWORD environment variable (or a .env file)
//  2. Connection string with embedded password
//  3. A cloud auth method (--auth-method aws|google|azure)
type ConnFlags struct {
	Driver         string
	Host           string
	Port           int
	Username       string
	Database       string
	SSLMode        string
	AuthMethod     string
	AWSRegion      string
	GoogleInstance string
}

// IsEmpty returns true if no server-addressing flags were provided.
// Database, driver and auth flags are excluded because they can refine a
// connection string.
func (f *ConnFlags) IsEmpty() bool {
	return f.Host == "" && f.Port == 0 && f.Username == "" && f.SSLMode == ""
}

// EnvVars represents the environment variables read during resolution.
// Names follow the Laravel-style DB_* convention so an application's
// existing .env file can be reused.
type EnvVars struct {
	DB_CONNECTION  string // Driver name (postgres, mysql, sqlite)
	DB_HOST        string
	DB_PORT        string
	DB_DATABASE    string // Database name, or file path for sqlite
	DB_USERNAME    string
	DB_PASSWORD    string
	DB_SSLMODE     string
	DB_AUTH_METHOD string
	DATABASE_URL   string // Full connection string (Heroku/Rails convention)

	AWS_REGION string

	// Azure Entra ID environment variables (Azure SDK standard names)
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment snapshots the connection-related environment variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		DB_CONNECTION:       os.Getenv("DB_CONNECTION"),
		DB_HOST:             os.Getenv("DB_HOST"),
		DB_PORT:             os.Getenv("DB_PORT"),
		DB_DATABASE:         os.Getenv("DB_DATABASE"),
		DB_USERNAME:         os.Getenv("DB_USERNAME"),
		DB_PASSWORD:         os.Getenv("DB_PASSWORD"),
		DB_SSLMODE:          os.Getenv("DB_SSLMODE"),
		DB_AUTH_METHOD:      os.Getenv("DB_AUTH_METHOD"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// ResolveConnectionParams resolves connection parameters with the precedence
// CLI flag > environment variable > sqlmcp.yaml > default:
//
//  1. Connection string flag (--connection), parsed directly
//  2. DATABASE_URL, when no server-addressing flags are given
//  3. Granular flags, DB_* variables and the config file, per field
//
// Returns error if BOTH --connection and granular flags are provided, or if
// the resolved configuration does not validate.
func ResolveConnectionParams(
	connStringFlag string,
	flags *ConnFlags,
	env *EnvVars,
	file *config.ConnectionConfig,
) (*sqlmcp.ConnectionConfig, error) {
	if flags == nil {
		flags = &ConnFlags{}
	}
	if env == nil {
		env = &EnvVars{}
	}
	if file == nil {
		file = &config.ConnectionConfig{}
	}

	if connStringFlag != "" && !flags.IsEmpty() {
		return nil, fmt.Errorf(
			"cannot specify both --connection and granular flags (--host, --port, --username, --sslmode)\n"+
				"Choose one approach:\n"+
				"  1. Connection string: --connection \"postgresql://user@localhost:5432/app\"\n"+
				"  2. Granular flags: --driver mysql --host localhost --port 3306 --username app --database app\n"+
				"  3. Environment variables: export DB_CONNECTION=mysql DB_HOST=localhost DB_USERNAME=app: %w",
			sqlmcp.ErrInvalidConfig,
		)
	}

	var cfg *sqlmcp.ConnectionConfig
	var err error

	switch {
	case connStringFlag != "":
		cfg, err = resolveFromConnectionString(connStringFlag, flags, env)
	case flags.IsEmpty() && env.DATABASE_URL != "":
		cfg, err = resolveFromConnectionString(env.DATABASE_URL, flags, env)
	default:
		cfg, err = resolveFromGranularParams(flags, env, file)
	}
	if err != nil {
		return nil, err
	}

	if err := applyAuth(cfg, flags, env, file); err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout == 0 && file.ConnectTimeout != "" {
		timeout, err := config.ParseDuration("connect_timeout", file.ConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", sqlmcp.ErrInvalidConfig, err)
		}
		cfg.ConnectTimeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveFromConnectionString parses a connection string. Environment
// variables fill in the password and SSL mode when the string omits them,
// and --database overrides the database component.
func resolveFromConnectionString(connStr string, flags *ConnFlags, env *EnvVars) (*sqlmcp.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w: %w", err, sqlmcp.ErrInvalidConfig)
	}

	if flags.Driver != "" {
		driver, err := sqlmcp.ParseDriver(flags.Driver)
		if err != nil {
			return nil, err
		}
		if driver != cfg.Driver {
			return nil, fmt.Errorf("--driver %s conflicts with %s connection string: %w", driver, cfg.Driver, sqlmcp.ErrInvalidConfig)
		}
	}

	if flags.Database != "" {
		cfg.Database = flags.Database
	}
	if cfg.Driver == sqlmcp.DriverSQLite {
		return cfg, nil
	}

	if cfg.Password == "" {
		cfg.Password = env.DB_PASSWORD
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = env.DB_SSLMODE
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = "prefer"
	}
	return cfg, nil
}

// resolveFromGranularParams builds a ConnectionConfig field by field.
func resolveFromGranularParams(flags *ConnFlags, env *EnvVars, file *config.ConnectionConfig) (*sqlmcp.ConnectionConfig, error) {
	driver, err := sqlmcp.ParseDriver(firstNonEmpty(flags.Driver, env.DB_CONNECTION, file.Driver, string(sqlmcp.DriverPostgres)))
	if err != nil {
		return nil, err
	}

	cfg := &sqlmcp.ConnectionConfig{
		Driver:           driver,
		Database:         firstNonEmpty(flags.Database, env.DB_DATABASE, file.Database),
		AuthMethod:       sqlmcp.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	if driver == sqlmcp.DriverSQLite {
		return cfg, nil
	}

	cfg.Host = firstNonEmpty(flags.Host, env.DB_HOST, file.Host, "localhost")

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case env.DB_PORT != "":
		port, err := strconv.Atoi(env.DB_PORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $DB_PORT value '%s': must be an integer: %w", env.DB_PORT, sqlmcp.ErrInvalidConfig)
		}
		cfg.Port = port
	case file.Port != 0:
		cfg.Port = file.Port
	default:
		cfg.Port = driver.DefaultPort()
	}

	cfg.Username = firstNonEmpty(flags.Username, env.DB_USERNAME, file.Username, os.Getenv("USER"), os.Getenv("USERNAME"))
	cfg.Password = env.DB_PASSWORD
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, env.DB_SSLMODE, file.SSLMode, "prefer")

	return cfg, nil
}

// applyAuth selects the authentication method and attaches cloud credentials.
// Azure credentials in the environment switch to Entra ID when no method
// was chosen explicitly.
func applyAuth(cfg *sqlmcp.ConnectionConfig, flags *ConnFlags, env *EnvVars, file *config.ConnectionConfig) error {
	if cfg.Driver == sqlmcp.DriverSQLite {
		if method := firstNonEmpty(flags.AuthMethod, env.DB_AUTH_METHOD, file.AuthMethod); method != "" {
			m, err := sqlmcp.ParseAuthMethod(method)
			if err != nil {
				return err
			}
			cfg.AuthMethod = m
		}
		return nil
	}

	method, err := sqlmcp.ParseAuthMethod(firstNonEmpty(flags.AuthMethod, env.DB_AUTH_METHOD, file.AuthMethod))
	if err != nil {
		return err
	}

	tenantID := firstNonEmpty(env.AZURE_TENANT_ID, file.AzureTenantID)
	clientID := firstNonEmpty(env.AZURE_CLIENT_ID, file.AzureClientID)
	explicit := flags.AuthMethod != "" || env.DB_AUTH_METHOD != "" || file.AuthMethod != ""
	if !explicit && (tenantID != "" || clientID != "") {
		method = sqlmcp.AuthMethodAzureEntraID
	}
	cfg.AuthMethod = method

	switch method {
	case sqlmcp.AuthMethodAzureEntraID:
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	case sqlmcp.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, env.AWS_REGION, file.AWSRegion)
		if cfg.AWSRegion == "" {
			return fmt.Errorf("AWS IAM authentication requires a region (--aws-region or $AWS_REGION): %w", sqlmcp.ErrInvalidConfig)
		}
	case sqlmcp.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, file.GoogleInstance)
		if cfg.GoogleInstance == "" {
			return fmt.Errorf("Google Cloud SQL IAM authentication requires --google-instance (project:region:instance): %w", sqlmcp.ErrInvalidConfig)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
