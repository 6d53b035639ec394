package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/jmoiron/sqlx"

	// database/sql drivers used through sqlx
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/vvka-141/sqlmcp/internal/logging"
	"github.com/vvka-141/sqlmcp/internal/retry"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// tokenExpiryWarning is the remaining lifetime below which a freshly
// acquired cloud token is reported.
const tokenExpiryWarning = 5 * time.Minute

// SQLOpener opens a database/sql handle for the given driver and DSN.
type SQLOpener func(driverName, dsn string) (*sqlx.DB, error)

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the diagnostic logger. Defaults to a NullLogger.
func WithLogger(logger sqlmcp.Logger) Option {
	return func(c *Connector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRetry replaces the connection retry executor.
func WithRetry(executor *retry.Executor) Option {
	return func(c *Connector) {
		if executor != nil {
			c.retry = executor
		}
	}
}

// WithSQLOpener replaces sqlx.Open for the mysql and sqlite drivers.
func WithSQLOpener(opener SQLOpener) Option {
	return func(c *Connector) {
		if opener != nil {
			c.openSQL = opener
		}
	}
}

// WithTokenProvider supplies the cloud token used as the password,
// bypassing the provider derived from the configured auth method.
func WithTokenProvider(provider TokenProvider) Option {
	return func(c *Connector) {
		c.tokens = provider
	}
}

// Connector opens one fresh connection per call for any supported driver
// and authentication method, retrying transient acquisition failures.
//
// Connector is safe for concurrent use. Call Close when done to release the
// Cloud SQL dialer, if one was created.
type Connector struct {
	config  *sqlmcp.ConnectionConfig
	logger  sqlmcp.Logger
	retry   *retry.Executor
	tokens  TokenProvider
	openSQL SQLOpener

	dialerMu sync.Mutex
	dialer   *cloudsqlconn.Dialer
}

var _ sqlmcp.Connector = (*Connector)(nil)

// NewConnector validates config and builds a Connector for it.
// Retry behavior uses sqlmcp defaults: DefaultRetryMaxAttempts attempts,
// exponential backoff starting at DefaultRetryInitialDelay.
func NewConnector(config *sqlmcp.ConnectionConfig, opts ...Option) (*Connector, error) {
	if config == nil {
		return nil, fmt.Errorf("connection config is nil: %w", sqlmcp.ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Connector{
		config:  config,
		logger:  logging.NewNullLogger(),
		retry:   retry.NewExecutor(retry.NewConnectionClassifier(), retry.DefaultConnectBackoff()),
		openSQL: sqlx.Open,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		provider, err := newTokenProvider(config)
		if err != nil {
			return nil, err
		}
		c.tokens = provider
	}

	return c, nil
}

// Config returns the connection parameters the connector was built with.
func (c *Connector) Config() *sqlmcp.ConnectionConfig {
	return c.config
}

// Connect opens a live connection. Failures are wrapped with
// sqlmcp.ErrConnectionFailed after the retry budget is spent.
func (c *Connector) Connect(ctx context.Context) (sqlmcp.Session, error) {
	var session sqlmcp.Session

	executor := c.retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
		c.logger.Verbose("Connection attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
	})

	err := executor.Execute(ctx, func(ctx context.Context) error {
		s, err := c.connectOnce(ctx)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", sqlmcp.ErrConnectionFailed, err)
	}
	return session, nil
}

// Close releases the Cloud SQL dialer, if any. Sessions already handed out
// must be closed first.
func (c *Connector) Close() error {
	c.dialerMu.Lock()
	defer c.dialerMu.Unlock()

	if c.dialer == nil {
		return nil
	}
	err := c.dialer.Close()
	c.dialer = nil
	return err
}

func (c *Connector) connectOnce(ctx context.Context) (sqlmcp.Session, error) {
	cfg := *c.config

	if c.tokens != nil {
		token, expiresOn, err := c.tokens.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire token from %s: %w", c.tokens, err)
		}
		if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
			c.logger.Verbose("Token from %s expires in %v", c.tokens, remaining.Round(time.Second))
		}
		cfg.Password = token
	}

	switch cfg.Driver {
	case sqlmcp.DriverPostgres:
		return c.connectPostgres(ctx, &cfg)
	case sqlmcp.DriverMySQL:
		return c.connectSQL(ctx, &cfg, "mysql", BuildMySQLConfig(&cfg).FormatDSN())
	case sqlmcp.DriverSQLite:
		return c.connectSQL(ctx, &cfg, "sqlite", BuildSQLiteDSN(&cfg))
	default:
		return nil, fmt.Errorf("driver %q: %w", cfg.Driver, sqlmcp.ErrUnsupportedDriver)
	}
}

func (c *Connector) connectPostgres(ctx context.Context, cfg *sqlmcp.ConnectionConfig) (sqlmcp.Session, error) {
	connStr := BuildConnectionString(cfg)
	if cfg.AuthMethod == sqlmcp.AuthMethodGoogleIAM {
		// the dialer handles TLS and IAM login
		connStr = fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable", cfg.GoogleInstance, cfg.Username, cfg.Database)
	}

	connConfig, err := pgx.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	// simple protocol accepts multi-statement text the way psql does
	connConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	if cfg.AuthMethod == sqlmcp.AuthMethodGoogleIAM {
		dialer, err := c.cloudSQLDialer(ctx)
		if err != nil {
			return nil, err
		}
		instance := cfg.GoogleInstance
		connConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
			return dialer.Dial(ctx, instance)
		}
	}

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, wrapConnectionError(err, cfg)
	}
	return newPgxSession(conn), nil
}

func (c *Connector) connectSQL(ctx context.Context, cfg *sqlmcp.ConnectionConfig, driverName, dsn string) (sqlmcp.Session, error) {
	db, err := c.openSQL(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s handle: %w", driverName, err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err == nil {
		// database/sql dials lazily; force the handshake now
		err = conn.PingContext(ctx)
		if err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, wrapConnectionError(err, cfg)
	}
	return newSQLSession(db, conn, cfg.Driver), nil
}

func (c *Connector) cloudSQLDialer(ctx context.Context) (*cloudsqlconn.Dialer, error) {
	c.dialerMu.Lock()
	defer c.dialerMu.Unlock()

	if c.dialer != nil {
		return c.dialer, nil
	}
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud SQL dialer: %w", err)
	}
	c.dialer = dialer
	return dialer, nil
}

// wrapConnectionError wraps raw driver connection errors with actionable guidance.
func wrapConnectionError(err error, cfg *sqlmcp.ConnectionConfig) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	errStr := strings.ToLower(err.Error())
	addr := net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port))
	database := cfg.Database

	if cfg.Driver == sqlmcp.DriverSQLite {
		return fmt.Errorf(`cannot open SQLite database "%s"

Possible causes:
  - The file does not exist (it is never created automatically)
  - The process lacks read/write permission on the file or its directory

Original error: %w`, database, err)
	}

	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		return fmt.Errorf(`connection refused to %s

Possible causes:
  - The %s server is not running
  - Wrong host or port
  - Firewall blocking the connection

Original error: %w`, addr, cfg.Driver, err)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		return fmt.Errorf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable
  - Network connection issue

Original error: %w`, cfg.Host, err)

	case strings.Contains(errStr, "password authentication failed") || strings.Contains(errStr, "access denied"):
		return fmt.Errorf(`authentication failed for database "%s"

Possible causes:
  - Wrong password (check $DB_PASSWORD or the connection string)
  - Wrong username
  - User does not have access to the database

Original error: %w`, database, err)

	case strings.Contains(errStr, "does not exist") || strings.Contains(errStr, "unknown database"):
		return fmt.Errorf(`database "%s" does not exist

Original error: %w`, database, err)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		return fmt.Errorf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)

Original error: %w`, addr, err)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		return fmt.Errorf(`SSL/TLS connection error

Possible causes:
  - Server requires SSL but --sslmode is wrong
  - Certificate verification failed (try --sslmode=require)

Original error: %w`, err)

	case strings.Contains(errStr, "too many connections"):
		return fmt.Errorf(`too many connections to database "%s"

Possible causes:
  - max_connections limit reached on the server
  - Other clients holding idle connections

Original error: %w`, database, err)

	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}
