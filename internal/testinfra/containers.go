package testinfra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "postgres"
	PostgresPassword = "postgres"
	PostgresDB       = "postgres"

	MySQLImage    = "mysql:8.0.36"
	MySQLUser     = "sqlmcp"
	MySQLPassword = "sqlmcp"
	MySQLDB       = "sqlmcp"

	containerCertDir = "/tmp/testcontainers-go/postgres"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	ConnString string
}

// readyStrategy waits for the second "ready" line; the first comes from the
// init-time server that postgres restarts.
func readyStrategy() testcontainers.ContainerCustomizer {
	return testcontainers.WithWaitStrategy(
		wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	)
}

// StartPostgres starts a plain PostgreSQL container.
func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		readyStrategy(),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	return withConnString(ctx, ctr, "sslmode=disable")
}

// StartTLSPostgres starts PostgreSQL with SSL enabled using certPaths.
// The returned connection string requires TLS.
func StartTLSPostgres(ctx context.Context, certPaths *CertPaths) (*PostgresContainer, error) {
	confPath, err := writeSSLConfig(filepath.Dir(certPaths.CACert))
	if err != nil {
		return nil, err
	}

	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		postgres.WithSSLCert(certPaths.CACert, certPaths.ServerCert, certPaths.ServerKey),
		postgres.WithConfigFile(confPath),
		readyStrategy(),
	)
	if err != nil {
		return nil, fmt.Errorf("start tls postgres: %w", err)
	}
	return withConnString(ctx, ctr, "sslmode=require")
}

// StartMySQL starts a MySQL container. The connection string is in
// go-sql-driver DSN form.
func StartMySQL(ctx context.Context) (string, error) {
	ctr, err := tcmysql.Run(ctx,
		MySQLImage,
		tcmysql.WithDatabase(MySQLDB),
		tcmysql.WithUsername(MySQLUser),
		tcmysql.WithPassword(MySQLPassword),
	)
	if err != nil {
		return "", fmt.Errorf("start mysql: %w", err)
	}

	connStr, err := ctr.ConnectionString(ctx)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return "", fmt.Errorf("get connection string: %w", err)
	}
	return connStr, nil
}

func withConnString(ctx context.Context, ctr *postgres.PostgresContainer, args ...string) (*PostgresContainer, error) {
	connStr, err := ctr.ConnectionString(ctx, args...)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get connection string: %w", err)
	}
	return &PostgresContainer{PostgresContainer: ctr, ConnString: connStr}, nil
}

func writeSSLConfig(dir string) (string, error) {
	conf := fmt.Sprintf(`listen_addresses = '*'
ssl = on
ssl_cert_file = '%s/server.cert'
ssl_key_file = '%s/server.key'
ssl_ca_file = '%s/ca_cert.pem'
`, containerCertDir, containerCertDir, containerCertDir)

	path := filepath.Join(dir, "postgresql.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		return "", fmt.Errorf("write postgresql.conf: %w", err)
	}
	return path, nil
}
