package testinfra

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	// sqlite driver for fixture files.
	_ "modernc.org/sqlite"
)

// PostgresEnv and MySQLEnv point integration tests at an existing server
// instead of a container.
const (
	PostgresEnv = "SQLMCP_TEST_PG"
	MySQLEnv    = "SQLMCP_TEST_MYSQL"
)

var (
	testContainerOnce sync.Once
	testContainerConn string
	testContainerErr  error

	mysqlContainerOnce sync.Once
	mysqlContainerConn string
	mysqlContainerErr  error
)

func getOrStartTestContainer() (string, error) {
	testContainerOnce.Do(func() {
		container, err := StartPostgres(context.Background())
		if err != nil {
			testContainerErr = err
			return
		}
		testContainerConn = container.ConnString
	})
	return testContainerConn, testContainerErr
}

// GetTestConnectionString returns the PostgreSQL connection string for tests.
// Priority: SQLMCP_TEST_PG env var > auto-started testcontainer > skip test.
func GetTestConnectionString(t *testing.T) string {
	t.Helper()

	if connString := os.Getenv(PostgresEnv); connString != "" {
		return connString
	}

	connString, err := getOrStartTestContainer()
	if err != nil {
		t.Skipf("%s not set and Docker unavailable: %v", PostgresEnv, err)
	}
	return connString
}

// SkipIfShort skips the test if running in short mode (-short flag).
func SkipIfShort(t *testing.T) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// RequireDatabase combines SkipIfShort and GetTestConnectionString.
func RequireDatabase(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	return GetTestConnectionString(t)
}

// RequireMySQL returns a MySQL connection string for tests.
// Priority: SQLMCP_TEST_MYSQL env var > auto-started testcontainer > skip test.
func RequireMySQL(t *testing.T) string {
	t.Helper()

	SkipIfShort(t)
	if connString := os.Getenv(MySQLEnv); connString != "" {
		return connString
	}

	mysqlContainerOnce.Do(func() {
		mysqlContainerConn, mysqlContainerErr = StartMySQL(context.Background())
	})
	if mysqlContainerErr != nil {
		t.Skipf("%s not set and Docker unavailable: %v", MySQLEnv, mysqlContainerErr)
	}
	return mysqlContainerConn
}

// NewSQLiteFile creates a SQLite database in a temp dir, runs setup against
// it and returns its path. The file is closed before returning.
func NewSQLiteFile(t *testing.T, setup ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer func() { _ = db.Close() }()

	// an empty file is still created when setup is empty
	if err := db.PingContext(context.Background()); err != nil {
		t.Fatalf("ping sqlite: %v", err)
	}
	for _, stmt := range setup {
		if _, err := db.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}
	return path
}
