package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlmcp/internal/db"
	"github.com/vvka-141/sqlmcp/internal/testinfra"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

func newPostgresConnector(t *testing.T) *db.Connector {
	t.Helper()

	connStr := testinfra.RequireDatabase(t)
	cfg, err := db.ParseConnectionString(connStr)
	require.NoError(t, err)

	connector, err := db.NewConnector(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = connector.Close() })
	return connector
}

func TestPostgres_QueryNormalizesValues(t *testing.T) {
	connector := newPostgresConnector(t)
	ctx := context.Background()

	session, err := connector.Connect(ctx)
	require.NoError(t, err)
	defer session.Close(ctx)

	rs, err := session.Query(ctx, `SELECT 1::int4 AS i, 2.50::numeric(5,2) AS n, DATE '2024-03-01' AS d,
		'a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11'::uuid AS u, NULL::text AS missing, true AS ok`)
	require.NoError(t, err)

	assert.Equal(t, []string{"i", "n", "d", "u", "missing", "ok"}, rs.Columns)
	require.Len(t, rs.Rows, 1)

	row := rs.Rows[0]
	assert.Equal(t, int64(1), row[0])
	assert.Equal(t, sqlmcp.Decimal("2.50"), row[1])
	assert.Equal(t, sqlmcp.Date{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}, row[2])
	assert.Equal(t, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", row[3])
	assert.Nil(t, row[4])
	assert.Equal(t, true, row[5])
}

func TestPostgres_QueryRollsBackExecCommits(t *testing.T) {
	connector := newPostgresConnector(t)
	ctx := context.Background()

	setup, err := connector.Connect(ctx)
	require.NoError(t, err)
	_, err = setup.Exec(ctx, "DROP TABLE IF EXISTS sqlmcp_it_counters; CREATE TABLE sqlmcp_it_counters (id int PRIMARY KEY, n int)")
	require.NoError(t, err)
	require.NoError(t, setup.Close(ctx))
	t.Cleanup(func() {
		s, err := connector.Connect(context.Background())
		if err == nil {
			_, _ = s.Exec(context.Background(), "DROP TABLE IF EXISTS sqlmcp_it_counters")
			_ = s.Close(context.Background())
		}
	})

	s, err := connector.Connect(ctx)
	require.NoError(t, err)
	n, err := s.Exec(ctx, "INSERT INTO sqlmcp_it_counters VALUES (1, 0), (2, 0)")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, s.Close(ctx))

	// a write smuggled through Query is discarded
	s, err = connector.Connect(ctx)
	require.NoError(t, err)
	_, err = s.Query(ctx, "UPDATE sqlmcp_it_counters SET n = 99 RETURNING id")
	require.NoError(t, err)
	require.NoError(t, s.Close(ctx))

	s, err = connector.Connect(ctx)
	require.NoError(t, err)
	defer s.Close(ctx)
	rs, err := s.Query(ctx, "SELECT sum(n)::int8 FROM sqlmcp_it_counters")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rs.Rows[0][0])
}

func TestPostgres_ExecOutsideTransactionBlock(t *testing.T) {
	connector := newPostgresConnector(t)
	ctx := context.Background()

	s, err := connector.Connect(ctx)
	require.NoError(t, err)
	defer s.Close(ctx)

	_, err = s.Exec(ctx, "CREATE TABLE IF NOT EXISTS sqlmcp_it_vacuum (id int)")
	require.NoError(t, err)
	t.Cleanup(func() {
		s, err := connector.Connect(context.Background())
		if err == nil {
			_, _ = s.Exec(context.Background(), "DROP TABLE IF EXISTS sqlmcp_it_vacuum")
			_ = s.Close(context.Background())
		}
	})

	n, err := s.Exec(ctx, "VACUUM sqlmcp_it_vacuum")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = s.Exec(ctx, "CREATE INDEX CONCURRENTLY IF NOT EXISTS sqlmcp_it_vacuum_id ON sqlmcp_it_vacuum (id)")
	require.NoError(t, err)
}

func TestPostgres_StatementErrorIsRaw(t *testing.T) {
	connector := newPostgresConnector(t)
	ctx := context.Background()

	s, err := connector.Connect(ctx)
	require.NoError(t, err)
	defer s.Close(ctx)

	_, err = s.Query(ctx, "SELEC 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error")
	assert.NotErrorIs(t, err, sqlmcp.ErrConnectionFailed)
}

func TestPostgres_TLSRequired(t *testing.T) {
	testinfra.SkipIfShort(t)
	ctx := context.Background()

	bundle, err := testinfra.GenerateCertBundle([]string{"localhost", "127.0.0.1"})
	require.NoError(t, err)
	paths, err := bundle.WriteToDir(t.TempDir())
	require.NoError(t, err)

	ctr, err := testinfra.StartTLSPostgres(ctx, paths)
	if err != nil {
		t.Skipf("Docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	cfg, err := db.ParseConnectionString(ctr.ConnString)
	require.NoError(t, err)
	assert.Equal(t, "require", cfg.SSLMode)

	connector, err := db.NewConnector(cfg)
	require.NoError(t, err)
	defer connector.Close()

	s, err := connector.Connect(ctx)
	require.NoError(t, err)
	defer s.Close(ctx)

	rs, err := s.Query(ctx, "SELECT ssl FROM pg_stat_ssl WHERE pid = pg_backend_pid()")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, true, rs.Rows[0][0])
}
