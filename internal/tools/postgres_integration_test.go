package tools_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlmcp/internal/db"
	"github.com/vvka-141/sqlmcp/internal/testinfra"
	"github.com/vvka-141/sqlmcp/internal/tools"
)

func newPostgresExecutor(t *testing.T, setup ...string) *tools.Executor {
	t.Helper()

	cfg, err := db.ParseConnectionString(testinfra.RequireDatabase(t))
	require.NoError(t, err)
	connector, err := db.NewConnector(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = connector.Close() })

	ctx := context.Background()
	session, err := connector.Connect(ctx)
	require.NoError(t, err)
	defer session.Close(ctx)
	for _, stmt := range setup {
		_, err := session.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	return tools.NewExecutor(connector)
}

func TestPostgres_Describe(t *testing.T) {
	e := newPostgresExecutor(t,
		"DROP TABLE IF EXISTS sqlmcp_it_describe",
		`CREATE TABLE sqlmcp_it_describe (
			id serial PRIMARY KEY,
			email text NOT NULL UNIQUE,
			qty integer DEFAULT 0,
			code bigint GENERATED ALWAYS AS IDENTITY,
			note varchar(20)
		)`,
	)
	ctx := context.Background()

	columns := "Field: id, Type: integer, Null: NO, Key: PRI, Default: nextval('sqlmcp_it_describe_id_seq'::regclass), Extra: auto_increment\n" +
		"Field: email, Type: text, Null: NO, Key: UNI, Default: None, Extra: \n" +
		"Field: qty, Type: integer, Null: YES, Key: , Default: 0, Extra: \n" +
		"Field: code, Type: bigint, Null: NO, Key: , Default: None, Extra: auto_increment\n" +
		"Field: note, Type: character varying, Null: YES, Key: , Default: None, Extra: \n"

	assert.Equal(t, "Schema for table 'sqlmcp_it_describe':\n"+columns, e.DescribeTable(ctx, "sqlmcp_it_describe"))
	assert.Equal(t, "Schema for table 'public.sqlmcp_it_describe':\n"+columns, e.DescribeTable(ctx, "public.sqlmcp_it_describe"))
	assert.Equal(t, "No schema found for table 'sqlmcp_it_nope'.", e.DescribeTable(ctx, "sqlmcp_it_nope"))
	assert.Equal(t, "No schema found for table 'x' OR '1'='1'.", e.DescribeTable(ctx, "x' OR '1'='1"))
}

func TestPostgres_QueryText(t *testing.T) {
	e := newPostgresExecutor(t)
	ctx := context.Background()

	got := e.RunQuery(ctx, `SELECT 1 AS id, 'alice' AS name, '\x00ff'::bytea AS raw, 9.90::numeric(4,2) AS price`)
	assert.Equal(t, "Query Results:\n{'id': 1, 'name': 'alice', 'raw': b'\\x00\\xff', 'price': Decimal('9.90')}\n", got)

	assert.Equal(t, "Error executing query: No result set to fetch from.", e.RunQuery(ctx, "CREATE TABLE sqlmcp_it_never (a int)"))
	assert.Equal(t, "No schema found for table 'sqlmcp_it_never'.", e.DescribeTable(ctx, "sqlmcp_it_never"))
}
