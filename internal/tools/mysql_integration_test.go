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

// newMySQLExecutor recreates the sqlmcp_it_items table on the test server.
func newMySQLExecutor(t *testing.T) *tools.Executor {
	t.Helper()

	cfg, err := db.ParseConnectionString(testinfra.RequireMySQL(t))
	require.NoError(t, err)
	connector, err := db.NewConnector(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = connector.Close() })

	ctx := context.Background()
	session, err := connector.Connect(ctx)
	require.NoError(t, err)
	defer session.Close(ctx)

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS sqlmcp_it_items",
		`CREATE TABLE sqlmcp_it_items (
			id int PRIMARY KEY AUTO_INCREMENT,
			name varchar(50) NOT NULL DEFAULT 'new',
			sku varchar(20) UNIQUE,
			price decimal(10,2),
			made date,
			at datetime,
			dur time,
			raw varbinary(4),
			qty int unsigned
		)`,
		`INSERT INTO sqlmcp_it_items (id, name, sku, price, made, at, dur, raw, qty)
			VALUES (1, 'widget', 'W-1', 9.99, '2024-03-01', '2024-03-01 12:30:00', '-01:30:00', x'00ff', 3)`,
		"INSERT INTO sqlmcp_it_items (id) VALUES (2)",
	} {
		_, err := session.Exec(ctx, stmt)
		require.NoError(t, err, stmt)
	}

	return tools.NewExecutor(connector)
}

func TestMySQL_QueryValues(t *testing.T) {
	e := newMySQLExecutor(t)

	got := e.RunQuery(context.Background(), "SELECT id, name, price, made, at, dur, raw, qty FROM sqlmcp_it_items ORDER BY id")
	assert.Equal(t, "Query Results:\n"+
		"{'id': 1, 'name': 'widget', 'price': Decimal('9.99'), 'made': datetime.date(2024, 3, 1), "+
		"'at': datetime.datetime(2024, 3, 1, 12, 30), 'dur': datetime.timedelta(days=-1, seconds=81000), "+
		"'raw': b'\\x00\\xff', 'qty': 3}\n"+
		"{'id': 2, 'name': 'new', 'price': None, 'made': None, 'at': None, 'dur': None, 'raw': None, 'qty': None}\n", got)
}

func TestMySQL_QueryDoesNotCommit(t *testing.T) {
	e := newMySQLExecutor(t)
	ctx := context.Background()

	assert.Equal(t, "Error executing query: No result set to fetch from.", e.RunQuery(ctx, "DELETE FROM sqlmcp_it_items"))
	assert.Equal(t, "Query Results:\n{'n': 2}\n", e.RunQuery(ctx, "SELECT COUNT(*) AS n FROM sqlmcp_it_items"))
}

func TestMySQL_UpdateCountsMatchedRows(t *testing.T) {
	e := newMySQLExecutor(t)
	ctx := context.Background()

	assert.Equal(t, "Successfully executed update. Rows affected: 1",
		e.RunMutation(ctx, "UPDATE sqlmcp_it_items SET name='widget' WHERE id=1"), "unchanged row still counts")
	assert.Equal(t, "Successfully executed update. Rows affected: 2",
		e.RunMutation(ctx, "UPDATE sqlmcp_it_items SET name='gadget'"))
	assert.Equal(t, "Query Results:\n{'name': 'gadget'}\n", e.RunQuery(ctx, "SELECT DISTINCT name FROM sqlmcp_it_items"))

	got := e.RunMutation(ctx, "INSERT INTO sqlmcp_it_items (id) VALUES (1)")
	assert.Contains(t, got, "Error executing update: Error 1062")
}

func TestMySQL_Describe(t *testing.T) {
	e := newMySQLExecutor(t)
	ctx := context.Background()

	want := "Schema for table 'sqlmcp_it_items':\n" +
		"Field: id, Type: int, Null: NO, Key: PRI, Default: None, Extra: auto_increment\n" +
		"Field: name, Type: varchar(50), Null: NO, Key: , Default: new, Extra: \n" +
		"Field: sku, Type: varchar(20), Null: YES, Key: UNI, Default: None, Extra: \n" +
		"Field: price, Type: decimal(10,2), Null: YES, Key: , Default: None, Extra: \n" +
		"Field: made, Type: date, Null: YES, Key: , Default: None, Extra: \n" +
		"Field: at, Type: datetime, Null: YES, Key: , Default: None, Extra: \n" +
		"Field: dur, Type: time, Null: YES, Key: , Default: None, Extra: \n" +
		"Field: raw, Type: varbinary(4), Null: YES, Key: , Default: None, Extra: \n" +
		"Field: qty, Type: int unsigned, Null: YES, Key: , Default: None, Extra: \n"
	assert.Equal(t, want, e.DescribeTable(ctx, "sqlmcp_it_items"))
	assert.Equal(t, "No schema found for table 'sqlmcp_it_nope'.", e.DescribeTable(ctx, "sqlmcp_it_nope"))
}
