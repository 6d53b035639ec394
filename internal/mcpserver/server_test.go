package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvka-141/sqlmcp/internal/logging"
	"github.com/vvka-141/sqlmcp/internal/tools"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// fakeConnector hands out sessions that answer every query with one row
// and track how many calls are in flight.
type fakeConnector struct {
	err     error
	delay   time.Duration
	panicky bool

	active atomic.Int32
	peak   atomic.Int32
}

func (c *fakeConnector) Connect(ctx context.Context) (sqlmcp.Session, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &fakeSession{connector: c}, nil
}

type fakeSession struct {
	connector *fakeConnector
}

func (s *fakeSession) Query(ctx context.Context, sql string, args ...any) (*sqlmcp.ResultSet, error) {
	c := s.connector
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		peak := c.peak.Load()
		if n <= peak || c.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	time.Sleep(c.delay)
	if c.panicky {
		panic("driver exploded")
	}
	return &sqlmcp.ResultSet{Columns: []string{"id"}, Rows: [][]any{{int64(1)}}}, nil
}

func (s *fakeSession) Exec(ctx context.Context, sql string) (int64, error) {
	return 3, nil
}

func (s *fakeSession) Driver() sqlmcp.Driver {
	return sqlmcp.DriverMySQL
}

func (s *fakeSession) Close(ctx context.Context) error {
	return nil
}

func newTestServer(connector sqlmcp.Connector, readOnly bool, opts ...Option) *Server {
	registry := tools.NewRegistry(tools.NewExecutor(connector), sqlmcp.DriverMySQL, tools.WithReadOnly(readOnly))
	return NewServer(registry, opts...)
}

func decode(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func handle(t *testing.T, s *Server, message string) map[string]any {
	t.Helper()
	return decode(t, s.mcp.HandleMessage(context.Background(), json.RawMessage(message)))
}

func callMessage(id int, name string, args map[string]any) string {
	data, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	return string(data)
}

// toolText extracts the single text block of a tools/call response.
func toolText(t *testing.T, response map[string]any) (string, bool) {
	t.Helper()
	result, ok := response["result"].(map[string]any)
	require.True(t, ok, "expected a result, got %v", response)
	content, ok := result["content"].([]any)
	require.True(t, ok)
	require.Len(t, content, 1)
	block := content[0].(map[string]any)
	assert.Equal(t, "text", block["type"])
	isError, _ := result["isError"].(bool)
	return block["text"].(string), isError
}

func listedNames(t *testing.T, response map[string]any) []string {
	t.Helper()
	result := response["result"].(map[string]any)
	var names []string
	for _, tool := range result["tools"].([]any) {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	return names
}

func TestNewServer_NilRegistryPanics(t *testing.T) {
	assert.Panics(t, func() { NewServer(nil) })
}

func TestServer_Initialize(t *testing.T) {
	s := newTestServer(&fakeConnector{}, false, WithVersion("1.2.3"))

	resp := handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"0"}}}`)

	result := resp["result"].(map[string]any)
	assert.NotEmpty(t, result["protocolVersion"])
	assert.Equal(t, map[string]any{"name": "SQL_Connection", "version": "1.2.3"}, result["serverInfo"])
	assert.Contains(t, result["capabilities"], "tools")
	assert.Contains(t, result["instructions"], "query_database")
}

func TestServer_InstructionsOverride(t *testing.T) {
	s := newTestServer(&fakeConnector{}, false, WithInstructions("Only read the orders table."))

	resp := handle(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`)

	assert.Equal(t, "Only read the orders table.", resp["result"].(map[string]any)["instructions"])
}

func TestServer_ListTools(t *testing.T) {
	s := newTestServer(&fakeConnector{}, false)

	resp := handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.ElementsMatch(t, []string{"query_database", "update_database", "describe_table"}, listedNames(t, resp))

	for _, tool := range resp["result"].(map[string]any)["tools"].([]any) {
		schema := tool.(map[string]any)["inputSchema"].(map[string]any)
		assert.Equal(t, "object", schema["type"])
		assert.NotEmpty(t, schema["required"])
	}
}

func TestServer_ListToolsReadOnly(t *testing.T) {
	s := newTestServer(&fakeConnector{}, true)

	resp := handle(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	assert.ElementsMatch(t, []string{"query_database", "describe_table"}, listedNames(t, resp))

	resp = handle(t, s, callMessage(3, "update_database", map[string]any{"query": "DELETE FROM t"}))
	assert.Contains(t, resp, "error")
	assert.NotContains(t, resp, "result")
}

func TestTools_AdvertisedForm(t *testing.T) {
	registry := tools.NewRegistry(tools.NewExecutor(&fakeConnector{}), sqlmcp.DriverPostgres)

	listed := Tools(registry)
	require.Len(t, listed, 3)

	decoded := decode(t, listed[2])
	assert.Equal(t, "describe_table", decoded["name"])
	assert.Contains(t, decoded["description"], "PostgreSQL table")
	schema := decoded["inputSchema"].(map[string]any)
	assert.Equal(t, []any{"table"}, schema["required"])
}

func TestServer_CallQuery(t *testing.T) {
	s := newTestServer(&fakeConnector{}, false)

	text, isError := toolText(t, handle(t, s, callMessage(4, "query_database", map[string]any{"query": "SELECT id FROM t"})))

	assert.False(t, isError)
	assert.Equal(t, "Query Results:\n{'id': 1}\n", text)
}

func TestServer_CallUpdate(t *testing.T) {
	s := newTestServer(&fakeConnector{}, false)

	text, isError := toolText(t, handle(t, s, callMessage(5, "update_database", map[string]any{"query": "DELETE FROM t"})))

	assert.False(t, isError)
	assert.Equal(t, "Successfully executed update. Rows affected: 3", text)
}

func TestServer_ConnectionFailureIsText(t *testing.T) {
	s := newTestServer(&fakeConnector{err: errors.New("connection refused")}, false)

	calls := map[string]map[string]any{
		"query_database":  {"query": "SELECT 1"},
		"update_database": {"query": "DELETE FROM t"},
		"describe_table":  {"table": "users"},
	}
	id := 10
	for name, args := range calls {
		t.Run(name, func(t *testing.T) {
			id++
			text, isError := toolText(t, handle(t, s, callMessage(id, name, args)))
			assert.False(t, isError)
			assert.Equal(t, "Failed to connect to the database.", text)
		})
	}
}

func TestServer_ArgumentErrors(t *testing.T) {
	s := newTestServer(&fakeConnector{}, false)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing", map[string]any{}, `argument "query" is required`},
		{"wrong type", map[string]any{"query": 42}, `argument "query" must be a string`},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isError := toolText(t, handle(t, s, callMessage(20+i, "query_database", tt.args)))
			assert.True(t, isError)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestServer_UnknownTool(t *testing.T) {
	s := newTestServer(&fakeConnector{}, false)

	resp := handle(t, s, callMessage(30, "drop_database", map[string]any{}))

	require.Contains(t, resp, "error")
	assert.Contains(t, resp["error"].(map[string]any)["message"], "drop_database")
}

func TestServer_PanickingCallReturnsError(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServer(&fakeConnector{panicky: true}, false, WithLogger(logging.NewWriterLogger(&logs, false)))

	resp := handle(t, s, callMessage(40, "query_database", map[string]any{"query": "SELECT 1"}))

	require.Contains(t, resp, "error")
	assert.Contains(t, resp["error"].(map[string]any)["message"], "query_database: internal error")
	assert.Contains(t, logs.String(), "Tool query_database panicked: driver exploded")

	resp = handle(t, s, callMessage(41, "query_database", map[string]any{"query": "SELECT 2"}))
	assert.Contains(t, resp, "error", "the call group keeps accepting work after a panic")
}

func TestServer_ConcurrencyLimit(t *testing.T) {
	connector := &fakeConnector{delay: 20 * time.Millisecond}
	s := newTestServer(connector, false, WithMaxConcurrency(2))

	var wg sync.WaitGroup
	texts := make([]string, 8)
	for i := range texts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := s.mcp.HandleMessage(context.Background(), json.RawMessage(callMessage(100+i, "query_database", map[string]any{"query": "SELECT 1"})))
			data, err := json.Marshal(resp)
			if err == nil {
				texts[i] = string(data)
			}
		}(i)
	}
	wg.Wait()

	for _, text := range texts {
		assert.Contains(t, text, `Query Results:\n{'id': 1}\n`)
	}
	assert.LessOrEqual(t, connector.peak.Load(), int32(2))
	assert.GreaterOrEqual(t, connector.peak.Load(), int32(1))
	assert.Zero(t, connector.active.Load())
}

func TestServer_ServeSession(t *testing.T) {
	var logs bytes.Buffer
	s := newTestServer(&fakeConnector{}, true, WithLogger(logging.NewWriterLogger(&logs, true)))

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
		callMessage(3, "query_database", map[string]any{"query": "SELECT id FROM t"}),
		`{not json`,
		`{"jsonrpc":"2.0","id":4,"method":"tables/drop"}`,
	}, "\n") + "\n"
	var out bytes.Buffer

	require.NoError(t, s.Serve(context.Background(), strings.NewReader(in), &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5, "notifications get no response")

	var responses []map[string]any
	for _, line := range lines {
		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &decoded), line)
		responses = append(responses, decoded)
	}

	assert.Equal(t, "SQL_Connection", responses[0]["result"].(map[string]any)["serverInfo"].(map[string]any)["name"])
	assert.Equal(t, map[string]any{}, responses[1]["result"])
	text, _ := toolText(t, responses[2])
	assert.Equal(t, "Query Results:\n{'id': 1}\n", text)
	assert.EqualValues(t, -32700, responses[3]["error"].(map[string]any)["code"])
	assert.EqualValues(t, -32601, responses[4]["error"].(map[string]any)["code"])

	assert.Contains(t, logs.String(), "Starting SQL MCP server...")
	assert.Contains(t, logs.String(), "Serving query_database, describe_table for mysql (read-only: true)")
	assert.Contains(t, logs.String(), "query_database finished in")
	assert.NotContains(t, out.String(), "Starting SQL MCP server")
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s := newTestServer(&fakeConnector{}, false)
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, pr, io.Discard) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
