package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// Tool names on the invocation surface.
const (
	ToolQueryDatabase  = "query_database"
	ToolUpdateDatabase = "update_database"
	ToolDescribeTable  = "describe_table"
)

// ErrUnknownTool is returned by Registry.Call for names not on the surface.
var ErrUnknownTool = errors.New("unknown tool")

// ArgumentError reports a missing or ill-typed tool argument.
type ArgumentError struct {
	Tool     string
	Argument string
	Reason   string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: argument %q %s", e.Tool, e.Argument, e.Reason)
}

// Tool is one advertised operation: its name, description, JSON input
// schema and the handler producing the result text.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage

	params  []param
	handler func(ctx context.Context, args map[string]string) string
}

type param struct {
	name        string
	description string
	required    bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithReadOnly removes update_database from the surface.
func WithReadOnly(readOnly bool) RegistryOption {
	return func(r *Registry) {
		r.readOnly = readOnly
	}
}

// WithUpdateAuthorizer requires a token argument on update_database when the
// authorizer has one configured.
func WithUpdateAuthorizer(a *UpdateAuthorizer) RegistryOption {
	return func(r *Registry) {
		r.authz = a
	}
}

// Registry is the ordered tool surface backed by an Executor.
type Registry struct {
	executor *Executor
	driver   sqlmcp.Driver
	readOnly bool
	authz    *UpdateAuthorizer
	tools    []*Tool
	byName   map[string]*Tool
}

// NewRegistry builds the surface for a database of the given driver.
func NewRegistry(executor *Executor, driver sqlmcp.Driver, opts ...RegistryOption) *Registry {
	r := &Registry{
		executor: executor,
		driver:   driver,
		byName:   make(map[string]*Tool),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.add(&Tool{
		Name: ToolQueryDatabase,
		Description: fmt.Sprintf(`Execute a SQL query on the %s database and return results.

Args:
    query: SQL query (e.g., 'SELECT * FROM users WHERE id = 1')

Returns:
    String representation of query results or error message.`, driverLabel(driver)),
		params: []param{{name: "query", description: "SQL query to execute", required: true}},
		handler: func(ctx context.Context, args map[string]string) string {
			return r.executor.RunQuery(ctx, args["query"])
		},
	})

	if !r.readOnly {
		update := &Tool{
			Name: ToolUpdateDatabase,
			Description: fmt.Sprintf(`Execute a SQL update or insert query on the %s database.

Args:
    query: SQL update/insert query (e.g., 'UPDATE users SET status = 'active' WHERE id = 1')

Returns:
    Confirmation or error message.`, driverLabel(driver)),
			params: []param{{name: "query", description: "SQL statement to execute and commit", required: true}},
			handler: func(ctx context.Context, args map[string]string) string {
				if err := r.authz.Authorize(args["token"]); err != nil {
					r.executor.logger.Error("Rejected update: %v", err)
					return MsgUpdateRejected
				}
				return r.executor.RunMutation(ctx, args["query"])
			},
		}
		if r.authz.Required() {
			update.params = append(update.params, param{name: "token", description: "Authorization token for updates", required: true})
		}
		r.add(update)
	}

	r.add(&Tool{
		Name: ToolDescribeTable,
		Description: fmt.Sprintf(`Describe the schema of a %s table.

Args:
    table: Name of the table (e.g., 'users')

Returns:
    String representation of the table schema or error message.`, driverLabel(driver)),
		params: []param{{name: "table", description: "Table name, optionally schema-qualified", required: true}},
		handler: func(ctx context.Context, args map[string]string) string {
			return r.executor.DescribeTable(ctx, args["table"])
		},
	})

	return r
}

func (r *Registry) add(t *Tool) {
	t.InputSchema = buildInputSchema(t.params)
	r.tools = append(r.tools, t)
	r.byName[t.Name] = t
}

// Tools returns the surface in advertisement order.
func (r *Registry) Tools() []*Tool {
	return r.tools
}

// Driver reports the database driver the registry serves.
func (r *Registry) Driver() sqlmcp.Driver {
	return r.driver
}

// ReadOnly reports whether update_database is withheld.
func (r *Registry) ReadOnly() bool {
	return r.readOnly
}

// UpdateTokenRequired reports whether update_database demands a token.
func (r *Registry) UpdateTokenRequired() bool {
	return !r.readOnly && r.authz.Required()
}

// Call validates arguments against the tool's parameters and runs it.
// Database failures are part of the returned text, never an error; errors
// are reserved for unknown tools and bad arguments.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (string, error) {
	tool, ok := r.byName[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	values, err := stringArgs(tool, args)
	if err != nil {
		return "", err
	}
	return tool.handler(ctx, values), nil
}

func stringArgs(tool *Tool, args map[string]any) (map[string]string, error) {
	values := make(map[string]string, len(tool.params))
	for _, p := range tool.params {
		v, present := args[p.name]
		if !present || v == nil {
			if p.required {
				return nil, &ArgumentError{Tool: tool.Name, Argument: p.name, Reason: "is required"}
			}
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, &ArgumentError{Tool: tool.Name, Argument: p.name, Reason: "must be a string"}
		}
		values[p.name] = s
	}
	return values, nil
}

func buildInputSchema(params []param) json.RawMessage {
	type property struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
	}
	schema := struct {
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
		Required   []string            `json:"required"`
	}{
		Type:       "object",
		Properties: make(map[string]property, len(params)),
		Required:   []string{},
	}
	for _, p := range params {
		schema.Properties[p.name] = property{Type: "string", Description: p.description}
		if p.required {
			schema.Required = append(schema.Required, p.name)
		}
	}

	data, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return data
}

func driverLabel(d sqlmcp.Driver) string {
	switch d {
	case sqlmcp.DriverPostgres:
		return "PostgreSQL"
	case sqlmcp.DriverMySQL:
		return "MySQL"
	case sqlmcp.DriverSQLite:
		return "SQLite"
	default:
		return strings.ToUpper(string(d))
	}
}
