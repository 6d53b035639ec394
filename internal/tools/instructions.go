package tools

import (
	"fmt"
	"strings"
)

// Instructions returns the advisory text sent to the agent at
// initialization. The rules it states are guidance, not enforcement; only
// the update token is checked.
func (r *Registry) Instructions() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are connected to a %s database. ", driverLabel(r.driver))

	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name
	}
	fmt.Fprintf(&b, "Use the tools %s to help the user inspect and work with its data.\n\n", strings.Join(names, ", "))

	b.WriteString("Rules:\n")
	b.WriteString("- Describe a table before querying it when its columns are unknown.\n")
	b.WriteString("- Do not reveal sensitive personal information about people in the data.\n")
	switch {
	case r.readOnly:
		b.WriteString("- The database is read-only through this server; updates are not available.\n")
	case r.UpdateTokenRequired():
		b.WriteString("- Updates require an authorization token. Ask the user for it and pass it as the token argument; never guess it.\n")
	default:
		b.WriteString("- Confirm with the user before running statements that modify data.\n")
	}
	return b.String()
}
