package tools

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// Result texts returned to the calling agent.
const (
	MsgConnectionFailed = "Failed to connect to the database."
	MsgNoResults        = "No results found."
	MsgUpdateRejected   = "Update rejected: a valid authorization token is required."
	MsgNoResultSet      = "No result set to fetch from."

	queryHeader = "Query Results:\n"
)

// RenderQuery renders rows as one mapping literal per line, e.g.
// {'id': 1, 'name': 'alice'}.
func RenderQuery(result *QueryResult) string {
	if result == nil || len(result.Rows) == 0 {
		return MsgNoResults
	}

	var b strings.Builder
	b.WriteString(queryHeader)
	for _, row := range result.Rows {
		b.WriteString(RenderRow(row))
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderRow renders a single row as a mapping literal.
func RenderRow(row Row) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range row {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(f.Name))
		b.WriteString(": ")
		b.WriteString(Repr(f.Value))
	}
	b.WriteByte('}')
	return b.String()
}

// RenderMutation reports the driver's affected-row count.
func RenderMutation(result *MutationResult) string {
	return fmt.Sprintf("Successfully executed update. Rows affected: %d", result.RowsAffected)
}

// RenderSchema renders one line per column after a header naming the table,
// or the not-found text when the catalog had no columns.
func RenderSchema(result *SchemaResult) string {
	if len(result.Columns) == 0 {
		return fmt.Sprintf("No schema found for table '%s'.", result.Table)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Schema for table '%s':\n", result.Table)
	for _, c := range result.Columns {
		fmt.Fprintf(&b, "Field: %s, Type: %s, Null: %s, Key: %s, Default: %s, Extra: %s\n",
			Str(c.Field), Str(c.Type), Str(c.Null), Str(c.Key), Str(c.Default), Str(c.Extra))
	}
	return b.String()
}

// Repr renders a value in literal form: strings quoted, NULL as None,
// booleans as True/False, floats always with a decimal point.
func Repr(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return quote(val)
	case []byte:
		return reprBytes(val)
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case sqlmcp.Decimal:
		return "Decimal(" + quote(string(val)) + ")"
	case sqlmcp.Date:
		return fmt.Sprintf("datetime.date(%d, %d, %d)", val.Year(), int(val.Month()), val.Day())
	case time.Time:
		return reprDatetime(val)
	case time.Duration:
		return reprTimedelta(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = quote(k) + ": " + Repr(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Repr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case fmt.Stringer:
		return quote(val.String())
	default:
		return quote(fmt.Sprint(val))
	}
}

// Str renders a value in plain form, as used in table descriptions.
func Str(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case string:
		return val
	case []byte:
		return string(val)
	case sqlmcp.Decimal:
		return string(val)
	case sqlmcp.Date:
		return val.Format(time.DateOnly)
	case time.Time:
		if val.Nanosecond() == 0 {
			return val.Format(time.DateTime)
		}
		return val.Format("2006-01-02 15:04:05.000000")
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return Repr(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// reprDatetime drops trailing zero seconds and microseconds.
func reprDatetime(t time.Time) string {
	parts := []int{t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute()}
	us := t.Nanosecond() / int(time.Microsecond)
	if t.Second() != 0 || us != 0 {
		parts = append(parts, t.Second())
	}
	if us != 0 {
		parts = append(parts, us)
	}

	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = strconv.Itoa(p)
	}
	return "datetime.datetime(" + strings.Join(strs, ", ") + ")"
}

// reprTimedelta normalizes d to days, seconds and microseconds with only
// the day count negative, e.g. -1h is timedelta(days=-1, seconds=82800).
func reprTimedelta(d time.Duration) string {
	const usPerDay = int64(24 * time.Hour / time.Microsecond)

	us := d.Microseconds()
	days := us / usPerDay
	rem := us % usPerDay
	if rem < 0 {
		days--
		rem += usPerDay
	}
	secs, micros := rem/1e6, rem%1e6

	var parts []string
	if days != 0 {
		parts = append(parts, fmt.Sprintf("days=%d", days))
	}
	if secs != 0 {
		parts = append(parts, fmt.Sprintf("seconds=%d", secs))
	}
	if micros != 0 {
		parts = append(parts, fmt.Sprintf("microseconds=%d", micros))
	}
	if len(parts) == 0 {
		return "datetime.timedelta(0)"
	}
	return "datetime.timedelta(" + strings.Join(parts, ", ") + ")"
}

// reprBytes renders b as a bytes literal. Every byte outside printable
// ASCII is escaped, so the literal round-trips exactly.
func reprBytes(b []byte) string {
	q := byte('\'')
	if bytes.IndexByte(b, '\'') >= 0 && bytes.IndexByte(b, '"') < 0 {
		q = '"'
	}

	var sb strings.Builder
	sb.Grow(len(b) + 3)
	sb.WriteByte('b')
	sb.WriteByte(q)
	for _, c := range b {
		switch {
		case c == '\\' || c == q:
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(q)
	return sb.String()
}

// quote wraps s in single quotes, switching to double quotes when s
// contains a single quote but no double quote.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == unicode.ReplacementChar:
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r) && r > 0x7f && r <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, r)
		case !unicode.IsPrint(r) && r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		case !unicode.IsPrint(r):
			fmt.Fprintf(&b, `\U%08x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}
