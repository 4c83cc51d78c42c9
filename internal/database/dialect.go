package database

import (
	"strconv"
	"strings"
)

// Dialect controls how canonical statements are rewritten before they
// reach a driver. Canonical statements use ? placeholders and backtick
// quoted identifiers.
type Dialect int

const (
	// DialectMySQL keeps ? placeholders and backticks.
	DialectMySQL Dialect = iota

	// DialectPostgres uses $1, $2, … placeholders and double-quoted identifiers.
	DialectPostgres

	// DialectSQLite accepts the canonical form unchanged.
	DialectSQLite
)

// DialectFor returns the dialect used by driver.
func DialectFor(d Driver) Dialect {
	switch d {
	case DriverPostgres:
		return DialectPostgres
	case DriverSQLite:
		return DialectSQLite
	default:
		return DialectMySQL
	}
}

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return "mysql"
	}
}

// Rebind rewrites a canonical statement into the dialect's native syntax.
// Text inside single-quoted string literals is left untouched, as is a ?
// inside a quoted identifier.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}

	var sb strings.Builder
	sb.Grow(len(query) + 8)

	n := 0
	inString, inIdent := false, false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case inString:
			sb.WriteByte(c)
			if c == '\'' {
				// '' is an escaped quote, stay inside the literal
				if i+1 < len(query) && query[i+1] == '\'' {
					sb.WriteByte('\'')
					i++
					continue
				}
				inString = false
			}
		case inIdent:
			if c == '`' {
				sb.WriteByte('"')
				inIdent = false
				continue
			}
			if c == '"' {
				sb.WriteString(`""`)
				continue
			}
			sb.WriteByte(c)
		case c == '\'':
			inString = true
			sb.WriteByte(c)
		case c == '`':
			inIdent = true
			sb.WriteByte('"')
		case c == '?':
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// QuoteIdent wraps a SQL identifier in backticks, the canonical quoting
// used by generated templates. Embedded backticks are doubled.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
