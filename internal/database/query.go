package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/minorm/internal/errs"
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":    true,
	"!=":   true,
	"<>":   true,
	"<":    true,
	">":    true,
	"<=":   true,
	">=":   true,
	"LIKE": true,
}

// Filter narrows a single-table select with WHERE, ORDER BY, LIMIT and
// OFFSET clauses. Values are never interpolated into the SQL string.
//
// Usage:
//
//	clause, args, err := database.NewFilter().
//	    Where("email", "=", "a@b.com").
//	    OrderBy("created_at", database.Desc).
//	    Limit(20).
//	    Build()
type Filter struct {
	where   []whereClause
	orderBy []orderClause
	limit   *int
	offset  *int
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type whereClause struct {
	column string
	op     string
	value  any
}

type orderClause struct {
	column string
	dir    SortDirection
}

// NewFilter returns an empty filter.
func NewFilter() *Filter {
	return &Filter{}
}

// Where adds a condition. Multiple calls are combined with AND.
func (f *Filter) Where(column, op string, value any) *Filter {
	f.where = append(f.where, whereClause{column, op, value})
	return f
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (f *Filter) OrderBy(column string, dir SortDirection) *Filter {
	f.orderBy = append(f.orderBy, orderClause{column, dir})
	return f
}

// Limit sets the maximum number of rows to return.
func (f *Filter) Limit(n int) *Filter {
	f.limit = &n
	return f
}

// Offset sets the number of rows to skip.
func (f *Filter) Offset(n int) *Filter {
	f.offset = &n
	return f
}

// Build renders the clauses as a canonical SQL suffix (leading space
// included) plus its arguments. A nil or empty filter renders "".
func (f *Filter) Build() (string, []any, error) {
	if f == nil {
		return "", nil, nil
	}

	var sb strings.Builder
	var args []any

	if len(f.where) > 0 {
		parts := make([]string, 0, len(f.where))
		for _, w := range f.where {
			op := strings.ToUpper(w.op)
			if !validOps[op] {
				return "", nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported where operator: %q", w.op)
			}
			parts = append(parts, fmt.Sprintf("%s %s ?", QuoteIdent(w.column), op))
			args = append(args, w.value)
		}
		sb.WriteString(" where ")
		sb.WriteString(strings.Join(parts, " and "))
	}

	if len(f.orderBy) > 0 {
		parts := make([]string, len(f.orderBy))
		for i, o := range f.orderBy {
			dir := "asc"
			if o.dir == Desc {
				dir = "desc"
			}
			parts[i] = fmt.Sprintf("%s %s", QuoteIdent(o.column), dir)
		}
		sb.WriteString(" order by ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if f.limit != nil {
		if *f.limit < 0 {
			return "", nil, errs.Newf(errs.ErrKindInvalidInput, "invalid limit: %d", *f.limit)
		}
		sb.WriteString(" limit ?")
		args = append(args, *f.limit)
	}

	if f.offset != nil {
		if f.limit == nil {
			return "", nil, errs.New(errs.ErrKindInvalidInput, "offset requires limit")
		}
		if *f.offset < 0 {
			return "", nil, errs.Newf(errs.ErrKindInvalidInput, "invalid offset: %d", *f.offset)
		}
		sb.WriteString(" offset ?")
		args = append(args, *f.offset)
	}

	return sb.String(), args, nil
}

// WhereOnly returns a copy of f without ORDER BY, LIMIT and OFFSET, for
// aggregate queries such as counts.
func (f *Filter) WhereOnly() *Filter {
	if f == nil {
		return nil
	}
	return &Filter{where: append([]whereClause(nil), f.where...)}
}
