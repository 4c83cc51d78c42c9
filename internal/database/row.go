package database

import "github.com/koustreak/minorm/internal/errs"

// Row is one result row: column names in result order and their values.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of column and whether the row has it.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the row as a column -> value map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.Columns))
	for i, c := range r.Columns {
		m[c] = r.Values[i]
	}
	return m
}

// ScanRows reads up to limit rows (all rows when limit <= 0) from the
// result set. Text values that drivers hand back as []byte are returned
// as strings.
//
// The returned slice is always non-nil (empty slice on zero rows).
// ScanRows always closes the Rows, callers do not need to call Close().
func ScanRows(rows Rows, limit int) ([]Row, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to read column names", err)
	}

	result := make([]Row, 0)

	for (limit <= 0 || len(result) < limit) && rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(columns))
		destPtrs := make([]any, len(columns))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errs.Wrap(errs.ErrKindQueryFailed, "failed to scan row", err)
		}

		for i, v := range dest {
			if b, ok := v.([]byte); ok {
				dest[i] = string(b)
			}
		}
		result = append(result, Row{Columns: columns, Values: dest})
	}

	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindQueryFailed, "error during row iteration", err)
	}

	return result, nil
}
