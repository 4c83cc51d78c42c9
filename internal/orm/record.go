package orm

import (
	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/logger"
)

// Record is one instance of a model: attribute name -> value.
// A Record is not safe for concurrent use.
type Record struct {
	table    *Table
	values   map[string]any
	resolved map[string]bool
}

// NewRecord returns a Record of t holding a copy of values.
func NewRecord(t *Table, values map[string]any) *Record {
	r := &Record{
		table:    t,
		values:   make(map[string]any, len(values)),
		resolved: make(map[string]bool),
	}
	for k, v := range values {
		r.values[k] = v
	}
	return r
}

// hydrate builds a Record from a result row, mapping columns back to
// attribute names. Unmapped columns are kept under their column name.
func hydrate(t *Table, row database.Row) *Record {
	r := NewRecord(t, nil)
	for i, col := range row.Columns {
		attr, ok := t.Attribute(col)
		if !ok {
			attr = col
		}
		v := row.Values[i]
		if f, ok := t.Field(attr); ok {
			v = normalize(f.Kind, v)
		}
		r.values[attr] = v
	}
	return r
}

// Table returns the mapping the record belongs to.
func (r *Record) Table() *Table {
	return r.table
}

// Get returns the stored value of attr, without defaulting.
func (r *Record) Get(attr string) (any, bool) {
	v, ok := r.values[attr]
	return v, ok
}

// Set stores v under attr. Setting nil marks attr unset again.
func (r *Record) Set(attr string, v any) {
	r.values[attr] = v
	delete(r.resolved, attr)
}

// GetValueOrDefault returns the stored value of attr. When none is set it
// resolves the field's default, stores it and returns it, so a default
// provider runs at most once per record.
func (r *Record) GetValueOrDefault(attr string) any {
	if v, ok := r.values[attr]; ok && (v != nil || r.resolved[attr]) {
		return v
	}

	f, ok := r.table.Field(attr)
	if !ok {
		return nil
	}
	v := f.DefaultValue()
	r.values[attr] = v
	r.resolved[attr] = true
	logger.Debugf("using default value for %s: %v", attr, v)
	return v
}

// PrimaryKey returns the resolved primary key value.
func (r *Record) PrimaryKey() any {
	return r.GetValueOrDefault(r.table.PrimaryKey)
}

// Values returns a copy of the stored values.
func (r *Record) Values() map[string]any {
	out := make(map[string]any, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// insertArgs resolves every non-key field then the primary key, in the
// order the insert template binds them.
func (r *Record) insertArgs() []any {
	args := make([]any, 0, len(r.table.Fields)+1)
	for _, attr := range r.table.Fields {
		args = append(args, r.GetValueOrDefault(attr))
	}
	return append(args, r.PrimaryKey())
}

// updateArgs matches the update template, which sets the key to itself
// when the model has no other fields.
func (r *Record) updateArgs() []any {
	if len(r.table.Fields) == 0 {
		return []any{r.PrimaryKey(), r.PrimaryKey()}
	}
	return r.insertArgs()
}
