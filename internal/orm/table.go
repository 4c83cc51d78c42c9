// Package orm maps declared models onto single tables. A model is
// registered once, which derives its Table and the four statement
// templates; Records are then saved and found through any Executor,
// normally a *database.Pool.
package orm

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/koustreak/minorm/internal/logger"
)

// Attr is one declared attribute of a model. Only attributes whose Value
// is a *Field are mapped; the rest are ignored.
type Attr struct {
	Name  string
	Value any
}

// Declaration is the source description of a model.
type Declaration struct {
	// Model is the model type name.
	Model string

	// Table overrides the table name, which defaults to Model.
	Table string

	Attrs []Attr
}

// Table is the immutable mapping derived from a Declaration.
type Table struct {
	Model string
	Name  string

	// PrimaryKey is the attribute name of the primary key.
	PrimaryKey string

	// Fields are the non-key attribute names in declaration order.
	Fields []string

	SelectSQL string
	InsertSQL string
	UpdateSQL string
	DeleteSQL string

	mappings map[string]*Field
	byColumn map[string]string
}

// NewTable derives the mapping and statement templates for decl. Exactly
// one mapped attribute must be the primary key.
func NewTable(decl Declaration) (*Table, error) {
	t := &Table{
		Model:    decl.Model,
		Name:     decl.Table,
		mappings: make(map[string]*Field),
		byColumn: make(map[string]string),
	}
	if t.Name == "" {
		t.Name = decl.Model
	}

	for _, a := range decl.Attrs {
		f, ok := a.Value.(*Field)
		if !ok || f == nil {
			continue
		}
		if _, dup := t.mappings[a.Name]; dup {
			return nil, errs.Newf(errs.ErrKindSchema, "model %s: attribute %s declared twice", decl.Model, a.Name)
		}

		field := *f
		if field.Name == "" {
			field.Name = a.Name
		}
		if err := field.checkDefault(); err != nil {
			return nil, errs.Wrap(errs.ErrKindSchema, "model "+decl.Model, err)
		}
		if other, dup := t.byColumn[field.Name]; dup {
			return nil, errs.Newf(errs.ErrKindSchema, "model %s: column %s mapped by %s and %s", decl.Model, field.Name, other, a.Name)
		}
		t.mappings[a.Name] = &field
		t.byColumn[field.Name] = a.Name

		if field.PrimaryKey {
			if t.PrimaryKey != "" {
				return nil, errs.Newf(errs.ErrKindSchema, "duplicate primary key for field: %s", a.Name)
			}
			t.PrimaryKey = a.Name
		} else {
			t.Fields = append(t.Fields, a.Name)
		}
	}

	if t.PrimaryKey == "" {
		return nil, errs.Newf(errs.ErrKindSchema, "model %s: primary key not found", decl.Model)
	}

	t.buildTemplates()
	return t, nil
}

func (t *Table) buildTemplates() {
	table := database.QuoteIdent(t.Name)
	pk := t.quotedColumn(t.PrimaryKey)

	cols := make([]string, len(t.Fields))
	sets := make([]string, len(t.Fields))
	for i, name := range t.Fields {
		cols[i] = t.quotedColumn(name)
		sets[i] = cols[i] + "=?"
	}
	if len(sets) == 0 {
		sets = []string{pk + "=?"}
	}

	t.SelectSQL = fmt.Sprintf("select %s from %s", strings.Join(append([]string{pk}, cols...), ", "), table)
	t.InsertSQL = fmt.Sprintf("insert into %s (%s) values (%s)",
		table, strings.Join(append(cols, pk), ", "), placeholders(len(cols)+1))
	t.UpdateSQL = fmt.Sprintf("update %s set %s where %s=?", table, strings.Join(sets, ", "), pk)
	t.DeleteSQL = fmt.Sprintf("delete from %s where %s=?", table, pk)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (t *Table) quotedColumn(attr string) string {
	return database.QuoteIdent(t.mappings[attr].Name)
}

// Field returns the field mapped by attribute name.
func (t *Table) Field(attr string) (*Field, bool) {
	f, ok := t.mappings[attr]
	return f, ok
}

// Column returns the column name of attr, or "" if attr is not mapped.
func (t *Table) Column(attr string) string {
	if f, ok := t.mappings[attr]; ok {
		return f.Name
	}
	return ""
}

// Attribute returns the attribute mapped to column.
func (t *Table) Attribute(column string) (string, bool) {
	a, ok := t.byColumn[column]
	return a, ok
}

// Attributes returns the primary key followed by Fields.
func (t *Table) Attributes() []string {
	return append([]string{t.PrimaryKey}, t.Fields...)
}

// Registry holds one Table per registered model.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*Table
	log    *logger.Logger
}

// NewRegistry returns an empty registry logging through log.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		tables: make(map[string]*Table),
		log:    logger.OrNop(log),
	}
}

// Register derives the Table for decl and caches it under decl.Model.
// Registering the same model twice is a schema error.
func (r *Registry) Register(decl Declaration) (*Table, error) {
	t, err := NewTable(decl)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tables[t.Model]; ok {
		return nil, errs.Newf(errs.ErrKindSchema, "model %s already registered", t.Model)
	}
	r.tables[t.Model] = t

	r.log.Infof("found model: %s (table: %s)", t.Model, t.Name)
	for _, attr := range t.Attributes() {
		r.log.Infof(" found mapping: %s ==> %s", attr, t.mappings[attr])
	}
	return t, nil
}

// MustRegister is like Register but panics on error. It is meant for
// package-level model declarations.
func (r *Registry) MustRegister(decl Declaration) *Table {
	t, err := r.Register(decl)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the Table registered for model.
func (r *Registry) Lookup(model string) (*Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[model]
	return t, ok
}

// Tables returns every registered Table ordered by model name.
func (r *Registry) Tables() []*Table {
	r.mu.RLock()
	out := make([]*Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, t)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}
