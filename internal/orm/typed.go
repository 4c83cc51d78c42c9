package orm

import (
	"context"
	"reflect"
	"strconv"
	"strings"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
)

// Model binds a struct type to a registered Table. Exported fields are
// mapped from their `orm` tag:
//
//	type User struct {
//	    ID       int64   `orm:"id,pk"`
//	    Name     string  `orm:"username,type=varchar(50)"`
//	    Email    *string `orm:"email"`
//	    Admin    *bool   `orm:"admin,default=false"`
//	    Bio      *string `orm:"bio,text"`
//	    Internal string  `orm:"-"`
//	}
//
// The attribute name of a struct field is its column name. Nil pointer
// fields are unset and take the field default on Save.
type Model[T any] struct {
	table  *Table
	fields []structField
}

type structField struct {
	index int
	attr  string
}

// NewModel registers T under model (and table, when not empty) and
// returns the typed model.
func NewModel[T any](reg *Registry, model, table string) (*Model[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		return nil, errs.Newf(errs.ErrKindSchema, "model %s: %s is not a struct", model, rt)
	}

	decl := Declaration{Model: model, Table: table}
	m := &Model[T]{}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag := sf.Tag.Get("orm")
		if !sf.IsExported() || tag == "" || tag == "-" {
			continue
		}

		f, err := parseTag(sf, tag)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindSchema, "model "+model, err)
		}
		decl.Attrs = append(decl.Attrs, Attr{Name: f.Name, Value: f})
		m.fields = append(m.fields, structField{index: i, attr: f.Name})
	}

	t, err := reg.Register(decl)
	if err != nil {
		return nil, err
	}
	m.table = t
	return m, nil
}

func parseTag(sf reflect.StructField, tag string) (*Field, error) {
	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	if name == "" {
		name = strings.ToLower(sf.Name)
	}

	ft := sf.Type
	if ft.Kind() == reflect.Ptr {
		ft = ft.Elem()
	}

	var f *Field
	switch ft.Kind() {
	case reflect.String:
		f = StringField(name)
	case reflect.Bool:
		f = BooleanField(name)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		f = IntegerField(name)
	case reflect.Float32, reflect.Float64:
		f = FloatField(name)
	default:
		return nil, errs.Newf(errs.ErrKindSchema, "field %s: unsupported type %s", sf.Name, sf.Type)
	}

	for _, opt := range parts[1:] {
		key, val, _ := strings.Cut(strings.TrimSpace(opt), "=")
		switch key {
		case "pk":
			f.PrimaryKey = true
		case "text":
			if f.Kind != KindString {
				return nil, errs.Newf(errs.ErrKindSchema, "field %s: text requires a string type", sf.Name)
			}
			f.Kind, f.ColumnType = KindText, "text"
		case "type":
			f.ColumnType = val
		case "default":
			def, err := parseDefault(f.Kind, val)
			if err != nil {
				return nil, errs.Wrap(errs.ErrKindSchema, "field "+sf.Name+": bad default", err)
			}
			f.Default = def
		default:
			return nil, errs.Newf(errs.ErrKindSchema, "field %s: unknown tag option %q", sf.Name, key)
		}
	}
	return f, nil
}

func parseDefault(kind FieldKind, s string) (any, error) {
	switch kind {
	case KindBoolean:
		return strconv.ParseBool(s)
	case KindInteger:
		return strconv.ParseInt(s, 10, 64)
	case KindFloat:
		return strconv.ParseFloat(s, 64)
	default:
		return s, nil
	}
}

// Table returns the registered mapping.
func (m *Model[T]) Table() *Table {
	return m.table
}

// Record converts v into a Record. Nil pointer fields are left unset.
func (m *Model[T]) Record(v *T) *Record {
	rv := reflect.ValueOf(v).Elem()
	values := make(map[string]any, len(m.fields))
	for _, sf := range m.fields {
		fv := rv.Field(sf.index)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		values[sf.attr] = fv.Interface()
	}
	return NewRecord(m.table, values)
}

// fill copies the record's values into v. Values of the wrong type are
// converted where possible.
func (m *Model[T]) fill(rec *Record, v *T) error {
	rv := reflect.ValueOf(v).Elem()
	for _, sf := range m.fields {
		val, ok := rec.Get(sf.attr)
		if !ok {
			continue
		}
		if err := setFieldValue(rv.Field(sf.index), val); err != nil {
			return errs.Wrap(errs.ErrKindQueryFailed, "reading "+m.table.Model+"."+sf.attr, err)
		}
	}
	return nil
}

func (m *Model[T]) scan(rec *Record) (*T, error) {
	v := new(T)
	if err := m.fill(rec, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Save inserts v and writes resolved defaults back into it.
func (m *Model[T]) Save(ctx context.Context, ex Executor, v *T) error {
	rec := m.Record(v)
	if err := rec.Save(ctx, ex); err != nil {
		return err
	}
	return m.fill(rec, v)
}

// Update writes v to the row with its primary key.
func (m *Model[T]) Update(ctx context.Context, ex Executor, v *T) error {
	return m.Record(v).Update(ctx, ex)
}

// Remove deletes the row with v's primary key.
func (m *Model[T]) Remove(ctx context.Context, ex Executor, v *T) error {
	return m.Record(v).Remove(ctx, ex)
}

// Find returns the value whose primary key equals pk, or nil.
func (m *Model[T]) Find(ctx context.Context, ex Executor, pk any) (*T, error) {
	rec, err := m.table.Find(ctx, ex, pk)
	if err != nil || rec == nil {
		return nil, err
	}
	return m.scan(rec)
}

// FindAll returns every value matching filter.
func (m *Model[T]) FindAll(ctx context.Context, ex Executor, filter *database.Filter) ([]*T, error) {
	recs, err := m.table.FindAll(ctx, ex, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*T, len(recs))
	for i, rec := range recs {
		if out[i], err = m.scan(rec); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Count returns the number of rows matching filter.
func (m *Model[T]) Count(ctx context.Context, ex Executor, filter *database.Filter) (int64, error) {
	return m.table.Count(ctx, ex, filter)
}

// setFieldValue assigns value to a struct field, allocating pointer
// fields and converting database representations to the field's kind.
func setFieldValue(fv reflect.Value, value any) error {
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	if fv.Kind() == reflect.Ptr {
		elem := reflect.New(fv.Type().Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		fv.Set(elem)
		return nil
	}

	switch fv.Kind() {
	case reflect.Bool:
		if b, ok := toBool(value); ok {
			fv.SetBool(b)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, ok := toInt64(value); ok && !fv.OverflowInt(n) {
			fv.SetInt(n)
			return nil
		}
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		if n, ok := toInt64(value); ok && n >= 0 && !fv.OverflowUint(uint64(n)) {
			fv.SetUint(uint64(n))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := toFloat64(value); ok {
			fv.SetFloat(f)
			return nil
		}
	case reflect.String:
		switch s := value.(type) {
		case string:
			fv.SetString(s)
			return nil
		case []byte:
			fv.SetString(string(s))
			return nil
		}
	}

	return errs.Newf(errs.ErrKindInvalidInput, "cannot convert %T to %s", value, fv.Type())
}
