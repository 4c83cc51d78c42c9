package orm

import (
	"fmt"
	"reflect"
)

// FieldKind is the family a Field belongs to. It fixes the default column
// type and the Go type values are converted to when read back.
type FieldKind int

const (
	KindString FieldKind = iota
	KindBoolean
	KindInteger
	KindFloat
	KindText
)

func (k FieldKind) String() string {
	switch k {
	case KindBoolean:
		return "BooleanField"
	case KindInteger:
		return "IntegerField"
	case KindFloat:
		return "FloatField"
	case KindText:
		return "TextField"
	default:
		return "StringField"
	}
}

// Field describes one column. Name is the column name; when empty it is
// taken from the declaring attribute at registration.
//
// Default is either a literal or a func() any provider. A nil Default
// means the column has no default.
type Field struct {
	Name       string
	ColumnType string
	PrimaryKey bool
	Default    any
	Kind       FieldKind
}

// FieldOption customises a Field at construction.
type FieldOption func(*Field)

// PrimaryKey marks the field as the model's primary key.
func PrimaryKey() FieldOption {
	return func(f *Field) { f.PrimaryKey = true }
}

// Default sets a literal default.
func Default(v any) FieldOption {
	return func(f *Field) { f.Default = v }
}

// DefaultFunc sets a default provider, called when an unset value is read.
func DefaultFunc(fn func() any) FieldOption {
	return func(f *Field) { f.Default = fn }
}

// ColumnType overrides the SQL column type.
func ColumnType(ct string) FieldOption {
	return func(f *Field) { f.ColumnType = ct }
}

func newField(kind FieldKind, name, columnType string, def any, opts []FieldOption) *Field {
	f := &Field{Name: name, ColumnType: columnType, Default: def, Kind: kind}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// StringField is a varchar(100) column with no default.
func StringField(name string, opts ...FieldOption) *Field {
	return newField(KindString, name, "varchar(100)", nil, opts)
}

// BooleanField is a boolean column defaulting to false.
func BooleanField(name string, opts ...FieldOption) *Field {
	return newField(KindBoolean, name, "boolean", false, opts)
}

// IntegerField is a bigint column defaulting to 0.
func IntegerField(name string, opts ...FieldOption) *Field {
	return newField(KindInteger, name, "bigint", int64(0), opts)
}

// FloatField is a real column defaulting to 0.0.
func FloatField(name string, opts ...FieldOption) *Field {
	return newField(KindFloat, name, "real", 0.0, opts)
}

// TextField is a text column with no default.
func TextField(name string, opts ...FieldOption) *Field {
	return newField(KindText, name, "text", nil, opts)
}

// DefaultValue resolves the default, invoking it if it is a provider.
// Any func taking no arguments and returning one value is a provider.
func (f *Field) DefaultValue() any {
	switch d := f.Default.(type) {
	case nil:
		return nil
	case func() any:
		return d()
	}

	rv := reflect.ValueOf(f.Default)
	if rv.Kind() != reflect.Func {
		return f.Default
	}
	if rv.IsNil() || !isProvider(rv.Type()) {
		return nil
	}
	return rv.Call(nil)[0].Interface()
}

func isProvider(t reflect.Type) bool {
	return t.Kind() == reflect.Func && t.NumIn() == 0 && t.NumOut() == 1
}

// checkDefault rejects func defaults that cannot be called as providers.
func (f *Field) checkDefault() error {
	if f.Default == nil {
		return nil
	}
	t := reflect.TypeOf(f.Default)
	if t.Kind() == reflect.Func && !isProvider(t) {
		return fmt.Errorf("default for %s must be a value or a func with no arguments and one result, got %s", f.Name, t)
	}
	return nil
}

// String renders the field as <Kind, type:name> for diagnostics.
func (f *Field) String() string {
	return fmt.Sprintf("<%s, %s:%s>", f.Kind, f.ColumnType, f.Name)
}
