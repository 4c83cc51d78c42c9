package orm

import (
	"strconv"
)

// normalize converts a driver value to the Go type of kind where the
// conversion is lossless. MySQL's text protocol returns numbers as
// strings and SQLite stores booleans as integers; anything that does not
// convert cleanly is returned as is.
func normalize(kind FieldKind, v any) any {
	switch kind {
	case KindInteger:
		if n, ok := toInt64(v); ok {
			return n
		}
	case KindFloat:
		if f, ok := toFloat64(v); ok {
			return f
		}
	case KindBoolean:
		if b, ok := toBool(v); ok {
			return b
		}
	}
	return v
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint64:
		if n > 1<<63-1 {
			return 0, false
		}
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		p, err := strconv.ParseBool(b)
		return p, err == nil
	}
	if i, ok := toInt64(v); ok {
		return i != 0, true
	}
	return false, false
}

// Coerce converts v to the Go type of attr's field where the conversion
// is lossless, e.g. a primary key parsed from a URL path.
func (t *Table) Coerce(attr string, v any) any {
	f, ok := t.Field(attr)
	if !ok {
		return v
	}
	return normalize(f.Kind, v)
}
