package odm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// FieldType declares how a field's values are normalised, compared and
// ordered
type FieldType int

const (
	Any FieldType = iota
	String
	Number
	Bool
	ID
	Time
	Array
	Object
)

var fieldTypeNames = map[FieldType]string{
	Any:    "any",
	String: "string",
	Number: "number",
	Bool:   "bool",
	ID:     "id",
	Time:   "time",
	Array:  "array",
	Object: "object",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// Field describes one schema path.
//
// Default is either a value or a func() interface{} producer. Slice and map
// defaults are copied per document. Get and Set transform values on read and
// write; Transform applies only when projecting with ToObject. Ref names the
// collection an ID field (or an Array of ids) points at.
type Field struct {
	Type       FieldType
	Default    interface{}
	Searchable bool
	Ref        string
	Get        func(interface{}) interface{}
	Set        func(interface{}) interface{}
	Transform  func(interface{}) interface{}
	Validate   func(interface{}) bool
}

// Fields maps field names to their definition
type Fields map[string]Field

func (f Field) defaultValue() interface{} {
	switch d := f.Default.(type) {
	case nil:
		return nil
	case func() interface{}:
		return d()
	case []interface{}:
		return append([]interface{}{}, d...)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(d))
		for k, v := range d {
			out[k] = v
		}
		return out
	default:
		return d
	}
}

// timeFormats are tried in order when a string is stored in a Time field
var timeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// toFloat reports v as a float64 when it is any Go numeric type
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// normalize converts v into the canonical representation for t. Values that
// do not fit the type are stored as given.
func normalize(t FieldType, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch t {
	case ID:
		if _, ok := v.(*Document); ok {
			return v
		}
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
	case Number:
		if f, ok := toFloat(v); ok {
			return f
		}
	case Time:
		if s, ok := v.(string); ok {
			if tm, ok := parseTime(s); ok {
				return tm
			}
		}
	case Array:
		if _, ok := v.([]interface{}); ok {
			return v
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			out := make([]interface{}, rv.Len())
			for i := range out {
				out[i] = rv.Index(i).Interface()
			}
			return out
		}
	}
	return v
}

// Parse converts a textual value (a query parameter, a CLI flag) into a
// value of the field's type
func (f Field) Parse(s string) (interface{}, error) {
	switch f.Type {
	case Number:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return n, nil
	case Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid bool %q: %w", s, err)
		}
		return b, nil
	case Time:
		tm, ok := parseTime(s)
		if !ok {
			return nil, fmt.Errorf("invalid time %q", s)
		}
		return tm, nil
	case Array:
		if s == "" {
			return []interface{}{}, nil
		}
		parts := strings.Split(s, ",")
		out := make([]interface{}, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out, nil
	case Object:
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("invalid object %q: %w", s, err)
		}
		return m, nil
	default:
		return s, nil
	}
}
