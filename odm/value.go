package odm

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// idOf returns the id carried by a reference value: a string id or a
// populated *Document
func idOf(v interface{}) string {
	switch r := v.(type) {
	case string:
		return r
	case *Document:
		if r == nil {
			return ""
		}
		return r.ID()
	}
	return ""
}

// valuesEqual is the typed equality used by filters. Numbers compare by
// value, times by instant, references by id; there is no coercion between
// strings and numbers or booleans.
func valuesEqual(a, b interface{}) bool {
	if da, ok := a.(*Document); ok {
		a = idOf(da)
	}
	if db, ok := b.(*Document); ok {
		b = idOf(db)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	switch va := a.(type) {
	case string:
		if tb, ok := b.(time.Time); ok {
			ta, ok := parseTime(va)
			return ok && ta.Equal(tb)
		}
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case time.Time:
		switch vb := b.(type) {
		case time.Time:
			return va.Equal(vb)
		case string:
			tb, ok := parseTime(vb)
			return ok && va.Equal(tb)
		}
		return false
	case []interface{}:
		vb, ok := b.([]interface{})
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if !valuesEqual(va[i], vb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// kindRank orders values of different kinds: nil first, then booleans,
// numbers, strings, times and everything else
func kindRank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	case time.Time:
		return 4
	}
	if _, ok := toFloat(v); ok {
		return 2
	}
	return 5
}

// compareValues is the typed ordering used by sorts. It returns -1, 0 or 1.
func compareValues(a, b interface{}) int {
	if da, ok := a.(*Document); ok {
		a = idOf(da)
	}
	if db, ok := b.(*Document); ok {
		b = idOf(db)
	}

	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case 0:
		return 0
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 3:
		return strings.Compare(a.(string), b.(string))
	case 4:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

// sameValue is the change test used by Assign: scalars by value, slices and
// maps by identity
func sameValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Slice, reflect.Map:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Func:
		return false
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

// cloneValue deep-copies the slices and maps a JSON decoder produces
func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, el := range x {
			out[i] = cloneValue(el)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, el := range x {
			out[k] = cloneValue(el)
		}
		return out
	}
	return v
}

// truthy mirrors the values ToObject passes through untouched
func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

// stringsOf extracts the text of a searchable value
func stringsOf(v interface{}) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return []string{x}
	case []interface{}:
		var out []string
		for _, el := range x {
			out = append(out, stringsOf(el)...)
		}
		return out
	case []string:
		return x
	}
	return nil
}
