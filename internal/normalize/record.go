// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Record is an optional-field accessor over one decoded JSON object. Every
// getter tolerates absent keys and mismatched value types.
type Record map[string]any

// AsRecord returns v as a Record, or nil when v is not an object.
func AsRecord(v any) Record {
	switch m := v.(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	default:
		return nil
	}
}

// Path follows nested object keys and returns the value at the end.
func (r Record) Path(keys ...string) (any, bool) {
	var cur any = map[string]any(r)
	for _, k := range keys {
		m := AsRecord(cur)
		if m == nil {
			return nil, false
		}
		v, ok := m[k]
		if !ok || v == nil {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Lookup returns the value of the first key that is present and non-empty.
func (r Record) Lookup(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && present(v) {
			return v, true
		}
	}
	return nil, false
}

// String returns the first present key as text. Numbers are formatted
// without a trailing ".0".
func (r Record) String(keys ...string) (string, bool) {
	v, ok := r.Lookup(keys...)
	if !ok {
		return "", false
	}
	s := stringify(v)
	return s, s != ""
}

// Number returns the first present key as a float. Numeric strings parse.
func (r Record) Number(keys ...string) (float64, bool) {
	v, ok := r.Lookup(keys...)
	if !ok {
		return 0, false
	}
	return number(v)
}

// Truthy reports whether the first present key holds a true-like value:
// true, a non-zero number, or a string other than "0"/"false".
func (r Record) Truthy(keys ...string) bool {
	v, ok := r.Lookup(keys...)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s != "0" && s != "false"
	default:
		if f, ok := number(v); ok {
			return f != 0
		}
		return true
	}
}

// List returns the array stored under key.
func (r Record) List(key string) []any {
	l, _ := r[key].([]any)
	return l
}

// Records returns the objects of the array stored under key, skipping
// non-object entries.
func (r Record) Records(key string) []Record {
	var out []Record
	for _, v := range r.List(key) {
		if m := AsRecord(v); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// present reports whether a value counts as supplied: not null and not an
// empty or blank string. Zero is present.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
