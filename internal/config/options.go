// Package config defines the pipeline file format, its loader and its
// validation.
package config

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Options is a free-form option bag attached to a source. Values come from
// decoded JSON or YAML, so numbers arrive as float64.
type Options map[string]any

// Any returns the raw value of key, or nil.
func (o Options) Any(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// String returns key as a string, or def when absent or not a string.
func (o Options) String(key, def string) string {
	switch v := o.Any(key).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return def
	}
}

// Bool returns key as a bool. Strings "true"/"false" are accepted.
func (o Options) Bool(key string, def bool) bool {
	switch v := o.Any(key).(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// Int returns key as an int. Fractional numbers are truncated.
func (o Options) Int(key string, def int) int {
	switch v := o.Any(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return def
		}
		return int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def
		}
		return i
	default:
		return def
	}
}

// Rune returns the first rune of a string option. "\t" and "tab" both mean
// a tab character.
func (o Options) Rune(key string, def rune) rune {
	s, ok := o.Any(key).(string)
	if !ok || s == "" {
		return def
	}
	switch s {
	case `\t`, "tab":
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return def
	}
	return r
}

// StringMap returns key as a map of strings. Non-string values are skipped.
func (o Options) StringMap(key string) map[string]string {
	out := make(map[string]string)
	switch m := o.Any(key).(type) {
	case map[string]string:
		for k, v := range m {
			out[k] = v
		}
	case map[string]any:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	}
	return out
}

// Strings returns key as a list of strings. A single string is a one-item
// list.
func (o Options) Strings(key string) []string {
	switch v := o.Any(key).(type) {
	case string:
		return []string{v}
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
