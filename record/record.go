// CLAUDE:SUMMARY ProductRecord as a parsed JSON tree keyed by canonical field names, with clone and accessor helpers.
// Package record defines the product record and the non-destructive merge
// that reconciles repeated partial scrapes of the same product.
package record

import (
	"strings"

	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/normalize"
)

// DefaultSurfaceGroup is stored on new records that carry no surface group.
const DefaultSurfaceGroup = "Laminate"

// Re-exported value types stored inside records.
type (
	Finish = normalize.Finish
	Size   = normalize.Size
)

// Record is one product (or a fragment of one) as a JSON object. Values are
// whatever encoding/json produced, or the canonical shapes written by Merge:
// []string for array facets, []Finish for finish, Size for dimensions.
type Record map[string]any

// Code returns the normalized product code, "" when absent.
func (r Record) Code() string {
	return normalize.CodeOf(r[fields.Code])
}

// Scalar returns the trimmed scalar stored under key or one of its aliases.
func (r Record) Scalar(key string) string {
	for _, k := range fields.AliasesOf(key) {
		if s, ok := normalize.Scalar(r[k]); ok {
			return s
		}
	}
	return ""
}

// Strings returns the union of the array values stored under key and all its
// aliases, deduplicated.
func (r Record) Strings(key string) []string {
	var all []string
	for _, k := range fields.AliasesOf(key) {
		all = append(all, normalize.Array(r[k])...)
	}
	return normalize.Dedup(all)
}

// Finishes returns the normalized, deduplicated finish list.
func (r Record) Finishes() []Finish {
	return normalize.DedupFinishes(normalize.Finishes(r[fields.Finish]))
}

// Size returns the dimensions stored under key or an alias.
func (r Record) Size(key string) (Size, bool) {
	for _, k := range fields.AliasesOf(key) {
		if s, ok := normalize.SizeOf(r[k]); ok {
			return s, true
		}
	}
	return Size{}, false
}

// Bool reads a boolean stored under key or an alias. Strings "true", "yes"
// and "1" count as true.
func (r Record) Bool(key string) (value, ok bool) {
	for _, k := range fields.AliasesOf(key) {
		if b, isBool := asBool(r[k]); isBool {
			return b, true
		}
	}
	return false, false
}

// Has reports whether key or one of its aliases holds a non-empty value.
func (r Record) Has(key string) bool {
	for _, k := range fields.AliasesOf(key) {
		if present(r[k]) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneValue(e)
		}
		return m
	case Record:
		return map[string]any(x.Clone())
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = cloneValue(e)
		}
		return s
	case []string:
		return append([]string(nil), x...)
	case []Finish:
		return append([]Finish(nil), x...)
	}
	return v
}

func asBool(v any) (value, ok bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(normalize.String(x)) {
		case "true", "yes", "1":
			return true, true
		case "false", "no", "0":
			return false, true
		}
	case float64:
		return x != 0, true
	}
	return false, false
}

// present reports whether v counts as a non-empty value for left-biased
// fields. A boolean is always a value, false included.
func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		_, ok := normalize.Scalar(x)
		return ok
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case []Finish:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case Size:
		return x.Valid()
	}
	return true
}

// truthy mirrors the generic "keep old if truthy" rule: nil, false, "", and 0
// are falsy.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	}
	return true
}
