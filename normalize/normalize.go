// CLAUDE:SUMMARY Value normalizers: coerce raw scraped values (scalar, array, finish, size, code) into canonical in-memory shapes.
// CLAUDE:DEPENDS golang.org/x/text/unicode/norm
// Package normalize coerces raw scraped JSON values into the shapes stored in
// product records. null and missing values always normalize to "absent",
// never to the string "null".
package normalize

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Scalar returns v as a trimmed string. ok is false when v is absent, empty
// after trimming, or not a scalar.
func Scalar(v any) (s string, ok bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		s = strings.TrimSpace(x)
	case json.Number:
		s = x.String()
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		s = strconv.Itoa(x)
	case int64:
		s = strconv.FormatInt(x, 10)
	case bool:
		s = strconv.FormatBool(x)
	default:
		return "", false
	}
	return s, s != ""
}

// String is Scalar without the ok flag.
func String(v any) string {
	s, _ := Scalar(v)
	return s
}

// Array flattens v into a slice of non-empty trimmed strings. v may be a
// single scalar, a slice (nested slices are flattened) or absent. Input order
// is kept; duplicates are left for the caller to remove.
func Array(v any) []string {
	var out []string
	appendArray(&out, v)
	return out
}

func appendArray(out *[]string, v any) {
	switch x := v.(type) {
	case nil:
	case []string:
		for _, s := range x {
			if s = strings.TrimSpace(s); s != "" {
				*out = append(*out, s)
			}
		}
	case []any:
		for _, e := range x {
			appendArray(out, e)
		}
	default:
		if s, ok := Scalar(x); ok {
			*out = append(*out, s)
		}
	}
}

// Dedup removes exact duplicates from in (case-sensitive), keeping the first
// occurrence.
func Dedup(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Finish is one surface-texture option of a product: an optional "#digits"
// code and an optional display name.
type Finish struct {
	Code string `json:"code,omitempty"`
	Name string `json:"name,omitempty"`
}

// Key is the dedup key of a finish: code|lowercase(name).
func (f Finish) Key() string {
	return f.Code + "|" + strings.ToLower(f.Name)
}

// IsZero reports whether both parts are empty.
func (f Finish) IsZero() bool {
	return f.Code == "" && f.Name == ""
}

var finishLabelRe = regexp.MustCompile(`^(#\d+)\s*(.*)$`)

var finishCodeRe = regexp.MustCompile(`^#\d+$`)

// ParseFinishLabel splits a label like "#38 Fine Velvet" into
// {Code: "#38", Name: "Fine Velvet"}. A label without a leading "#digits"
// token becomes {Name: label}.
func ParseFinishLabel(label string) Finish {
	label = strings.TrimSpace(label)
	if m := finishLabelRe.FindStringSubmatch(label); m != nil {
		return Finish{Code: m[1], Name: strings.TrimSpace(m[2])}
	}
	return Finish{Name: label}
}

// Finishes coerces v into a slice of finishes. Accepted shapes: a slice of
// {code?, name?} objects or labels, a single object, a legacy map keyed by
// code or label, or a bare label string. Empty entries are dropped.
func Finishes(v any) []Finish {
	var out []Finish
	appendFinishes(&out, v)
	return out
}

func appendFinishes(out *[]Finish, v any) {
	add := func(f Finish) {
		f.Code = strings.TrimSpace(f.Code)
		f.Name = strings.TrimSpace(f.Name)
		if !f.IsZero() {
			*out = append(*out, f)
		}
	}
	switch x := v.(type) {
	case nil:
	case Finish:
		add(x)
	case []Finish:
		for _, f := range x {
			add(f)
		}
	case string:
		add(ParseFinishLabel(x))
	case []string:
		for _, s := range x {
			add(ParseFinishLabel(s))
		}
	case []any:
		for _, e := range x {
			appendFinishes(out, e)
		}
	case map[string]any:
		if _, hasCode := x["code"]; hasCode {
			add(Finish{Code: String(x["code"]), Name: String(x["name"])})
			return
		}
		if _, hasName := x["name"]; hasName {
			add(Finish{Name: String(x["name"])})
			return
		}
		// Legacy accumulation map: code -> name, or label -> anything.
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			name, isString := x[k].(string)
			switch {
			case finishCodeRe.MatchString(strings.TrimSpace(k)) && isString:
				add(Finish{Code: k, Name: name})
			case isMap(x[k]):
				appendFinishes(out, x[k])
			default:
				add(ParseFinishLabel(k))
			}
		}
	}
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// DedupFinishes removes finishes whose Key was already seen, keeping order.
func DedupFinishes(in []Finish) []Finish {
	seen := make(map[string]bool, len(in))
	out := make([]Finish, 0, len(in))
	for _, f := range in {
		k := f.Key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}

// Code uppercases raw, folds compatibility characters (the unicode ellipsis
// becomes three periods, full-width letters become ASCII) and strips all
// whitespace. It does not validate the result.
func Code(raw string) string {
	s := strings.ReplaceAll(raw, "…", "...")
	s = norm.NFKC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.ToUpper(s)
}

// CodeOf normalizes a raw JSON value as a code; non-scalars yield "".
func CodeOf(v any) string {
	return Code(String(v))
}
