// CLAUDE:SUMMARY Non-destructive record merge: left-biased scalars, array-facet union across aliases, finish union, generic fallthrough, alias back-fill.
package record

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/normalize"
)

// leftBiased fields keep the old value when it is non-empty; the new value
// only fills an absence.
var leftBiased = []string{
	fields.Name,
	fields.ProductLink,
	fields.SurfaceGroup,
	fields.Description,
	fields.NoRepeat,
	fields.TextureImageURL,
	fields.TextureImagePixels,
	fields.TextureScale,
}

var leftBiasedSet = func() map[string]bool {
	m := make(map[string]bool, len(leftBiased))
	for _, k := range leftBiased {
		m[k] = true
	}
	return m
}()

// Merge combines a persisted record with a freshly scraped fragment of the
// same product. Neither input is modified. The result never loses a field
// or array value present in old, and Merge(Merge(a, b), b) equals Merge(a, b).
func Merge(old, fresh Record) Record {
	out, _ := MergeReport(old, fresh)
	return out
}

// MergeReport is Merge that also returns, sorted, the generic keys where one
// side held an array and the other a scalar and both were coerced to arrays.
func MergeReport(old, fresh Record) (Record, []string) {
	out := old.Clone()
	if out == nil {
		out = Record{}
	}

	mergeCode(out, old, fresh)
	for _, k := range leftBiased {
		mergeLeftBiased(out, old, fresh, k)
	}
	for _, k := range fields.ArrayFacets() {
		mergeFacet(out, old, fresh, k)
	}
	mergeFinish(out, old, fresh)

	var coerced []string
	for k, nv := range fresh {
		if handled(k) || nv == nil {
			continue
		}
		ov, exists := out[k]
		if !exists || ov == nil {
			out[k] = cloneValue(nv)
			continue
		}
		if mismatched(ov, nv) {
			coerced = append(coerced, k)
		}
		out[k] = mergeGeneric(ov, nv)
	}
	sort.Strings(coerced)

	backfillAliases(out)
	return out, coerced
}

// Canonical normalizes a single record into merged shape.
func Canonical(r Record) Record {
	return Merge(nil, r)
}

func handled(key string) bool {
	if key == fields.Code || key == fields.Finish {
		return true
	}
	if fields.IsArrayFacet(key) {
		return true
	}
	return leftBiasedSet[fields.Canonicalize(key)]
}

func mergeCode(out, old, fresh Record) {
	if c := fresh.Code(); c != "" {
		out[fields.Code] = c
		return
	}
	if c := old.Code(); c != "" {
		out[fields.Code] = c
	}
}

func mergeLeftBiased(out, old, fresh Record, key string) {
	if v, ok := firstPresent(old, key); ok {
		if !present(out[key]) {
			out[key] = cloneValue(v)
		}
		return
	}
	v, ok := firstPresent(fresh, key)
	if !ok {
		return
	}
	out[key] = normalizeLeftBiased(key, v)
}

func firstPresent(r Record, key string) (any, bool) {
	for _, k := range fields.AliasesOf(key) {
		if v, ok := r[k]; ok && present(v) {
			return v, true
		}
	}
	return nil, false
}

func normalizeLeftBiased(key string, v any) any {
	switch key {
	case fields.NoRepeat:
		if b, ok := asBool(v); ok {
			return b
		}
	case fields.TextureImagePixels, fields.TextureScale:
		if s, ok := normalize.SizeOf(v); ok {
			return s
		}
	default:
		if s, ok := normalize.Scalar(v); ok {
			return s
		}
	}
	return cloneValue(v)
}

func mergeFacet(out, old, fresh Record, key string) {
	keys := fields.AliasesOf(key)
	var all []string
	seenKey := false
	for _, r := range []Record{old, fresh} {
		for _, k := range keys {
			v, ok := r[k]
			if !ok {
				continue
			}
			seenKey = true
			all = append(all, normalize.Array(v)...)
		}
	}
	if !seenKey {
		return
	}
	for _, alias := range keys[1:] {
		delete(out, alias)
	}
	union := normalize.Dedup(all)
	if union == nil {
		union = []string{}
	}
	out[key] = union
}

func mergeFinish(out, old, fresh Record) {
	ov, okOld := old[fields.Finish]
	nv, okNew := fresh[fields.Finish]
	if !okOld && !okNew {
		return
	}
	all := append(normalize.Finishes(ov), normalize.Finishes(nv)...)
	union := normalize.DedupFinishes(all)
	out[fields.Finish] = union
}

// mergeGeneric merges a field no specific rule covers. Arrays union by
// structural equality, objects shallow-merge with old keys winning, and
// scalars keep the old value when truthy. A mismatch between an array and a
// scalar coerces both sides to arrays.
func mergeGeneric(ov, nv any) any {
	oa, oArr := asSlice(ov)
	na, nArr := asSlice(nv)
	if oArr || nArr {
		if !oArr {
			oa = []any{ov}
		}
		if !nArr {
			na = []any{nv}
		}
		return unionAny(oa, na)
	}

	om, oMap := ov.(map[string]any)
	nm, nMap := nv.(map[string]any)
	if oMap && nMap {
		res := cloneValue(om).(map[string]any)
		for k, v := range nm {
			if existing, ok := res[k]; !ok || existing == nil {
				res[k] = cloneValue(v)
			}
		}
		return res
	}

	if truthy(ov) {
		return ov
	}
	return cloneValue(nv)
}

func mismatched(ov, nv any) bool {
	_, oArr := asSlice(ov)
	_, nArr := asSlice(nv)
	return oArr != nArr
}

func asSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = e
		}
		return s, true
	}
	return nil, false
}

func unionAny(a, b []any) []any {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]any, 0, len(a)+len(b))
	for _, v := range append(append([]any(nil), a...), b...) {
		if v == nil {
			continue
		}
		k := structuralKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, cloneValue(v))
	}
	return out
}

func structuralKey(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(data)
}

// backfillAliases copies an alias value into its canonical key when the
// canonical key is still absent. The alias key itself is left in place.
func backfillAliases(out Record) {
	for _, canon := range fields.WithAliases() {
		if v, ok := out[canon]; ok && v != nil {
			continue
		}
		for _, alias := range fields.AliasesOf(canon)[1:] {
			if v, ok := out[alias]; ok && v != nil {
				out[canon] = cloneValue(v)
				break
			}
		}
	}
}
