// CLAUDE:SUMMARY Run-scoped in-memory index of merged records keyed by normalized code.
package jsonindex

import (
	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/normalize"
	"github.com/hazyhaar/surfacekeeper/record"
)

// Index accumulates one run's fragments keyed by normalized code. It is not
// safe for concurrent use.
type Index struct {
	recs         map[string]record.Record
	defaultGroup string
	// defaulted holds codes whose stored surface group was filled from
	// defaultGroup by a flush of this run.
	defaulted map[string]bool
}

// NewIndex returns an empty index. Records that still carry no surface group
// when flushed get defaultGroup; "" disables the default.
func NewIndex(defaultGroup string) *Index {
	return &Index{
		recs:         make(map[string]record.Record),
		defaultGroup: defaultGroup,
		defaulted:    make(map[string]bool),
	}
}

// Put merges frag into the entry for code and returns the merged record.
// code is normalized and written into the record, overriding frag's own.
func (x *Index) Put(code string, frag record.Record) record.Record {
	code = normalize.Code(code)
	fresh := frag.Clone()
	if fresh == nil {
		fresh = record.Record{}
	}
	fresh[fields.Code] = code

	merged := record.Merge(x.recs[code], fresh)
	x.recs[code] = merged
	return merged
}

// Get returns the record stored under code.
func (x *Index) Get(code string) (record.Record, bool) {
	r, ok := x.recs[normalize.Code(code)]
	return r, ok
}

// Len returns the number of distinct codes.
func (x *Index) Len() int { return len(x.recs) }

// Records returns the indexed records sorted by code.
func (x *Index) Records() []record.Record {
	out := make([]record.Record, 0, len(x.recs))
	for _, r := range x.recs {
		out = append(out, r)
	}
	sortByCode(out)
	return out
}

// settleGroup fixes the surface group of merged, the on-disk union of the
// indexed record r. A group scraped this run replaces a default written by an
// earlier flush of the same run; a record with no group gets the default.
func (x *Index) settleGroup(r, merged record.Record) {
	if x.defaultGroup == "" {
		return
	}
	code := r.Code()
	if scraped := r.Scalar(fields.SurfaceGroup); scraped != "" {
		if x.defaulted[code] {
			for _, k := range fields.AliasesOf(fields.SurfaceGroup) {
				delete(merged, k)
			}
			merged[fields.SurfaceGroup] = scraped
			delete(x.defaulted, code)
		}
		return
	}
	if !merged.Has(fields.SurfaceGroup) {
		merged[fields.SurfaceGroup] = x.defaultGroup
		x.defaulted[code] = true
	}
}
