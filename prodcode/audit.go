// CLAUDE:SUMMARY Audit pass over stored records: re-derive invalid codes from URL/SKU/image evidence, merge collisions, report the rest.
package prodcode

import (
	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/record"
)

// Evidence holds detail-page fragments keyed by product link. A detail
// fragment typically carries a "sku" and sometimes a texture image URL.
type Evidence map[string]record.Record

// Repair describes one record whose code was replaced.
type Repair struct {
	OldCode     string `json:"old_code"`
	NewCode     string `json:"new_code"`
	Source      Source `json:"source"`
	ProductLink string `json:"product_link,omitempty"`
	Merged      bool   `json:"merged"`
}

// Unresolved describes a record kept under a best-effort code.
type Unresolved struct {
	Code        string `json:"code"`
	ProductLink string `json:"product_link,omitempty"`
	Reason      string `json:"reason"`
}

// Report summarizes an audit pass.
type Report struct {
	Checked    int          `json:"checked"`
	Repaired   []Repair     `json:"repaired"`
	Unresolved []Unresolved `json:"unresolved"`
}

// Clean reports whether every record ended with a valid code.
func (r Report) Clean() bool { return len(r.Unresolved) == 0 }

// Audit checks every record's code. Records with a valid code pass through.
// Invalid ones are re-resolved from their product link, detail SKU and image
// URL (the stored code is not trusted); when the re-derived code already
// belongs to another record the two are merged with the existing record as
// the old side. Records that stay unresolved are kept unchanged. The input
// slice and its records are not modified.
func Audit(records []record.Record, ev Evidence) ([]record.Record, Report) {
	var rep Report
	out := make([]record.Record, 0, len(records))
	pos := make(map[string]int, len(records))

	put := func(code string, r record.Record) bool {
		if i, ok := pos[code]; ok {
			out[i] = record.Merge(out[i], r)
			return true
		}
		pos[code] = len(out)
		out = append(out, r)
		return false
	}

	var invalid []record.Record
	for _, r := range records {
		rep.Checked++
		if code := r.Code(); Valid(code) {
			put(code, r.Clone())
			continue
		}
		invalid = append(invalid, r)
	}

	for _, r := range invalid {
		old := r.Code()
		link := r.Scalar(fields.ProductLink)
		cands := evidenceCandidates(r, ev[link])

		code, src, err := Resolve(cands)
		if err != nil {
			reason := "no valid candidate"
			if len(cands) == 0 {
				reason = "no evidence"
			}
			rep.Unresolved = append(rep.Unresolved, Unresolved{Code: old, ProductLink: link, Reason: reason})
			out = append(out, r.Clone())
			continue
		}
		fixed := r.Clone()
		fixed[fields.Code] = code
		merged := put(code, fixed)
		rep.Repaired = append(rep.Repaired, Repair{
			OldCode:     old,
			NewCode:     code,
			Source:      src,
			ProductLink: link,
			Merged:      merged,
		})
	}
	return out, rep
}

func evidenceCandidates(r, detail record.Record) []Candidate {
	link := r.Scalar(fields.ProductLink)
	sku := r.Scalar(fields.SKU)
	img := r.Scalar(fields.TextureImageURL)
	if detail != nil {
		if s := detail.Scalar(fields.SKU); s != "" {
			sku = s
		}
		if img == "" {
			img = detail.Scalar(fields.TextureImageURL)
		}
	}
	return Candidates("", link, sku, img)
}
