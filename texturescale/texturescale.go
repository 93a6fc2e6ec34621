// CLAUDE:SUMMARY Derives a record's physical texture size (inches): gathers URL, no-repeat and dimension-text hypotheses, picks the one closest to the image aspect ratio.
// CLAUDE:EXPORTS Hypothesis, FromURL, FromDimensions, Hypotheses, Choose, Apply, NoRepeatDefault, ErrNoEvidence
// Package texturescale works out how large one repeat of a laminate texture
// image is in real life. texture_scale is always recomputed from evidence
// and replaces whatever was stored before.
package texturescale

import (
	"errors"
	"math"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/normalize"
	"github.com/hazyhaar/surfacekeeper/record"
)

// ErrNoEvidence is returned when pixels or hypotheses are missing.
var ErrNoEvidence = errors.New("texturescale: no evidence")

// maxInches bounds URL tokens; larger pairs are pixel sizes, not sheet sizes.
const maxInches = 240

// NoRepeatDefault is the sheet size assumed for no-repeat designs.
var NoRepeatDefault = record.Size{Width: 60, Height: 144}

// Hypothesis is one candidate physical size with its origin.
type Hypothesis struct {
	Size   record.Size
	Source string
}

// Hypothesis sources.
const (
	SourceURL        = "url"
	SourceNoRepeat   = "no_repeat"
	SourceDimensions = "dimensions"
)

var urlSizeRe = regexp.MustCompile(`(?i)(\d+)x(\d+)`)

var dimensionRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*('|′|’|"|″|”|feet|foot|ft\.?|inch(?:es)?|in\.?)?\s*[x×]\s*(\d+(?:\.\d+)?)\s*('|′|’|"|″|”|feet|foot|ft\.?|inch(?:es)?|in\.?)?`)

// FromURL reads WxH tokens from the file name of an image URL.
func FromURL(imageURL string) []Hypothesis {
	p := imageURL
	if u, err := url.Parse(imageURL); err == nil {
		p = u.Path
	}
	var out []Hypothesis
	for _, m := range urlSizeRe.FindAllStringSubmatch(path.Base(p), -1) {
		w, _ := strconv.ParseFloat(m[1], 64)
		h, _ := strconv.ParseFloat(m[2], 64)
		s := record.Size{Width: w, Height: h}
		if !s.Valid() || w > maxInches || h > maxInches {
			continue
		}
		out = append(out, Hypothesis{Size: s, Source: SourceURL})
	}
	return out
}

// FromDimensions parses dimension text such as `5' x 12'`, `60" x 144"` or
// `48 x 96 in`. Feet are converted to inches; a number without a unit takes
// the unit of the other side, inches when neither has one.
func FromDimensions(text string) []Hypothesis {
	var out []Hypothesis
	for _, m := range dimensionRe.FindAllStringSubmatch(text, -1) {
		w, err1 := strconv.ParseFloat(m[1], 64)
		h, err2 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		wu, hu := unitFactor(m[2]), unitFactor(m[4])
		if m[2] == "" {
			wu = hu
		}
		if m[4] == "" {
			hu = wu
		}
		s := record.Size{Width: w * wu, Height: h * hu}
		if s.Valid() {
			out = append(out, Hypothesis{Size: s, Source: SourceDimensions})
		}
	}
	return out
}

func unitFactor(unit string) float64 {
	switch strings.TrimSuffix(strings.ToLower(unit), ".") {
	case "'", "′", "’", "ft", "feet", "foot":
		return 12
	}
	return 1
}

// Hypotheses gathers every hypothesis a record supports, in order: image URL
// tokens, the no-repeat default, dimension hints. Duplicates are dropped.
func Hypotheses(r record.Record) []Hypothesis {
	var all []Hypothesis
	all = append(all, FromURL(r.Scalar(fields.TextureImageURL))...)
	if nr, ok := r.Bool(fields.NoRepeat); ok && nr {
		all = append(all, Hypothesis{Size: NoRepeatDefault, Source: SourceNoRepeat})
	}
	for _, hint := range normalize.Array(r[fields.TextureScaleHint]) {
		all = append(all, FromDimensions(hint)...)
	}

	out := all[:0]
	seen := make(map[record.Size]bool, len(all))
	for _, h := range all {
		if seen[h.Size] {
			continue
		}
		seen[h.Size] = true
		out = append(out, h)
	}
	return out
}

// Choose returns the hypothesis whose aspect ratio is closest to the image's,
// oriented like the image. Ties go to the earlier hypothesis.
func Choose(pixels record.Size, hyps []Hypothesis) (Hypothesis, bool) {
	if !pixels.Valid() || len(hyps) == 0 {
		return Hypothesis{}, false
	}
	target := math.Log(pixels.Ratio())
	landscape := pixels.Width >= pixels.Height

	best, bestDist := Hypothesis{}, math.Inf(1)
	for _, h := range hyps {
		if !h.Size.Valid() {
			continue
		}
		s := h.Size
		if (s.Width >= s.Height) != landscape {
			s.Width, s.Height = s.Height, s.Width
		}
		d := math.Abs(math.Log(s.Ratio()) - target)
		if d < bestDist {
			best, bestDist = Hypothesis{Size: s, Source: h.Source}, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// Apply sets texture_scale on a copy of r from the best hypothesis,
// replacing any stored value and its alias spellings. When the record has
// no pixel size or no hypothesis it returns r unchanged and ErrNoEvidence.
func Apply(r record.Record, hyps []Hypothesis) (record.Record, Hypothesis, error) {
	pixels, ok := r.Size(fields.TextureImagePixels)
	if !ok {
		return r, Hypothesis{}, ErrNoEvidence
	}
	best, ok := Choose(pixels, hyps)
	if !ok {
		return r, Hypothesis{}, ErrNoEvidence
	}
	out := r.Clone()
	for _, k := range fields.AliasesOf(fields.TextureScale) {
		delete(out, k)
	}
	out[fields.TextureScale] = best.Size
	return out, best, nil
}
