// CLAUDE:SUMMARY Product code validation and resolution from untrustworthy candidates (stored code, URL tokens, SKU, image URL).
// CLAUDE:EXPORTS Valid, Candidate, Source, FromURL, FromImageURL, CleanSKU, ForRecord, Resolve, BestEffort, ErrUnresolved
package prodcode

import (
	"errors"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/normalize"
	"github.com/hazyhaar/surfacekeeper/record"
)

// ErrUnresolved is returned when no candidate passes validation.
var ErrUnresolved = errors.New("prodcode: no valid code")

const (
	minLen    = 3
	maxLen    = 7
	minDigits = 2
)

// Source names where a candidate code came from.
type Source string

const (
	SourceStored     Source = "stored"
	SourceProductURL Source = "product_url"
	SourceSKU        Source = "sku"
	SourceImageURL   Source = "image_url"
)

// Candidate is one possible code with its origin.
type Candidate struct {
	Source Source
	Value  string
}

var alnumRe = regexp.MustCompile(`^[A-Z0-9]+$`)

// dimensionRe matches image-size tokens like 60X120 that look like codes.
var dimensionRe = regexp.MustCompile(`^\d+X\d+$`)

var skuPrefixRe = regexp.MustCompile(`(?i)^\s*(sku|item\s*#|item|style|code)\s*[:#]?\s*`)

// Valid reports whether code is 3-7 characters of [A-Z0-9] with at least two
// digits. It does not normalize; pass normalized codes.
func Valid(code string) bool {
	if len(code) < minLen || len(code) > maxLen {
		return false
	}
	if !alnumRe.MatchString(code) {
		return false
	}
	digits := 0
	for i := 0; i < len(code); i++ {
		if code[i] >= '0' && code[i] <= '9' {
			digits++
		}
	}
	return digits >= minDigits
}

// FromURL extracts candidate tokens from a product URL: query parameter
// values in raw order first, then path segments from last to first, each
// contributing its tail after the last '-' or '_' before the whole segment.
func FromURL(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []string
	rawPath, rawQuery := raw, ""
	if u, err := url.Parse(raw); err == nil {
		rawPath, rawQuery = u.Path, u.RawQuery
	} else if i := strings.IndexByte(raw, '?'); i >= 0 {
		rawPath, rawQuery = raw[:i], raw[i+1:]
	}

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		_, val, _ := strings.Cut(pair, "=")
		if v, err := url.QueryUnescape(val); err == nil {
			val = v
		}
		if val = strings.TrimSpace(val); val != "" {
			out = append(out, val)
		}
	}

	segs := strings.Split(rawPath, "/")
	for i := len(segs) - 1; i >= 0; i-- {
		seg := trimExt(segs[i])
		if seg == "" {
			continue
		}
		if j := strings.LastIndexAny(seg, "-_"); j >= 0 && j < len(seg)-1 {
			out = append(out, seg[j+1:])
		}
		out = append(out, seg)
	}
	return out
}

// FromImageURL extracts candidate tokens from an image file name, in order,
// skipping dimension tokens such as "60x120".
func FromImageURL(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}
	base := trimExt(path.Base(p))
	tokens := strings.FieldsFunc(base, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if dimensionRe.MatchString(strings.ToUpper(tok)) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// CleanSKU strips labels like "SKU:" or "Item #" from a scraped SKU.
func CleanSKU(raw string) string {
	return strings.TrimSpace(skuPrefixRe.ReplaceAllString(raw, ""))
}

func trimExt(s string) string {
	ext := path.Ext(s)
	if ext == "" || len(ext) > 5 {
		return s
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return s
		}
	}
	return strings.TrimSuffix(s, ext)
}

// Candidates builds the ordered candidate list from the four evidence
// sources: stored code, product URL, detail SKU, image URL. Empty inputs
// contribute nothing.
func Candidates(stored, productURL, sku, imageURL string) []Candidate {
	var out []Candidate
	if s := strings.TrimSpace(stored); s != "" {
		out = append(out, Candidate{Source: SourceStored, Value: s})
	}
	for _, tok := range FromURL(productURL) {
		out = append(out, Candidate{Source: SourceProductURL, Value: tok})
	}
	if s := CleanSKU(sku); s != "" {
		out = append(out, Candidate{Source: SourceSKU, Value: s})
	}
	for _, tok := range FromImageURL(imageURL) {
		out = append(out, Candidate{Source: SourceImageURL, Value: tok})
	}
	return out
}

// ForRecord builds candidates from the fields of a record or fragment.
func ForRecord(r record.Record) []Candidate {
	return Candidates(
		normalize.String(r[fields.Code]),
		r.Scalar(fields.ProductLink),
		r.Scalar(fields.SKU),
		r.Scalar(fields.TextureImageURL),
	)
}

// Resolve returns the first candidate, in priority order, whose normalized
// value is a valid code.
func Resolve(cands []Candidate) (string, Source, error) {
	for _, c := range cands {
		code := normalize.Code(c.Value)
		if Valid(code) {
			return code, c.Source, nil
		}
	}
	return "", "", ErrUnresolved
}

// BestEffort returns the first non-empty normalized candidate, used to key a
// record whose code could not be resolved. It returns "" when every
// candidate is empty.
func BestEffort(cands []Candidate) string {
	for _, c := range cands {
		if code := normalize.Code(c.Value); code != "" {
			return code
		}
	}
	return ""
}
