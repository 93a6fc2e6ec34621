// CLAUDE:SUMMARY Listing page parser: one fragment per product tile, tagged with the facet filter the page was captured under.
package extract

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/record"
)

// DefaultTileSelector matches product tiles on a listing page.
const DefaultTileSelector = "a[data-sku]"

// Facet is the filter a listing page was captured under, e.g. colors=Brown.
type Facet struct {
	Field string `yaml:"field" json:"field"`
	Value string `yaml:"value" json:"value"`
}

// ListingOptions controls listing extraction.
type ListingOptions struct {
	BaseURL      string // resolves relative links and image sources
	TileSelector string // CSS selector for tiles (default: DefaultTileSelector)
	NameSelector string // optional selector for the name inside a tile
	Facet        Facet
}

var codeAttrs = []string{"data-sku", "data-code", "data-product-code"}

var imageAttrs = []string{"src", "data-src", "data-lazy-src"}

// ParseListing returns one fragment per tile. Tiles that yield neither a
// code nor a link nor a name are skipped.
func ParseListing(r io.Reader, opts ListingOptions) ([]record.Record, error) {
	if opts.TileSelector == "" {
		opts.TileSelector = DefaultTileSelector
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("extract: parse listing: %w", err)
	}

	var out []record.Record
	doc.Find(opts.TileSelector).Each(func(_ int, tile *goquery.Selection) {
		frag := parseTile(tile, opts)
		if frag.Has(fields.Code) || frag.Has(fields.ProductLink) || frag.Has(fields.Name) {
			out = append(out, frag)
		}
	})
	return out, nil
}

func parseTile(tile *goquery.Selection, opts ListingOptions) record.Record {
	frag := record.Record{}

	href, ok := tile.Attr("href")
	if !ok || goquery.NodeName(tile) != "a" {
		href = tile.Find("a[href]").First().AttrOr("href", "")
	}
	if link := resolveURL(opts.BaseURL, href); link != "" {
		frag[fields.ProductLink] = link
	}

	for _, a := range codeAttrs {
		if v := strings.TrimSpace(tile.AttrOr(a, "")); v != "" {
			frag[fields.Code] = v
			break
		}
	}

	img := tile.Find("img").First()
	for _, a := range imageAttrs {
		if v := strings.TrimSpace(img.AttrOr(a, "")); v != "" {
			frag[fields.TextureImageURL] = resolveURL(opts.BaseURL, v)
			break
		}
	}
	if px, ok := imageSize(img); ok {
		frag[fields.TextureImagePixels] = px
	}

	if name := tileName(tile, img, opts.NameSelector); name != "" {
		frag[fields.Name] = name
	}

	if f := fields.Canonicalize(strings.TrimSpace(opts.Facet.Field)); f != "" {
		if v := strings.TrimSpace(opts.Facet.Value); v != "" {
			if fields.IsArrayFacet(f) {
				frag[f] = []string{v}
			} else {
				frag[f] = v
			}
		}
	}
	return frag
}

func tileName(tile, img *goquery.Selection, nameSelector string) string {
	if nameSelector != "" {
		if s := cleanText(tile.Find(nameSelector).First().Text()); s != "" {
			return s
		}
	}
	if s := cleanText(tile.AttrOr("data-name", "")); s != "" {
		return s
	}
	if s := cleanText(tile.Text()); s != "" {
		return s
	}
	return cleanText(img.AttrOr("alt", ""))
}

func imageSize(img *goquery.Selection) (record.Size, bool) {
	w, errW := strconv.ParseFloat(strings.TrimSpace(img.AttrOr("width", "")), 64)
	h, errH := strconv.ParseFloat(strings.TrimSpace(img.AttrOr("height", "")), 64)
	s := record.Size{Width: w, Height: h}
	return s, errW == nil && errH == nil && s.Valid()
}
