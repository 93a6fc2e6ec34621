// CLAUDE:SUMMARY Detail page parser: sku, sanitized markdown description, finish labels, og:image and bold dimension hints.
package extract

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/surfacekeeper/fields"
	"github.com/hazyhaar/surfacekeeper/record"
)

// DetailOptions controls detail extraction. Empty selector lists use the
// defaults below.
type DetailOptions struct {
	URL                  string // product link attached to the fragment
	SKUSelectors         []string
	DescriptionSelectors []string
	FinishSelectors      []string
}

func (o *DetailOptions) defaults() {
	if len(o.SKUSelectors) == 0 {
		o.SKUSelectors = []string{"[itemprop=sku]", ".sku", ".product-sku"}
	}
	if len(o.DescriptionSelectors) == 0 {
		o.DescriptionSelectors = []string{"[itemprop=description]", ".product-description", ".description"}
	}
	if len(o.FinishSelectors) == 0 {
		o.FinishSelectors = []string{".finish li", ".finishes li", ".finish"}
	}
}

// dimensionHintRe picks bold text that looks like "5' x 12'" or "60 x 144 in".
var dimensionHintRe = regexp.MustCompile(`(?i)\d[\d.]*\s*\S{0,6}\s*[x×]\s*\d`)

// minDescriptionText is the shortest block the density fallback accepts.
const minDescriptionText = 40

// DetailParser holds the sanitizer and markdown converter shared by all
// detail pages.
type DetailParser struct {
	policy *bluemonday.Policy
	md     *converter.Converter
	logger *slog.Logger
}

// NewDetailParser returns a parser. A nil logger falls back to slog.Default().
func NewDetailParser(logger *slog.Logger) *DetailParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailParser{
		policy: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		logger: logger,
	}
}

// Parse returns the fragment for one detail page.
func (p *DetailParser) Parse(r io.Reader, opts DetailOptions) (record.Record, error) {
	opts.defaults()
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("extract: parse detail: %w", err)
	}

	frag := record.Record{}
	link := opts.URL
	if link == "" {
		if n := queryFirst(doc, "link[rel=canonical]"); n != nil {
			link = strings.TrimSpace(attr(n, "href"))
		}
	}
	if link != "" {
		frag[fields.ProductLink] = link
	}

	if n := queryFirst(doc, opts.SKUSelectors...); n != nil {
		sku := collectText(n)
		if sku == "" {
			sku = strings.TrimSpace(attr(n, "content"))
		}
		if sku != "" {
			frag[fields.SKU] = sku
		}
	}

	if n := queryFirst(doc, "h1"); n != nil {
		if name := collectText(n); name != "" {
			frag[fields.Name] = name
		}
	}

	if n := queryFirst(doc, "meta[property=og:image]"); n != nil {
		if img := strings.TrimSpace(attr(n, "content")); img != "" {
			frag[fields.TextureImageURL] = resolveURL(link, img)
		}
	}

	if desc := p.description(doc, opts.DescriptionSelectors, link); desc != "" {
		frag[fields.Description] = desc
	}

	var finishes []string
	for _, sel := range opts.FinishSelectors {
		for _, n := range queryAll(doc, sel) {
			if label := collectText(n); label != "" {
				finishes = append(finishes, label)
			}
		}
		if len(finishes) > 0 {
			break
		}
	}
	if len(finishes) > 0 {
		frag[fields.Finish] = finishes
	}

	if hints := boldDimensions(doc); len(hints) > 0 {
		frag[fields.TextureScaleHint] = hints
	}
	return frag, nil
}

func (p *DetailParser) description(doc *html.Node, selectors []string, link string) string {
	n := queryFirst(doc, selectors...)
	if n == nil {
		body := queryFirst(doc, "body")
		if body == nil {
			return ""
		}
		n = findDensestNode(body, minDescriptionText)
	}
	if n == nil {
		return ""
	}
	clean := p.policy.Sanitize(renderNode(n))
	text, err := p.md.ConvertString(clean, converter.WithDomain(link))
	if err != nil || strings.TrimSpace(text) == "" {
		p.logger.Debug("extract: markdown conversion fell back to text", "url", link, "error", err)
		return collectText(n)
	}
	return strings.TrimSpace(text)
}

func boldDimensions(doc *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.B || n.DataAtom == atom.Strong) {
			if text := collectText(n); dimensionHintRe.MatchString(text) {
				out = append(out, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}
