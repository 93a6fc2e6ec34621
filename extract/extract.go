// CLAUDE:SUMMARY Turns saved or rendered catalog HTML into record fragments: listing tiles (goquery) and detail pages (selector walker, density fallback, sanitize, markdown).
// CLAUDE:DEPENDS github.com/PuerkitoBio/goquery, golang.org/x/net/html, github.com/microcosm-cc/bluemonday, github.com/JohannesKaufmann/html-to-markdown/v2
// Package extract parses laminate catalog pages into record fragments.
//
// Two page shapes are supported:
//   - listing: a grid of product tiles captured under one facet filter;
//     each tile yields link, name, code, image and the facet value
//   - detail:  one product page; yields sku, description (sanitized then
//     converted to markdown), finish labels and dimension hints
//
// Fragments are raw: codes are not validated here and fields that are absent
// on the page are simply not set.
package extract

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var multiSpaceRe = regexp.MustCompile(`\s+`)

// cleanText collapses whitespace and strips zero-width characters.
func cleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff', '\u00ad':
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

// resolveURL resolves ref against base. ref is returned unchanged when either
// fails to parse or base is empty.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// renderNode serialises an HTML node subtree back to a string.
func renderNode(n *html.Node) string {
	var buf bytes.Buffer
	html.Render(&buf, n)
	return buf.String()
}

// collectText joins the visible text of a subtree with single spaces.
func collectText(n *html.Node) string {
	var sb strings.Builder
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return cleanText(sb.String())
}
