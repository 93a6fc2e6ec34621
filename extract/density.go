package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// findDensestNode returns the content block with the best text-to-markup
// score under root, skipping navigation and other boilerplate. Blocks whose
// text is shorter than minLen or mostly links are ignored.
func findDensestNode(root *html.Node, minLen int) *html.Node {
	var best *html.Node
	var bestScore float64

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode || isBoilerplate(n) {
			return
		}
		if isContentTag(n.DataAtom) {
			text := collectText(n)
			if len(text) >= minLen {
				markup := len(renderNode(n))
				if markup == 0 {
					markup = 1
				}
				linkDens := float64(len(collectLinkText(n))) / float64(len(text))
				if linkDens <= 0.5 {
					score := float64(len(text)) / float64(markup) * logScale(len(text)) * (1 - linkDens)
					if score > bestScore {
						best, bestScore = n, score
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return best
}

func logScale(n int) float64 {
	scale := 1.0
	for v := n; v > 100; v /= 2 {
		scale++
	}
	return scale
}

func collectLinkText(n *html.Node) string {
	var out string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if t := collectText(n); t != "" {
				out += t
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(n)
	return out
}

func isContentTag(a atom.Atom) bool {
	switch a {
	case atom.Main, atom.Article, atom.Section, atom.Div, atom.P,
		atom.Ul, atom.Ol, atom.Table, atom.Dl:
		return true
	}
	return false
}

var boilerplateMarkers = []string{
	"sidebar", "footer", "header", "nav", "menu", "breadcrumb",
	"cookie", "banner", "related", "newsletter", "modal",
}

func isBoilerplate(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Nav, atom.Footer, atom.Header, atom.Aside, atom.Form:
		return true
	}
	for _, a := range n.Attr {
		if a.Key != "class" && a.Key != "id" {
			continue
		}
		lower := strings.ToLower(a.Val)
		for _, m := range boilerplateMarkers {
			if strings.Contains(lower, m) {
				return true
			}
		}
	}
	return false
}
