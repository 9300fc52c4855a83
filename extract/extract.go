// Package extract pulls the main readable content out of a rendered page.
//
// Strategy: prefer semantic landmarks (<article>, <main>, role="main");
// when a page has none, fall back to text-density scoring, picking the
// subtree with the best ratio of text to markup after discarding
// boilerplate (navigation, footers, sidebars) and link-heavy regions.
package extract

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Result is the extracted content of one page.
type Result struct {
	Title string
	Text  string
}

// minContentLen is the shortest text a subtree must carry to be considered
// a content candidate.
const minContentLen = 80

// Main extracts the title and main text from raw page HTML.
func Main(rawHTML string) (*Result, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	res := &Result{Title: pageTitle(doc)}

	// Landmark pass.
	if nodes := landmarks(doc); len(nodes) > 0 {
		var parts []string
		for _, n := range nodes {
			if isBoilerplate(n) {
				continue
			}
			if t := text(n); len(t) >= minContentLen {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			res.Text = strings.Join(parts, "\n\n")
			return res, nil
		}
	}

	// Density pass over the body.
	body := findTag(doc, atom.Body)
	if body == nil {
		body = doc
	}
	if best := densestNode(body); best != nil {
		res.Text = text(best)
		return res, nil
	}

	// Last resort: everything that is not boilerplate.
	res.Text = text(body)
	return res, nil
}

func pageTitle(doc *html.Node) string {
	t := findTag(doc, atom.Title)
	if t == nil {
		return ""
	}
	return strings.TrimSpace(text(t))
}

// landmarks returns semantic content containers, most specific tag first.
func landmarks(doc *html.Node) []*html.Node {
	for _, tag := range []atom.Atom{atom.Article, atom.Main} {
		if nodes := findAll(doc, func(n *html.Node) bool { return n.DataAtom == tag }); len(nodes) > 0 {
			return nodes
		}
	}
	return findAll(doc, func(n *html.Node) bool { return attr(n, "role") == "main" })
}

// boilerplateHints flag containers by class/id substring.
var boilerplateHints = []string{
	"nav", "menu", "sidebar", "footer", "header", "comment", "advert", "-ad-", "banner", "related", "share",
}

func isBoilerplate(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Nav, atom.Header, atom.Footer, atom.Aside, atom.Form:
		return true
	}
	hint := strings.ToLower(attr(n, "class") + " " + attr(n, "id"))
	for _, h := range boilerplateHints {
		if strings.Contains(hint, h) {
			return true
		}
	}
	return false
}

type candidate struct {
	node     *html.Node
	textLen  int
	density  float64
	linkFrac float64
}

// densestNode scores container subtrees and returns the best one, or nil
// when nothing carries enough text.
func densestNode(root *html.Node) *html.Node {
	var cands []candidate

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode || isBoilerplate(n) {
			return
		}
		if isContainer(n.DataAtom) {
			t := text(n)
			if len(t) >= minContentLen {
				markup := renderedLen(n)
				if markup == 0 {
					markup = 1
				}
				link := text(findLinkRegion(n))
				cands = append(cands, candidate{
					node:     n,
					textLen:  len(t),
					density:  float64(len(t)) / float64(markup),
					linkFrac: float64(len(link)) / float64(len(t)),
				})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	var best *candidate
	var bestScore float64
	for i := range cands {
		c := &cands[i]
		if c.linkFrac > 0.5 {
			continue // mostly links, probably navigation
		}
		score := c.density * lengthScale(c.textLen) * (1 - c.linkFrac)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	if best == nil {
		return nil
	}
	return best.node
}

func isContainer(a atom.Atom) bool {
	switch a {
	case atom.Div, atom.Section, atom.Article, atom.Main, atom.Td, atom.Body:
		return true
	}
	return false
}

// lengthScale rewards longer text logarithmically so a dense one-liner
// cannot beat the actual article body.
func lengthScale(n int) float64 {
	scale := 1.0
	for n > 100 {
		scale++
		n /= 2
	}
	return scale
}

// text collects visible text under n, skipping scripts, styles and
// boilerplate subtrees, with whitespace collapsed.
func text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template:
				return
			}
			if isBoilerplate(n) {
				return
			}
		}
		if n.Type == html.TextNode {
			if fields := strings.Fields(n.Data); len(fields) > 0 {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(strings.Join(fields, " "))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// findLinkRegion wraps n's <a> descendants in a synthetic node so their
// combined text can be measured with the same collector.
func findLinkRegion(n *html.Node) *html.Node {
	links := findAll(n, func(e *html.Node) bool { return e.DataAtom == atom.A })
	if len(links) == 0 {
		return nil
	}
	// Measure links directly instead of reparenting nodes.
	var sb strings.Builder
	for _, l := range links {
		sb.WriteString(text(l))
	}
	return &html.Node{Type: html.TextNode, Data: sb.String()}
}

// renderedLen approximates the markup size of a subtree: tag names,
// attributes and text, without building the HTML string.
func renderedLen(n *html.Node) int {
	total := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			total += 2*len(n.Data) + 5 // open + close tag
			for _, a := range n.Attr {
				total += len(a.Key) + len(a.Val) + 4
			}
		case html.TextNode:
			total += len(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return total
}

func findTag(root *html.Node, tag atom.Atom) *html.Node {
	nodes := findAll(root, func(n *html.Node) bool { return n.DataAtom == tag })
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func findAll(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
