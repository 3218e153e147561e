// Package htmlutil extracts the text a user would see from parsed html.
package htmlutil

import (
	"strings"
	"unicode"

	"dlstracker-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// invisible elements never contribute text.
var invisible = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// GetText concatenates every text node under node, skipping scripts and styles.
func GetText(node *html.Node) string {
	var out strings.Builder
	writeText(node, &out)
	return out.String()
}

func writeText(node *html.Node, out *strings.Builder) {
	switch {
	case node == nil:
		return
	case node.Type == html.TextNode:
		out.WriteString(node.Data)
		return
	case node.Type == html.ElementNode && invisible[node.DataAtom]:
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(child, out)
	}
}

// dropInvisibleRunes removes zero width and control characters, the tracker pads names with them.
func dropInvisibleRunes(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

func clean(node *html.Node) string {
	return textutil.CollapseSpace(dropInvisibleRunes(GetText(node)))
}

// CleanText returns the visible text of the first node in sel with whitespace collapsed, "" when
// sel is empty.
func CleanText(sel *goquery.Selection) string {
	if sel == nil || len(sel.Nodes) == 0 {
		return ""
	}
	return clean(sel.Nodes[0])
}

// CleanTexts is CleanText for every node in sel.
func CleanTexts(sel *goquery.Selection) []string {
	if sel == nil {
		return nil
	}
	out := make([]string, len(sel.Nodes))
	for i, node := range sel.Nodes {
		out[i] = clean(node)
	}
	return out
}
