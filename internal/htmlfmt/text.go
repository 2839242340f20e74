package htmlfmt

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// PlainText renders HTML as readable text for clients that do not show
// markup. Links render as "text [href]" unless the href is the text itself.
func PlainText(s string) string {
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return strings.TrimSpace(anyTagRe.ReplaceAllString(s, ""))
	}

	var b strings.Builder
	for _, n := range nodes {
		writeText(&b, n)
	}
	out := blankLinesRe.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(b, c)
		}
		return
	}

	switch n.DataAtom {
	case atom.Br:
		b.WriteString("\n")
		return
	case atom.Script, atom.Style, atom.Head:
		return
	case atom.Li:
		b.WriteString("\n * ")
	case atom.A:
		var inner strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(&inner, c)
		}
		text := inner.String()
		b.WriteString(text)
		if href := attr(n, "href"); href != "" && !sameLink(text, href) {
			b.WriteString(" [" + href + "]")
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}

	switch n.DataAtom {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Ul, atom.Ol, atom.Table, atom.Tr, atom.Blockquote, atom.Pre:
		b.WriteString("\n\n")
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func sameLink(text, href string) bool {
	text = strings.TrimSpace(text)
	return text == href || "mailto:"+text == href
}
