package confluence

import (
	"fmt"
	"html"
	"strings"
	"unicode"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StorageToText flattens Confluence storage-format XHTML into readable plain text.
// Block elements become line breaks, list items get "- " bullets, link targets are
// kept in parentheses and macro bodies (CDATA) are unwrapped.
func StorageToText(storage string) (string, error) {
	nodes, err := xhtml.ParseFragment(strings.NewReader(unwrapCDATA(storage)), &xhtml.Node{Type: xhtml.ElementNode, DataAtom: atom.Div, Data: "div"})
	if err != nil {
		return "", fmt.Errorf("failed to parse storage format: %w", err)
	}

	w := &plainWriter{}
	for _, n := range nodes {
		w.walk(n, false)
	}
	return w.String(), nil
}

func unwrapCDATA(s string) string {
	const open, close = "<![CDATA[", "]]>"
	for {
		i := strings.Index(s, open)
		if i < 0 {
			return s
		}
		j := strings.Index(s[i+len(open):], close)
		if j < 0 {
			return s
		}
		j += i + len(open)
		s = s[:i] + s[i+len(open):j] + s[j+len(close):]
	}
}

type plainWriter struct {
	sb         strings.Builder
	listDepth  int
	pendingSp  bool
	atLineHead bool
	newlines   int // trailing newlines already written
}

func (w *plainWriter) walk(n *xhtml.Node, verbatim bool) {
	switch n.Type {
	case xhtml.TextNode:
		w.text(n.Data, verbatim)
	case xhtml.ElementNode:
		// The tokenizer keeps namespaced Confluence tags such as "ac:structured-macro".
		tag := strings.ToLower(strings.TrimSpace(n.Data))
		if tag == "br" {
			w.breakLine(1)
			return
		}

		block := isBlock(tag)
		if block {
			w.breakLine(1)
		}
		childVerbatim := verbatim || tag == "pre" || tag == "code" || strings.Contains(tag, "plain-text-body")

		switch tag {
		case "ul", "ol":
			w.listDepth++
			w.children(n, childVerbatim)
			w.listDepth--
			w.breakLine(1)
			return
		case "li":
			w.breakLine(1)
			if w.listDepth > 1 {
				w.sb.WriteString(strings.Repeat("  ", w.listDepth-1))
			}
			w.sb.WriteString("- ")
			w.pendingSp, w.atLineHead, w.newlines = false, false, 0
			w.children(n, childVerbatim)
			w.breakLine(1)
			return
		case "ri:url":
			w.text(attr(n, "ri:value"), verbatim)
		case "ri:page":
			w.text(attr(n, "ri:content-title"), verbatim)
		case "ri:attachment":
			w.text(attr(n, "ri:filename"), verbatim)
		}

		w.children(n, childVerbatim)

		if tag == "a" {
			if href := attr(n, "href"); href != "" {
				w.text(" ("+href+")", false)
			}
		}
		if block {
			w.breakLine(2)
		}
	}
}

func (w *plainWriter) children(n *xhtml.Node, verbatim bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, verbatim)
	}
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "header", "footer",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"pre", "blockquote",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td",
		"ac:structured-macro", "ac:rich-text-body", "ac:plain-text-body":
		return true
	}
	return false
}

func (w *plainWriter) text(s string, verbatim bool) {
	if s == "" {
		return
	}
	s = strings.ReplaceAll(html.UnescapeString(s), "\u00a0", " ")

	if verbatim {
		if w.pendingSp {
			w.sb.WriteByte(' ')
		}
		w.sb.WriteString(s)
		w.pendingSp = false
		w.newlines = len(s) - len(strings.TrimRight(s, "\n"))
		w.atLineHead = w.newlines > 0
		return
	}

	for _, r := range s {
		if unicode.IsSpace(r) {
			w.pendingSp = true
			continue
		}
		if w.pendingSp && w.sb.Len() > 0 && !w.atLineHead {
			w.sb.WriteByte(' ')
		}
		w.pendingSp, w.atLineHead, w.newlines = false, false, 0
		w.sb.WriteRune(r)
	}
}

// breakLine ensures at least n trailing newlines without stacking more.
func (w *plainWriter) breakLine(n int) {
	w.pendingSp = false
	for w.newlines < n {
		w.sb.WriteByte('\n')
		w.newlines++
	}
	w.atLineHead = true
}

func (w *plainWriter) String() string {
	lines := strings.Split(w.sb.String(), "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, l := range lines {
		l = strings.TrimRightFunc(l, unicode.IsSpace)
		if l == "" {
			blank++
			if blank > 2 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
