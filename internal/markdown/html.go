package markdown

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var htmlTagRe = regexp.MustCompile(`(?i)</(p|div|li|ul|ol|b|strong|i|em|h[1-6])>|<br\s*/?>`)

// LooksLikeHTML reports whether a narrative value is an HTML fragment
// rather than markdown.
func LooksLikeHTML(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "<") && htmlTagRe.MatchString(s)
}

// narrativePolicy keeps the tags the converter understands and drops
// everything else, including attributes.
func narrativePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "div", "br", "b", "strong", "i", "em", "u", "span",
		"ul", "ol", "li", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote")
	return p
}

// ParseHTML sanitizes an HTML fragment and splits it into blocks.
func ParseHTML(policy *bluemonday.Policy, src string) []Block {
	if policy == nil {
		policy = narrativePolicy()
	}
	clean := policy.Sanitize(src)
	if strings.TrimSpace(clean) == "" {
		return nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(clean), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return []Block{{Kind: Paragraph, Spans: []Span{{Text: strings.TrimSpace(src)}}}}
	}

	w := &htmlWalker{}
	for _, n := range nodes {
		w.walk(n, false, false, 0)
	}
	w.flush()
	return w.blocks
}

type htmlWalker struct {
	blocks []Block
	cur    *Block
}

func (w *htmlWalker) flush() {
	if w.cur != nil {
		w.blocks = appendNonEmpty(w.blocks, *w.cur)
		w.cur = nil
	}
}

func (w *htmlWalker) start(b Block) {
	w.flush()
	w.cur = &b
}

func (w *htmlWalker) add(s Span) {
	if w.cur == nil {
		if strings.TrimSpace(s.Text) == "" && !s.Break {
			return
		}
		w.cur = &Block{Kind: Paragraph}
	}
	if len(w.cur.Spans) == 0 {
		s.Text = strings.TrimLeft(s.Text, " ")
	}
	w.cur.Spans = appendSpan(w.cur.Spans, s)
}

func (w *htmlWalker) walk(n *html.Node, bold, italic bool, depth int) {
	switch n.Type {
	case html.TextNode:
		w.add(Span{Text: collapseSpace(n.Data), Bold: bold, Italic: italic})
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.Br:
		w.add(Span{Break: true})
		return
	case atom.B, atom.Strong:
		bold = true
	case atom.I, atom.Em:
		italic = true
	case atom.P, atom.Div, atom.Blockquote:
		// A paragraph directly inside a list item continues the item.
		if w.cur == nil || len(w.cur.Spans) > 0 {
			w.start(Block{Kind: Paragraph, Depth: depth})
		}
		w.children(n, bold, italic, depth)
		w.flush()
		return
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.start(Block{Kind: Paragraph, Depth: depth})
		w.children(n, true, italic, depth)
		w.flush()
		return
	case atom.Ul, atom.Ol:
		w.flush()
		number := 1
		for li := n.FirstChild; li != nil; li = li.NextSibling {
			if li.Type != html.ElementNode || li.DataAtom != atom.Li {
				continue
			}
			b := Block{Kind: Bullet, Depth: depth}
			if n.DataAtom == atom.Ol {
				b.Kind = Numbered
				b.Number = number
				number++
			}
			w.start(b)
			w.children(li, bold, italic, depth+1)
			w.flush()
		}
		return
	}
	w.children(n, bold, italic, depth)
}

func (w *htmlWalker) children(n *html.Node, bold, italic bool, depth int) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, bold, italic, depth)
	}
}

func collapseSpace(s string) string {
	if s == "" {
		return s
	}
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if len(fields) == 0 {
		return " "
	}
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}
