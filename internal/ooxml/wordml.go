package ooxml

import (
	"regexp"
	"strconv"
	"strings"
)

// Body returns the w:body element of a main document tree.
func Body(doc *Node) *Node {
	root := doc.Root()
	if root == nil {
		return nil
	}
	return root.Child("w:body")
}

// Paragraphs returns every w:p under root in document order, including
// paragraphs inside tables and text boxes.
func Paragraphs(root *Node) []*Node {
	return root.FindAll("w:p")
}

// Tables returns every w:tbl under root in document order.
func Tables(root *Node) []*Node {
	return root.FindAll("w:tbl")
}

// ownWalk visits the descendants of p that belong to p itself: nested
// paragraphs (text boxes) and the fallback branch of alternate content
// are not entered.
func ownWalk(p *Node, fn func(*Node) bool) {
	for _, c := range p.Children {
		c.Walk(func(x *Node) bool {
			if x.Is("w:p") || x.Is("w:txbxContent") || x.Is("mc:Fallback") {
				return false
			}
			return fn(x)
		})
	}
}

// TextNodes returns the w:t elements of paragraph p in reading order.
func TextNodes(p *Node) []*Node {
	var out []*Node
	ownWalk(p, func(x *Node) bool {
		if x.Is("w:t") {
			out = append(out, x)
			return false
		}
		return true
	})
	return out
}

// Runs returns the w:r elements of paragraph p in reading order.
func Runs(p *Node) []*Node {
	var out []*Node
	ownWalk(p, func(x *Node) bool {
		if x.Is("w:r") {
			out = append(out, x)
			return false
		}
		return true
	})
	return out
}

// ParagraphText concatenates the text of a paragraph's runs.
func ParagraphText(p *Node) string {
	var b strings.Builder
	for _, t := range TextNodes(p) {
		b.WriteString(t.CharData())
	}
	return b.String()
}

// SetText replaces the content of a w:t element. xml:space="preserve" is
// added when the value has leading or trailing whitespace.
func SetText(t *Node, s string) {
	t.RemoveChildren()
	if s != "" {
		t.AppendChild(NewText(s))
	}
	if s != strings.TrimSpace(s) {
		t.SetAttr("xml:space", "preserve")
	}
}

// ReplaceTextRange rewrites the byte range [start, end) of the text
// formed by concatenating texts. The replacement lands in the first text
// node touching the range; the other touched nodes lose their share.
func ReplaceTextRange(texts []*Node, start, end int, repl string) {
	off := 0
	placed := false
	for _, t := range texts {
		s := t.CharData()
		segStart, segEnd := off, off+len(s)
		off = segEnd
		if !placed {
			if start > segEnd || (start == segEnd && start < end) {
				continue
			}
			a := start - segStart
			b := min(end-segStart, len(s))
			SetText(t, s[:a]+repl+s[b:])
			placed = true
			continue
		}
		if segStart >= end {
			break
		}
		if b := min(end-segStart, len(s)); b > 0 {
			SetText(t, s[b:])
		}
	}
}

// NewRun builds <w:r> with a clone of rPr (if any) and one text node.
func NewRun(rPr *Node, text string) *Node {
	r := NewElement("w:r")
	if rPr != nil {
		r.AppendChild(rPr.Clone())
	}
	t := NewElement("w:t")
	SetText(t, text)
	r.AppendChild(t)
	return r
}

// NewParagraph builds <w:p> with a clone of pPr (if any) and the runs.
func NewParagraph(pPr *Node, runs ...*Node) *Node {
	p := NewElement("w:p")
	if pPr != nil {
		p.AppendChild(pPr.Clone())
	}
	for _, r := range runs {
		p.AppendChild(r)
	}
	return p
}

// EnsureFirstChild returns n's child with the given name, creating it as
// the first child when missing. Property elements (w:pPr, w:rPr, w:tcPr,
// w:trPr) must come first in their parent.
func EnsureFirstChild(n *Node, name string) *Node {
	if c := n.Child(name); c != nil {
		return c
	}
	c := NewElement(name)
	n.InsertChild(0, c)
	return c
}

// Val returns the w:val attribute of n, or "" when n is nil.
func Val(n *Node) string {
	if n == nil {
		return ""
	}
	v, _ := n.GetAttr("w:val")
	return v
}

// StyleID returns the paragraph style id (w:pPr/w:pStyle/@w:val).
func StyleID(p *Node) string {
	return Val(p.Child("w:pPr").Child("w:pStyle"))
}

var headingStyleRe = regexp.MustCompile(`(?i)^(heading|titlu|titre|überschrift|berschrift|kop|encabezado|titolo)\s*([1-9])$`)

// HeadingLevel returns the 1-based outline level of a paragraph, or 0
// when it is not a heading. The paragraph style is consulted first, then
// w:outlineLvl (0-based in the markup).
func HeadingLevel(p *Node) int {
	if l := HeadingStyleLevel(StyleID(p)); l > 0 {
		return l
	}
	if v := Val(p.Child("w:pPr").Child("w:outlineLvl")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 8 {
			return n + 1
		}
	}
	return 0
}

// HeadingStyleLevel returns the level encoded in a heading style id such
// as "Heading2", "heading 2" or "Titlu2", or 0.
func HeadingStyleLevel(styleID string) int {
	if m := headingStyleRe.FindStringSubmatch(styleID); m != nil {
		return int(m[2][0] - '0')
	}
	return 0
}
