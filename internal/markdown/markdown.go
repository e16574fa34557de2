// Package markdown converts lightly marked-up narrative text into
// WordprocessingML paragraphs that reuse a template's formatting.
//
// The supported subset is what upstream writers produce: paragraphs,
// **bold**, *italic*, ***both***, "- " bullets and "1. " numbered items.
// Anything else degrades to plain paragraphs.
package markdown

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// BlockKind is the paragraph shape of a Block.
type BlockKind int

const (
	Paragraph BlockKind = iota
	Bullet
	Numbered
)

// Span is a run of uniformly formatted text. Break marks a line break.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Break  bool
}

// Block is one output paragraph.
type Block struct {
	Kind   BlockKind
	Number int // for Numbered
	Depth  int // list nesting, 0 for top level
	Spans  []Span
}

var md = goldmark.New()

// Parse splits markdown source into blocks. Empty or whitespace-only
// input yields no blocks.
func Parse(src string) []Block {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	var blocks []Block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		blocks = appendBlock(blocks, n, source, 0)
	}
	return blocks
}

func appendBlock(blocks []Block, n ast.Node, src []byte, depth int) []Block {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return appendNonEmpty(blocks, Block{Kind: Paragraph, Depth: depth, Spans: inlineSpans(node, src, false, false)})
	case *ast.Heading:
		return appendNonEmpty(blocks, Block{Kind: Paragraph, Depth: depth, Spans: inlineSpans(node, src, true, false)})
	case *ast.List:
		number := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			b := Block{Kind: Bullet, Depth: depth}
			if node.IsOrdered() {
				b.Kind = Numbered
				b.Number = number
				number++
			}
			var nested []Block
			for c := item.FirstChild(); c != nil; c = c.NextSibling() {
				if _, ok := c.(*ast.List); ok {
					nested = appendBlock(nested, c, src, depth+1)
					continue
				}
				spans := inlineSpans(c, src, false, false)
				if len(b.Spans) > 0 && len(spans) > 0 {
					b.Spans = appendSpan(b.Spans, Span{Text: " "})
				}
				for _, s := range spans {
					b.Spans = appendSpan(b.Spans, s)
				}
			}
			blocks = append(blocks, b)
			blocks = append(blocks, nested...)
		}
		return blocks
	case *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			blocks = appendBlock(blocks, c, src, depth)
		}
		return blocks
	case *ast.ThematicBreak:
		return blocks
	default:
		// Code blocks and raw HTML blocks keep their lines as literal text.
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			line := strings.TrimRight(string(seg.Value(src)), "\r\n")
			blocks = appendNonEmpty(blocks, Block{Kind: Paragraph, Depth: depth, Spans: []Span{{Text: line}}})
		}
		return blocks
	}
}

func appendNonEmpty(blocks []Block, b Block) []Block {
	for _, s := range b.Spans {
		if strings.TrimSpace(s.Text) != "" {
			return append(blocks, b)
		}
	}
	return blocks
}

func inlineSpans(n ast.Node, src []byte, bold, italic bool) []Span {
	var out []Span
	collectInline(n, src, bold, italic, &out)
	return out
}

func collectInline(n ast.Node, src []byte, bold, italic bool, out *[]Span) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			*out = appendSpan(*out, Span{Text: string(v.Segment.Value(src)), Bold: bold, Italic: italic})
			if v.HardLineBreak() {
				*out = append(*out, Span{Break: true})
			} else if v.SoftLineBreak() {
				*out = appendSpan(*out, Span{Text: " ", Bold: bold, Italic: italic})
			}
		case *ast.String:
			*out = appendSpan(*out, Span{Text: string(v.Value), Bold: bold, Italic: italic})
		case *ast.Emphasis:
			b, i := bold, italic
			if v.Level >= 2 {
				b = true
			} else {
				i = true
			}
			collectInline(v, src, b, i, out)
		case *ast.AutoLink:
			*out = appendSpan(*out, Span{Text: string(v.Label(src)), Bold: bold, Italic: italic})
		case *ast.RawHTML:
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				*out = appendSpan(*out, Span{Text: string(seg.Value(src)), Bold: bold, Italic: italic})
			}
		default:
			collectInline(c, src, bold, italic, out)
		}
	}
}

// appendSpan merges s into the previous span when formatting matches.
func appendSpan(spans []Span, s Span) []Span {
	if s.Text == "" && !s.Break {
		return spans
	}
	if n := len(spans); n > 0 && !s.Break {
		last := &spans[n-1]
		if !last.Break && last.Bold == s.Bold && last.Italic == s.Italic {
			last.Text += s.Text
			return spans
		}
	}
	return append(spans, s)
}
