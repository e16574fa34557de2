// Package runmerge rejoins placeholder tokens that a word processor split
// across several formatting runs, so they can be replaced by plain text
// substitution.
package runmerge

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docforge/internal/ooxml"
)

// Placeholder matches the tokens a template author may write:
// {{name}}, [Label Text] and runs of five or more underscores.
var Placeholder = regexp.MustCompile(`\{\{[^{}]+\}\}|\[[^\[\]\n]+\]|_{5,}`)

// Token returns the placeholder for a field id: the id itself when it
// is already written as a placeholder, otherwise {{id}}.
func Token(id string) string {
	if id != "" && Placeholder.FindString(id) == id {
		return id
	}
	return "{{" + id + "}}"
}

// HasCandidate reports whether text may contain a placeholder.
func HasCandidate(text string) bool {
	return strings.ContainsAny(text, "{[_")
}

type segment struct {
	t          *ooxml.Node
	start, end int
}

// Paragraph rejoins every placeholder of p that spans more than one run.
// The first run touched by a placeholder receives the joined text; the
// other runs keep their properties and lose their text.
//
// ok is false when some placeholder cannot be attributed to a single run
// container (for example half of it inside a hyperlink), in which case p
// is returned unmodified.
func Paragraph(p *ooxml.Node) (merged int, ok bool) {
	work := p.Clone()
	for {
		segs, flat := layout(ooxml.TextNodes(work))
		touched := nextSplit(segs, flat)
		if touched == nil {
			break
		}
		if !mergeable(touched) {
			return 0, false
		}
		var joined strings.Builder
		for _, s := range touched {
			joined.WriteString(s.t.CharData())
		}
		ooxml.SetText(touched[0].t, joined.String())
		for _, s := range touched[1:] {
			ooxml.SetText(s.t, "")
		}
		merged++
	}
	if merged > 0 {
		p.RemoveChildren()
		for _, c := range work.Children {
			c.Parent = p
		}
		p.Children = work.Children
	}
	return merged, true
}

func layout(texts []*ooxml.Node) ([]segment, string) {
	var flat strings.Builder
	segs := make([]segment, 0, len(texts))
	for _, t := range texts {
		s := t.CharData()
		start := flat.Len()
		flat.WriteString(s)
		segs = append(segs, segment{t: t, start: start, end: flat.Len()})
	}
	return segs, flat.String()
}

// nextSplit returns the non-empty segments covered by the first
// placeholder that touches more than one of them.
func nextSplit(segs []segment, flat string) []segment {
	for _, m := range Placeholder.FindAllStringIndex(flat, -1) {
		var touched []segment
		for _, s := range segs {
			if s.end > s.start && s.start < m[1] && s.end > m[0] {
				touched = append(touched, s)
			}
		}
		if len(touched) > 1 {
			return touched
		}
	}
	return nil
}

// mergeable reports whether the runs holding the touched text nodes are
// siblings and the runs between them carry nothing but text.
func mergeable(touched []segment) bool {
	var runs []*ooxml.Node
	for _, s := range touched {
		r := s.t.Parent
		if !r.Is("w:r") {
			return false
		}
		if len(runs) == 0 || runs[len(runs)-1] != r {
			runs = append(runs, r)
		}
	}
	parent := runs[0].Parent
	for _, r := range runs[1:] {
		if r.Parent != parent {
			return false
		}
	}

	first, last := runs[0].Index(), runs[len(runs)-1].Index()
	if first > last {
		return false
	}
	for _, sib := range parent.Children[first+1 : last] {
		if !sib.Is("w:r") {
			continue
		}
		for _, c := range sib.Elements() {
			switch {
			case c.Is("w:rPr"), c.Is("w:t"), c.Is("w:lastRenderedPageBreak"):
			default:
				return false
			}
		}
	}
	return true
}
