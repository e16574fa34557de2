// Package outline describes a DOCX template to the producers of
// generation input: which placeholders it holds, which tables can be
// expanded and which headings can be made conditional.
package outline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/dgallion1/docforge/internal/runmerge"
)

// Placeholder is one distinct token found in the template.
type Placeholder struct {
	Token string   `json:"token"`
	Count int      `json:"count"`
	Parts []string `json:"parts"`
}

// Table is one w:tbl, indexed the way table configs address it.
type Table struct {
	Index int `json:"index"`
	Rows  int `json:"rows"`
	// Cells per row, in row order.
	Cells  []int    `json:"cells"`
	Header []string `json:"header,omitempty"`
}

// Heading is a body heading in document order.
type Heading struct {
	Level    int      `json:"level"`
	Text     string   `json:"text"`
	Numbered bool     `json:"numbered"`
	Path     []string `json:"path,omitempty"`
}

// Outline is the result of Inspect.
type Outline struct {
	MainPart     string        `json:"main_part"`
	Placeholders []Placeholder `json:"placeholders"`
	Tables       []Table       `json:"tables"`
	Headings     []Heading     `json:"headings"`
	Sections     []*Section    `json:"sections"`
}

var numberedRe = regexp.MustCompile(`^\s*\d+(?:\.\d+)*\.?\s`)

// Inspect opens a template and lists its placeholders, tables and
// headings. Placeholders split across runs are reported whole.
func Inspect(template []byte) (*Outline, error) {
	pkg, err := ooxml.Open(template)
	if err != nil {
		return nil, err
	}
	main, err := pkg.Tree(pkg.MainPart())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", pkg.MainPart(), err)
	}

	out := &Outline{MainPart: pkg.MainPart()}
	index := make(map[string]int)
	collect := func(part string, root *ooxml.Node) {
		for _, p := range ooxml.Paragraphs(root) {
			text := ooxml.ParagraphText(p)
			if !runmerge.HasCandidate(text) {
				continue
			}
			runmerge.Paragraph(p)
			for _, tok := range runmerge.Placeholder.FindAllString(ooxml.ParagraphText(p), -1) {
				i, ok := index[tok]
				if !ok {
					i = len(out.Placeholders)
					index[tok] = i
					out.Placeholders = append(out.Placeholders, Placeholder{Token: tok})
				}
				ph := &out.Placeholders[i]
				ph.Count++
				if len(ph.Parts) == 0 || ph.Parts[len(ph.Parts)-1] != part {
					ph.Parts = append(ph.Parts, part)
				}
			}
		}
	}
	collect(pkg.MainPart(), main)
	for _, name := range pkg.HeaderFooterParts() {
		tree, err := pkg.Tree(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		collect(name, tree)
	}

	for i, tbl := range ooxml.Tables(main) {
		t := Table{Index: i}
		for r, tr := range tbl.ChildrenNamed("w:tr") {
			cells := tr.ChildrenNamed("w:tc")
			t.Rows++
			t.Cells = append(t.Cells, len(cells))
			if r == 0 {
				for _, tc := range cells {
					t.Header = append(t.Header, cellText(tc))
				}
			}
		}
		out.Tables = append(out.Tables, t)
	}

	heads := headings(template, main)
	out.Sections = buildSections(heads)
	out.Headings = heads
	if out.Placeholders == nil {
		out.Placeholders = []Placeholder{}
	}
	if out.Tables == nil {
		out.Tables = []Table{}
	}
	if out.Headings == nil {
		out.Headings = []Heading{}
	}
	return out, nil
}

func cellText(tc *ooxml.Node) string {
	var parts []string
	for _, p := range tc.ChildrenNamed("w:p") {
		if s := strings.TrimSpace(ooxml.ParagraphText(p)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}
