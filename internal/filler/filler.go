// Package filler replaces template placeholders inside a WordprocessingML
// part: narrative values become styled paragraphs, plain values become
// text.
package filler

import (
	"strings"

	"github.com/dgallion1/docforge/internal/markdown"
	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/dgallion1/docforge/internal/runmerge"
)

// Replacement is one placeholder and the value that takes its place.
// A narrative replacement swaps out the whole paragraph holding the
// placeholder.
type Replacement struct {
	Placeholder string `json:"placeholder"`
	Value       string `json:"value"`
	Narrative   bool   `json:"is_narrative"`
}

// Report describes what a Fill call did.
type Report struct {
	Replaced []string `json:"replaced"`
	Missing  []string `json:"missing"`
	// Paragraphs whose split placeholders could not be merged.
	Unmerged int `json:"unmerged"`
}

// Filler applies replacements to a part tree.
type Filler struct {
	conv *markdown.Converter
}

// New returns a Filler that converts narrative values with conv.
func New(conv *markdown.Converter) *Filler {
	if conv == nil {
		conv = markdown.NewConverter()
	}
	return &Filler{conv: conv}
}

// Fill replaces placeholders in root, which may be a main document,
// header or footer tree. Narrative replacements run first so plain
// substitution never touches freshly inserted narrative text. A
// placeholder with no match is reported as missing, not as an error.
func (f *Filler) Fill(root *ooxml.Node, reps []Replacement) Report {
	var rep Report
	for _, p := range ooxml.Paragraphs(root) {
		if !runmerge.HasCandidate(ooxml.ParagraphText(p)) {
			continue
		}
		if _, ok := runmerge.Paragraph(p); !ok {
			rep.Unmerged++
		}
	}

	found := make(map[string]bool)
	inserted := make(map[*ooxml.Node]bool)
	var plain []Replacement
	for _, r := range reps {
		if r.Placeholder == "" {
			continue
		}
		if !r.Narrative {
			plain = append(plain, r)
			continue
		}
		paras, ok := f.fillNarrative(root, r)
		if ok {
			found[r.Placeholder] = true
		}
		for _, p := range paras {
			inserted[p] = true
		}
	}
	for ph := range substitute(root, plain, inserted) {
		found[ph] = true
	}

	for _, r := range reps {
		if r.Placeholder == "" {
			continue
		}
		if found[r.Placeholder] {
			rep.Replaced = append(rep.Replaced, r.Placeholder)
		} else {
			rep.Missing = append(rep.Missing, r.Placeholder)
		}
	}
	return rep
}

// fillNarrative replaces the first paragraph containing the placeholder
// and returns the paragraphs it inserted.
func (f *Filler) fillNarrative(root *ooxml.Node, r Replacement) ([]*ooxml.Node, bool) {
	var target *ooxml.Node
	for _, p := range ooxml.Paragraphs(root) {
		if strings.Contains(ooxml.ParagraphText(p), r.Placeholder) {
			target = p
			break
		}
	}
	if target == nil {
		return nil, false
	}

	style := ExtractStyle(target, r.Placeholder)
	// A section break belongs to the last inserted paragraph only.
	var sectPr *ooxml.Node
	if style.ParagraphProperties != nil {
		if sectPr = style.ParagraphProperties.Child("w:sectPr"); sectPr != nil {
			sectPr.Remove()
		}
	}

	paras := f.conv.Convert(r.Value, style)
	if len(paras) == 0 {
		// A cell or body must keep its paragraph; blank the token instead.
		replaceInParagraph(target, r.Placeholder, "")
		return nil, true
	}
	if sectPr != nil {
		last := paras[len(paras)-1]
		ooxml.ParagraphProperty(ooxml.EnsureFirstChild(last, "w:pPr"), "sectPr").ReplaceWith(sectPr)
	}
	target.ReplaceWith(paras...)
	return paras, true
}

// substitute performs literal replacement of every plain placeholder in
// a single pass, so a value that happens to contain another placeholder
// is never substituted again. Paragraphs in skip are left alone. It
// returns the placeholders it found.
func substitute(root *ooxml.Node, reps []Replacement, skip map[*ooxml.Node]bool) map[string]bool {
	found := make(map[string]bool)
	if len(reps) == 0 {
		return found
	}
	pairs := make([]string, 0, 2*len(reps))
	for _, r := range reps {
		pairs = append(pairs, r.Placeholder, r.Value)
	}
	replacer := strings.NewReplacer(pairs...)

	for _, p := range ooxml.Paragraphs(root) {
		if skip[p] {
			continue
		}
		for _, t := range ooxml.TextNodes(p) {
			s := t.CharData()
			hit := false
			for _, r := range reps {
				if strings.Contains(s, r.Placeholder) {
					found[r.Placeholder] = true
					hit = true
				}
			}
			if hit {
				ooxml.SetText(t, replacer.Replace(s))
				expandBreaks(t)
			}
		}
	}
	return found
}

func replaceInParagraph(p *ooxml.Node, placeholder, value string) {
	for _, t := range ooxml.TextNodes(p) {
		if s := t.CharData(); strings.Contains(s, placeholder) {
			ooxml.SetText(t, strings.ReplaceAll(s, placeholder, value))
		}
	}
}

// expandBreaks turns newlines inside a text node into w:br siblings.
func expandBreaks(t *ooxml.Node) {
	s := t.CharData()
	if !strings.Contains(s, "\n") {
		return
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	ooxml.SetText(t, lines[0])
	prev := t
	for _, line := range lines[1:] {
		next := ooxml.NewElement("w:t")
		ooxml.SetText(next, line)
		prev.InsertAfter(ooxml.NewElement("w:br"), next)
		prev = next
	}
}
