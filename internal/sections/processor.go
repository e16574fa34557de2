// Package sections removes conditional heading sections from a document
// body and renumbers the headings that remain.
package sections

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docforge/internal/ooxml"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Config names a section by its heading and the condition under which it
// stays in the document. With IncludeHeading false only the body under
// the heading is removed.
type Config struct {
	SectionID      string `json:"section_id"`
	Condition      string `json:"condition"`
	IncludeHeading bool   `json:"include_heading"`
	HeadingText    string `json:"heading_text,omitempty"`
}

// Decision records why a section was kept.
type Decision struct {
	SectionID string `json:"section_id"`
	Reason    string `json:"reason"`
}

// Report summarizes a Process call.
type Report struct {
	Removed  []string   `json:"removed,omitempty"`
	Kept     []Decision `json:"kept,omitempty"`
	NotFound []string   `json:"not_found,omitempty"`
	// Headings whose numeric prefix was rewritten.
	Renumbered int `json:"renumbered"`
}

// Process evaluates every config against data, removes the sections whose
// condition is false and, when anything was removed, renumbers the
// remaining headings.
func Process(doc *ooxml.Node, configs []Config, data map[string]any) Report {
	var rep Report
	body := ooxml.Body(doc)
	if body == nil {
		return rep
	}
	fold := cases.Fold()

	for _, cfg := range configs {
		keep, err := Evaluate(cfg.Condition, data)
		if err != nil {
			rep.Kept = append(rep.Kept, Decision{SectionID: cfg.SectionID, Reason: err.Error()})
			continue
		}
		if keep {
			rep.Kept = append(rep.Kept, Decision{SectionID: cfg.SectionID, Reason: "condition true"})
			continue
		}

		target := cfg.HeadingText
		if target == "" {
			target = cfg.SectionID
		}
		heading := findHeading(body, normalize(fold, target), fold)
		if heading == nil {
			rep.NotFound = append(rep.NotFound, cfg.SectionID)
			continue
		}
		removeSection(body, heading, cfg.IncludeHeading)
		rep.Removed = append(rep.Removed, cfg.SectionID)
	}

	if len(rep.Removed) > 0 {
		rep.Renumbered = Renumber(body)
	}
	return rep
}

// numberPrefixRe matches "1. " or "2.3 " style heading numbers. A bare
// number ("2024 Budget") is part of the heading text.
var numberPrefixRe = regexp.MustCompile(`^\s*(?:(\d+(?:\.\d+)+)\.?|(\d+)\.)\s+`)

// normalize prepares heading text for comparison: NFC, case folded,
// collapsed whitespace, no numeric prefix and no trailing colon.
func normalize(fold cases.Caser, s string) string {
	s = norm.NFC.String(s)
	s = numberPrefixRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, ":")
	return fold.String(s)
}

func findHeading(body *ooxml.Node, want string, fold cases.Caser) *ooxml.Node {
	if want == "" {
		return nil
	}
	for _, p := range body.ChildrenNamed("w:p") {
		if ooxml.HeadingLevel(p) == 0 {
			continue
		}
		if normalize(fold, ooxml.ParagraphText(p)) == want {
			return p
		}
	}
	return nil
}

// removeSection deletes the blocks after heading up to the next heading
// of the same or a higher level. A paragraph that carries a section
// break loses its content but stays, and the body's own w:sectPr is
// never touched.
func removeSection(body, heading *ooxml.Node, includeHeading bool) {
	level := ooxml.HeadingLevel(heading)
	var doomed []*ooxml.Node
	for i := heading.Index() + 1; i < len(body.Children); i++ {
		n := body.Children[i]
		if n.Type != ooxml.ElementNode {
			continue
		}
		if n.Is("w:sectPr") {
			break
		}
		if n.Is("w:p") {
			if l := ooxml.HeadingLevel(n); l > 0 && l <= level {
				break
			}
		}
		doomed = append(doomed, n)
	}
	if includeHeading {
		doomed = append(doomed, heading)
	}

	for _, n := range doomed {
		if sectPr := n.Child("w:pPr").Child("w:sectPr"); sectPr != nil {
			pPr := n.Child("w:pPr")
			n.RemoveChildren()
			n.AppendChild(pPr)
			continue
		}
		n.Remove()
	}
}
