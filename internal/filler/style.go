package filler

import (
	"strings"

	"github.com/dgallion1/docforge/internal/markdown"
	"github.com/dgallion1/docforge/internal/ooxml"
)

// ExtractStyle copies the formatting around placeholder in paragraph p:
// the w:rPr of the run holding it and the paragraph's w:pPr. When no run
// holds the whole placeholder, the first run with properties is used.
func ExtractStyle(p *ooxml.Node, placeholder string) markdown.StyleContext {
	style := markdown.StyleContext{
		ParagraphProperties: p.Child("w:pPr").Clone(),
	}

	var fallback *ooxml.Node
	for _, t := range ooxml.TextNodes(p) {
		r := t.Parent
		if !r.Is("w:r") {
			continue
		}
		rPr := r.Child("w:rPr")
		if fallback == nil {
			fallback = rPr
		}
		if placeholder != "" && strings.Contains(t.CharData(), placeholder) {
			style.RunProperties = rPr.Clone()
			return style
		}
	}
	style.RunProperties = fallback.Clone()
	return style
}
