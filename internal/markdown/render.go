package markdown

import (
	"strconv"

	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/microcosm-cc/bluemonday"
)

// StyleContext is the formatting found at a template location. Both
// fields are verbatim copies of the template's w:rPr and w:pPr and may
// be nil.
type StyleContext struct {
	RunProperties       *ooxml.Node
	ParagraphProperties *ooxml.Node
}

const (
	bulletPrefix = "• "
	indentStep   = 720 // twips per list level
	hangingWidth = 360
)

// Converter turns narrative values into paragraphs.
type Converter struct {
	policy *bluemonday.Policy
}

// NewConverter returns a Converter with the default HTML policy.
func NewConverter() *Converter {
	return &Converter{policy: narrativePolicy()}
}

// Convert renders a narrative value, markdown or HTML, as paragraphs
// carrying style. It returns no paragraphs for empty input.
func (c *Converter) Convert(value string, style StyleContext) []*ooxml.Node {
	var blocks []Block
	if LooksLikeHTML(value) {
		blocks = ParseHTML(c.policy, value)
	} else {
		blocks = Parse(value)
	}
	return Render(blocks, style)
}

// Render builds one w:p per block.
func Render(blocks []Block, style StyleContext) []*ooxml.Node {
	out := make([]*ooxml.Node, 0, len(blocks))
	for _, b := range blocks {
		p := ooxml.NewParagraph(paragraphProperties(style.ParagraphProperties, b))
		switch b.Kind {
		case Bullet:
			p.AppendChild(ooxml.NewRun(style.RunProperties, bulletPrefix))
		case Numbered:
			p.AppendChild(ooxml.NewRun(style.RunProperties, strconv.Itoa(b.Number)+". "))
		}
		for _, s := range b.Spans {
			p.AppendChild(renderSpan(style.RunProperties, s))
		}
		out = append(out, p)
	}
	return out
}

func renderSpan(base *ooxml.Node, s Span) *ooxml.Node {
	rPr := base.Clone()
	if s.Bold || s.Italic {
		if rPr == nil {
			rPr = ooxml.NewElement("w:rPr")
		}
		if s.Bold {
			ooxml.SetRunFlag(rPr, "b")
		}
		if s.Italic {
			ooxml.SetRunFlag(rPr, "i")
		}
	}
	if s.Break {
		r := ooxml.NewElement("w:r")
		if rPr != nil {
			r.AppendChild(rPr)
		}
		r.AppendChild(ooxml.NewElement("w:br"))
		return r
	}
	return ooxml.NewRun(rPr, s.Text)
}

// paragraphProperties derives a block's w:pPr from the template's. List
// items drop automatic numbering (the prefix is literal) and get a
// hanging indent one step deeper than the template paragraph.
func paragraphProperties(base *ooxml.Node, b Block) *ooxml.Node {
	if b.Kind == Paragraph {
		return base.Clone()
	}
	pPr := base.Clone()
	if pPr == nil {
		pPr = ooxml.NewElement("w:pPr")
	}
	if numPr := pPr.Child("w:numPr"); numPr != nil {
		numPr.Remove()
	}
	ind := ooxml.ParagraphProperty(pPr, "ind")
	left := 0
	for _, attr := range []string{"w:left", "w:start"} {
		if v, ok := ind.GetAttr(attr); ok {
			if n, err := strconv.Atoi(v); err == nil {
				left = n
			}
			ind.RemoveAttr(attr)
		}
	}
	ind.RemoveAttr("w:firstLine")
	ind.SetAttr("w:left", strconv.Itoa(left+indentStep*(b.Depth+1)))
	ind.SetAttr("w:hanging", strconv.Itoa(hangingWidth))
	return pPr
}
