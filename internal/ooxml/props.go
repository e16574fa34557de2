package ooxml

// rPrOrder is the child sequence of w:rPr (CT_RPr). Word rejects run
// properties that are out of order.
var rPrOrder = []string{
	"rStyle", "rFonts", "b", "bCs", "i", "iCs", "caps", "smallCaps", "strike",
	"dstrike", "outline", "shadow", "emboss", "imprint", "noProof", "snapToGrid",
	"vanish", "webHidden", "color", "spacing", "w", "kern", "position", "sz",
	"szCs", "highlight", "u", "effect", "bdr", "shd", "fitText", "vertAlign",
	"rtl", "cs", "em", "lang", "eastAsianLayout", "specVanish", "oMath",
}

// pPrOrder is the child sequence of w:pPr (CT_PPr).
var pPrOrder = []string{
	"pStyle", "keepNext", "keepLines", "pageBreakBefore", "framePr",
	"widowControl", "numPr", "suppressLineNumbers", "pBdr", "shd", "tabs",
	"suppressAutoHyphens", "kinsoku", "wordWrap", "overflowPunct",
	"topLinePunct", "autoSpaceDE", "autoSpaceDN", "bidi", "adjustRightInd",
	"snapToGrid", "spacing", "ind", "contextualSpacing", "mirrorIndents",
	"suppressOverlap", "jc", "textDirection", "textAlignment",
	"textboxTightWrap", "outlineLvl", "divId", "cnfStyle", "rPr", "sectPr",
	"pPrChange",
}

// tcPrOrder is the child sequence of w:tcPr (CT_TcPr).
var tcPrOrder = []string{
	"cnfStyle", "tcW", "gridSpan", "hMerge", "vMerge", "tcBorders", "shd",
	"noWrap", "tcMar", "textDirection", "tcFitText", "vAlign", "hideMark",
}

func orderIndex(order []string, local string) int {
	for i, name := range order {
		if name == local {
			return i
		}
	}
	return len(order)
}

// placeChild returns the w:<local> child of props, inserting a new one at
// its schema position when missing.
func placeChild(props *Node, order []string, local string) *Node {
	if c := props.Child("w:" + local); c != nil {
		return c
	}
	c := NewElement("w:" + local)
	want := orderIndex(order, local)
	at := len(props.Children)
	for i, ch := range props.Children {
		if ch.Type == ElementNode && ch.Name.Space == "w" && orderIndex(order, ch.Name.Local) > want {
			at = i
			break
		}
	}
	props.InsertChild(at, c)
	return c
}

// SetRunFlag switches a toggle property such as "b" or "i" on. An
// existing element is reused and its explicit off value removed, so the
// flag is never duplicated.
func SetRunFlag(rPr *Node, local string) {
	c := placeChild(rPr, rPrOrder, local)
	c.RemoveAttr("w:val")
}

// HasRunFlag reports whether a toggle property is on.
func HasRunFlag(rPr *Node, local string) bool {
	c := rPr.Child("w:" + local)
	if c == nil {
		return false
	}
	switch Val(c) {
	case "0", "false", "off":
		return false
	}
	return true
}

// ParagraphProperty returns the w:<local> child of pPr, creating it at
// its schema position when missing.
func ParagraphProperty(pPr *Node, local string) *Node {
	return placeChild(pPr, pPrOrder, local)
}

// CellProperty returns the w:<local> child of tcPr, creating it at its
// schema position when missing.
func CellProperty(tcPr *Node, local string) *Node {
	return placeChild(tcPr, tcPrOrder, local)
}
