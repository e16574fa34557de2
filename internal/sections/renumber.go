package sections

import (
	"strconv"
	"strings"

	"github.com/dgallion1/docforge/internal/ooxml"
)

const maxLevels = 9

// counters holds one running number per outline level.
type counters [maxLevels]int

// next advances level (1-based) and resets every deeper level.
func (c *counters) next(level int) {
	c[level-1]++
	for i := level; i < maxLevels; i++ {
		c[i] = 0
	}
}

// label renders the last depth components ending at level.
func (c *counters) label(level, depth int) string {
	from := 0
	if depth < level {
		from = level - depth
	}
	parts := make([]string, 0, level-from)
	for _, n := range c[from:level] {
		parts = append(parts, strconv.Itoa(n))
	}
	return strings.Join(parts, ".")
}

// Renumber rewrites the numeric prefixes ("1. ", "2.3 ") of the body's
// headings so they count up per level again. Headings without a prefix
// are left alone and do not advance the counters. It returns the number
// of headings whose prefix changed.
func Renumber(body *ooxml.Node) int {
	var c counters
	changed := 0
	for _, p := range body.ChildrenNamed("w:p") {
		level := ooxml.HeadingLevel(p)
		if level == 0 {
			continue
		}
		if renumberHeading(p, level, &c) {
			changed++
		}
	}
	return changed
}

func renumberHeading(p *ooxml.Node, level int, c *counters) bool {
	texts := ooxml.TextNodes(p)
	var b strings.Builder
	for _, t := range texts {
		b.WriteString(t.CharData())
	}
	m := numberPrefixRe.FindStringSubmatchIndex(b.String())
	if m == nil {
		return false
	}
	start, end := m[2], m[3]
	if start < 0 {
		start, end = m[4], m[5]
	}
	c.next(level)
	old := b.String()[start:end]
	label := c.label(level, strings.Count(old, ".")+1)
	if label == old {
		return false
	}
	ooxml.ReplaceTextRange(texts, start, end, label)
	return true
}
