package pdfform

import "strings"

// wrapLines greedily breaks text into lines no wider than maxWidth as
// measured by width. Newlines always break; a word wider than maxWidth
// is split between runes. maxWidth <= 0 disables wrapping.
func wrapLines(text string, maxWidth float64, width func(string) float64) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		if maxWidth <= 0 {
			lines = append(lines, strings.Join(words, " "))
			continue
		}
		line := ""
		for _, w := range words {
			candidate := w
			if line != "" {
				candidate = line + " " + w
			}
			if width(candidate) <= maxWidth {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
				line = ""
			}
			if width(w) <= maxWidth {
				line = w
				continue
			}
			pieces := splitWord(w, maxWidth, width)
			lines = append(lines, pieces[:len(pieces)-1]...)
			line = pieces[len(pieces)-1]
		}
		lines = append(lines, line)
	}
	return lines
}

// splitWord cuts a single word into pieces that each fit maxWidth. A
// rune wider than maxWidth on its own still gets a line.
func splitWord(w string, maxWidth float64, width func(string) float64) []string {
	var out []string
	cur := ""
	for _, r := range w {
		next := cur + string(r)
		if cur != "" && width(next) > maxWidth {
			out = append(out, cur)
			next = string(r)
		}
		cur = next
	}
	return append(out, cur)
}
