package pdfform

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dgallion1/docforge/internal/pdfdoc"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	appearanceFont = pdfdoc.Name("Helv")
	padding        = 2.0
	minFontSize    = 4.0
	autoFontSize   = 12.0
	lineSpacing    = 1.2
)

// metrics measures Helvetica strings with gofpdf's core font tables.
// It is not safe for concurrent use; each fill creates its own.
type metrics struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newMetrics() *metrics {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", autoFontSize)
	return &metrics{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (m *metrics) width(s string, size float64) float64 {
	m.pdf.SetFontSize(size)
	return m.pdf.GetStringWidth(m.tr(s))
}

var winAnsi = encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())

// winAnsiString encodes s for a WinAnsiEncoding font. Runes outside the
// code page become '?'.
func winAnsiString(s string) pdfdoc.String {
	b, err := winAnsi.Bytes([]byte(s))
	if err != nil {
		b = []byte(s)
	}
	return pdfdoc.String{Value: b}
}

// appearanceStyle is what a /DA string asks for.
type appearanceStyle struct {
	size  float64
	color string
}

// parseDA reads the font size and fill colour from a default
// appearance string such as "/Helv 0 Tf 0 g".
func parseDA(da string) appearanceStyle {
	st := appearanceStyle{color: "0 g"}
	toks := strings.Fields(da)
	for i, tok := range toks {
		switch tok {
		case "Tf":
			if i >= 1 {
				if v, err := strconv.ParseFloat(toks[i-1], 64); err == nil {
					st.size = v
				}
			}
		case "g", "rg", "k":
			n := map[string]int{"g": 1, "rg": 3, "k": 4}[tok]
			if i >= n {
				st.color = strings.Join(toks[i-n:i+1], " ")
			}
		}
	}
	return st
}

// helvetica is the font dictionary appearance streams refer to as /Helv.
func helvetica() pdfdoc.Dict {
	return pdfdoc.Dict{
		"Type":     pdfdoc.Name("Font"),
		"Subtype":  pdfdoc.Name("Type1"),
		"BaseFont": pdfdoc.Name("Helvetica"),
		"Encoding": pdfdoc.Name("WinAnsiEncoding"),
	}
}

// textLayout positions the lines of a text widget value.
type textLayout struct {
	size  float64
	lines []string
	xs    []float64
	y     float64
}

func layoutText(m *metrics, value string, w, h float64, st appearanceStyle, q int64, multiline bool) textLayout {
	inner := w - 2*padding
	size := st.size
	var lines []string
	if multiline {
		if size <= 0 {
			size = autoFontSize
			for size > minFontSize {
				lines = wrapLines(value, inner, func(s string) float64 { return m.width(s, size) })
				if float64(len(lines))*size*lineSpacing <= h-2*padding {
					break
				}
				size -= 0.5
			}
		}
		lines = wrapLines(value, inner, func(s string) float64 { return m.width(s, size) })
	} else {
		line := strings.Join(strings.Fields(value), " ")
		if size <= 0 {
			size = min(autoFontSize, max(minFontSize, (h-2*padding)*0.8))
			for size > minFontSize && m.width(line, size) > inner {
				size -= 0.5
			}
		}
		lines = []string{line}
	}

	out := textLayout{size: size, lines: lines}
	for _, l := range lines {
		tw := m.width(l, size)
		x := padding
		switch q {
		case 1:
			x = (w - tw) / 2
		case 2:
			x = w - padding - tw
		}
		out.xs = append(out.xs, x)
	}
	if multiline {
		out.y = h - padding - size
	} else {
		out.y = (h-size)/2 + size*0.22
	}
	return out
}

// textAppearance builds the normal appearance stream of a text or
// choice widget showing value.
func textAppearance(m *metrics, value string, rect pdfdoc.Rect, st appearanceStyle, q int64, multiline bool, font pdfdoc.Reference) pdfdoc.Stream {
	w, h := rect.Width(), rect.Height()
	lay := layoutText(m, value, w, h, st, q, multiline)

	var buf bytes.Buffer
	buf.WriteString("/Tx BMC\nq\n")
	fmt.Fprintf(&buf, "%s %s %s %s re W n\n", num(1), num(1), num(max(0, w-2)), num(max(0, h-2)))
	buf.WriteString("BT\n")
	fmt.Fprintf(&buf, "/%s %s Tf %s\n", appearanceFont, num(lay.size), st.color)
	prevX, prevY := 0.0, 0.0
	for i, line := range lay.lines {
		y := lay.y - float64(i)*lay.size*lineSpacing
		fmt.Fprintf(&buf, "%s %s Td ", num(lay.xs[i]-prevX), num(y-prevY))
		buf.Write(pdfdoc.Marshal(winAnsiString(line)))
		buf.WriteString(" Tj\n")
		prevX, prevY = lay.xs[i], y
	}
	buf.WriteString("ET\nQ\nEMC\n")

	return pdfdoc.Stream{
		Dict: pdfdoc.Dict{
			"Type":      pdfdoc.Name("XObject"),
			"Subtype":   pdfdoc.Name("Form"),
			"BBox":      pdfdoc.Array{pdfdoc.Integer(0), pdfdoc.Integer(0), pdfdoc.Real(w), pdfdoc.Real(h)},
			"Resources": pdfdoc.Dict{"Font": pdfdoc.Dict{appearanceFont: font}},
		},
		Data: buf.Bytes(),
	}
}

func num(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
