package pdfform

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dgallion1/docforge/internal/pdfdoc"
	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
	pdflib "github.com/ledongthuc/pdf"
)

// ReasonEmptyValue marks a placement with nothing to draw.
const ReasonEmptyValue = "empty value"

// DefaultOverlayFontSize applies when a placement has no font size.
const DefaultOverlayFontSize = 10.0

// Placement is text to draw on a flat page. X and Y are in PDF user
// space with the origin at the bottom left; Y is the first baseline.
// Page is 0-based.
type Placement struct {
	FieldID   string  `json:"field_id"`
	Value     string  `json:"value"`
	Page      int     `json:"page"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	FontSize  float64 `json:"font_size"`
	Multiline bool    `json:"multiline"`
	MaxWidth  float64 `json:"max_width"`
}

// Line is one drawn line of a placement.
type Line struct {
	FieldID string  `json:"field_id"`
	Page    int     `json:"page"`
	Text    string  `json:"text"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
}

// OverlayResult is the outcome of Overlay.Apply.
type OverlayResult struct {
	PDF     []byte `json:"-"`
	Drawn   int    `json:"drawn"`
	Lines   []Line `json:"lines"`
	Skipped []Skip `json:"skipped"`
}

// Overlay draws text on flat PDF pages.
type Overlay struct {
	log  *slog.Logger
	font []byte
}

// NewOverlay returns an Overlay. utf8Font, when set, is a TrueType font
// used instead of Helvetica so text outside cp1252 renders.
func NewOverlay(log *slog.Logger, utf8Font []byte) *Overlay {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Overlay{log: log, font: utf8Font}
}

// Apply redraws every page of data and paints the placements on top.
// Placements on pages that do not exist are skipped with a warning.
func (o *Overlay) Apply(data []byte, placements []Placement) (res *OverlayResult, err error) {
	boxes, err := pageBoxes(data)
	if err != nil {
		return nil, err
	}
	res = &OverlayResult{Lines: []Line{}, Skipped: []Skip{}}
	byPage := make(map[int][]Placement)
	for _, p := range placements {
		switch {
		case p.Page < 0 || p.Page >= len(boxes):
			o.log.Warn("overlay placement skipped", "field", p.FieldID, "page", p.Page, "pages", len(boxes))
			res.Skipped = append(res.Skipped, Skip{Name: p.FieldID, Reason: ReasonPageMissing})
		case strings.TrimSpace(p.Value) == "":
			res.Skipped = append(res.Skipped, Skip{Name: p.FieldID, Reason: ReasonEmptyValue})
		default:
			byPage[p.Page] = append(byPage[p.Page], p)
		}
	}

	// gofpdi reports import failures by panicking.
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &pdfdoc.Error{Op: "overlay import", Err: fmt.Errorf("%w: %v", pdfdoc.ErrMalformed, r)}
		}
	}()

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	family, tr := "Helvetica", func(s string) string { return s }
	if len(o.font) > 0 {
		pdf.AddUTF8FontFromBytes("overlay", "", o.font)
		family = "overlay"
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.SetTextColor(0, 0, 0)

	imp := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(data))
	for i, box := range boxes {
		tpl := imp.ImportPageFromStream(pdf, &rs, i+1, "/MediaBox")
		w, h := box.Width(), box.Height()
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		imp.UseImportedTemplate(pdf, tpl, 0, 0, w, h)

		for _, p := range byPage[i] {
			size := p.FontSize
			if size <= 0 {
				size = DefaultOverlayFontSize
			}
			pdf.SetFont(family, "", size)
			measure := func(s string) float64 { return pdf.GetStringWidth(tr(s)) }
			lines := []string{strings.Join(strings.Fields(p.Value), " ")}
			if p.Multiline {
				maxWidth := p.MaxWidth
				if maxWidth <= 0 {
					maxWidth = box.URX - p.X
				}
				lines = wrapLines(p.Value, maxWidth, measure)
			}
			for k, line := range lines {
				x := p.X - box.LLX
				y := box.URY - p.Y + float64(k)*size*lineSpacing
				pdf.Text(x, y, tr(line))
				res.Lines = append(res.Lines, Line{FieldID: p.FieldID, Page: i, Text: line, X: p.X, Y: p.Y - float64(k)*size*lineSpacing, Width: measure(line)})
			}
			res.Drawn++
		}
	}
	if pdf.Err() {
		return nil, fmt.Errorf("overlay: %w", pdf.Error())
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}
	res.PDF = buf.Bytes()
	o.log.Info("pdf overlay applied", "drawn", res.Drawn, "skipped", len(res.Skipped), "pages", len(boxes))
	return res, nil
}

// pageBoxes returns each page's MediaBox. ledongthuc/pdf reads the page
// tree; the engine's own reader is used when it cannot.
func pageBoxes(data []byte) ([]pdfdoc.Rect, error) {
	if boxes, ok := libPageBoxes(data); ok {
		return boxes, nil
	}
	doc, err := pdfdoc.Open(data)
	if err != nil {
		return nil, err
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	boxes := make([]pdfdoc.Rect, len(pages))
	for i, p := range pages {
		boxes[i] = p.MediaBox
	}
	return boxes, nil
}

func libPageBoxes(data []byte) (boxes []pdfdoc.Rect, ok bool) {
	defer func() {
		if recover() != nil {
			boxes, ok = nil, false
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil || reader.NumPage() == 0 {
		return nil, false
	}
	for i := 1; i <= reader.NumPage(); i++ {
		v := reader.Page(i).V
		if v.IsNull() {
			return nil, false
		}
		box := v.Key("MediaBox")
		for depth := 0; box.IsNull() && depth < 32; depth++ {
			v = v.Key("Parent")
			if v.IsNull() {
				break
			}
			box = v.Key("MediaBox")
		}
		if box.Len() != 4 {
			return nil, false
		}
		a, b, c, d := box.Index(0).Float64(), box.Index(1).Float64(), box.Index(2).Float64(), box.Index(3).Float64()
		boxes = append(boxes, pdfdoc.Rect{LLX: min(a, c), LLY: min(b, d), URX: max(a, c), URY: max(b, d)})
	}
	return boxes, true
}
