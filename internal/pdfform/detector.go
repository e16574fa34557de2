package pdfform

import (
	"bytes"
	"errors"
	"strings"

	"github.com/dgallion1/docforge/internal/pdfdoc"
	pdflib "github.com/ledongthuc/pdf"
)

// Strategy names how a PDF template gets filled.
type Strategy string

const (
	StrategyAcroForm Strategy = "acroform"
	StrategyFlat     Strategy = "flat"
)

// Detection is the result of Detect.
type Detection struct {
	Strategy       Strategy `json:"strategy"`
	Fields         []Field  `json:"fields"`
	HasTextContent bool     `json:"has_text_content"`
	PageCount      int      `json:"page_count"`
	Encrypted      bool     `json:"encrypted"`
}

// Detect classifies a PDF template: acroform when it carries at least
// one interactive field, flat otherwise. An encrypted file is reported
// as flat and encrypted rather than failing; filling it will fail.
func Detect(data []byte) (*Detection, error) {
	doc, err := pdfdoc.Open(data)
	if errors.Is(err, pdfdoc.ErrEncrypted) {
		return &Detection{Strategy: StrategyFlat, Fields: []Field{}, HasTextContent: true, Encrypted: true, PageCount: libPageCount(data)}, nil
	}
	if err != nil {
		return nil, err
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	f, err := readForm(doc, pages)
	if err != nil {
		return nil, err
	}

	det := &Detection{Strategy: StrategyFlat, Fields: []Field{}, PageCount: len(pages)}
	for _, ff := range f.fields {
		det.Fields = append(det.Fields, ff.Field)
	}
	if len(det.Fields) > 0 {
		det.Strategy = StrategyAcroForm
		det.HasTextContent = true
		return det, nil
	}
	det.HasTextContent = hasContent(data, doc, pages)
	return det, nil
}

// hasContent reports whether any page draws something. Text found by
// ledongthuc/pdf settles it; otherwise any non-empty content stream
// counts, so graphics-only and scanned pages are content too. Pages
// whose streams cannot be decoded, and files without pages, count as
// content.
func hasContent(data []byte, doc *pdfdoc.Document, pages []pdfdoc.Page) bool {
	if found, ok := libHasText(data); ok && found {
		return true
	}
	if len(pages) == 0 {
		return true
	}
	for _, p := range pages {
		content, err := doc.Contents(p)
		if err != nil || len(bytes.TrimSpace(content)) > 0 {
			return true
		}
	}
	return false
}

func libHasText(data []byte) (found, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			found, ok = false, false
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false, false
	}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return false, false
		}
		if strings.TrimSpace(text) != "" {
			return true, true
		}
	}
	return false, true
}

func libPageCount(data []byte) (n int) {
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0
	}
	return reader.NumPage()
}
