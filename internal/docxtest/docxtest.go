// Package docxtest builds small in-memory DOCX packages for tests.
package docxtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"sort"
	"strings"
	"testing"
)

// NS declares the namespaces used by the fixtures.
const NS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

// DocumentXML wraps body markup into a complete main document part.
func DocumentXML(body string) string {
	return xmlHeader + `<w:document ` + NS + `><w:body>` + body +
		`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr></w:body></w:document>`
}

// P is a paragraph with one plain run per text.
func P(texts ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, t := range texts {
		b.WriteString(R(t))
	}
	b.WriteString("</w:p>")
	return b.String()
}

// R is a plain run.
func R(text string) string {
	return `<w:r><w:t xml:space="preserve">` + html.EscapeString(text) + `</w:t></w:r>`
}

// BoldR is a bold run.
func BoldR(text string) string {
	return `<w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">` + html.EscapeString(text) + `</w:t></w:r>`
}

// Heading is a paragraph styled HeadingN.
func Heading(level int, text string) string {
	return fmt.Sprintf(`<w:p><w:pPr><w:pStyle w:val="Heading%d"/></w:pPr>%s</w:p>`, level, R(text))
}

// Table builds a table with one paragraph per cell.
func Table(rows ...[]string) string {
	var b strings.Builder
	b.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/></w:tblPr><w:tblGrid>`)
	if len(rows) > 0 {
		for range rows[0] {
			b.WriteString(`<w:gridCol w:w="2000"/>`)
		}
	}
	b.WriteString(`</w:tblGrid>`)
	for _, row := range rows {
		b.WriteString("<w:tr>")
		for _, cell := range row {
			b.WriteString(`<w:tc><w:tcPr><w:tcW w:w="2000" w:type="dxa"/></w:tcPr>`)
			b.WriteString(P(cell))
			b.WriteString("</w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	return b.String()
}

type options struct {
	headers []string
	footers []string
	extra   map[string]string
}

// Option customizes Build.
type Option func(*options)

// WithHeader adds a header part containing the given inner markup.
func WithHeader(content string) Option {
	return func(o *options) { o.headers = append(o.headers, content) }
}

// WithFooter adds a footer part containing the given inner markup.
func WithFooter(content string) Option {
	return func(o *options) { o.footers = append(o.footers, content) }
}

// WithPart adds an arbitrary part.
func WithPart(name, content string) Option {
	return func(o *options) {
		if o.extra == nil {
			o.extra = make(map[string]string)
		}
		o.extra[name] = content
	}
}

// Build returns a DOCX archive whose body is the given markup.
func Build(tb testing.TB, body string, opts ...Option) []byte {
	tb.Helper()
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	var overrides, rels strings.Builder
	parts := map[string]string{"word/document.xml": DocumentXML(body)}
	for i, h := range o.headers {
		name := fmt.Sprintf("header%d.xml", i+1)
		parts["word/"+name] = xmlHeader + `<w:hdr ` + NS + `>` + h + `</w:hdr>`
		fmt.Fprintf(&overrides, `<Override PartName="/word/%s" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.header+xml"/>`, name)
		fmt.Fprintf(&rels, `<Relationship Id="rIdH%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="%s"/>`, i+1, name)
	}
	for i, f := range o.footers {
		name := fmt.Sprintf("footer%d.xml", i+1)
		parts["word/"+name] = xmlHeader + `<w:ftr ` + NS + `>` + f + `</w:ftr>`
		fmt.Fprintf(&overrides, `<Override PartName="/word/%s" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/>`, name)
		fmt.Fprintf(&rels, `<Relationship Id="rIdF%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer" Target="%s"/>`, i+1, name)
	}

	parts["[Content_Types].xml"] = xmlHeader +
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		overrides.String() + `</Types>`
	parts["_rels/.rels"] = xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
	parts["word/_rels/document.xml.rels"] = xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		rels.String() + `</Relationships>`
	for name, content := range o.extra {
		parts[name] = content
	}
	return Zip(tb, parts)
}

// Zip writes the given parts into an archive, [Content_Types].xml first.
func Zip(tb testing.TB, parts map[string]string) []byte {
	tb.Helper()
	names := make([]string, 0, len(parts))
	for name := range parts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i] == "[Content_Types].xml" {
			return true
		}
		if names[j] == "[Content_Types].xml" {
			return false
		}
		return names[i] < names[j]
	})

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			tb.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			tb.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// ReadPart extracts one part from an archive.
func ReadPart(tb testing.TB, archive []byte, name string) string {
	tb.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		tb.Fatalf("open zip: %v", err)
	}
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			tb.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		var b bytes.Buffer
		if _, err := b.ReadFrom(rc); err != nil {
			tb.Fatalf("read %s: %v", name, err)
		}
		return b.String()
	}
	tb.Fatalf("part %s not found", name)
	return ""
}
