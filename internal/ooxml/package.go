package ooxml

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

var (
	// ErrNotPackage means the buffer is not a readable ZIP archive.
	ErrNotPackage = errors.New("ooxml: not a zip package")
	// ErrMissingMainPart means the archive has no main document part.
	ErrMissingMainPart = errors.New("ooxml: missing main document part")
)

const (
	relOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relHeader         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/header"
	relFooter         = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/footer"

	defaultMainPart = "word/document.xml"
)

// Relationship is one entry of a .rels part.
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

type relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Relationship []Relationship `xml:"Relationship"`
}

type entry struct {
	header zip.FileHeader
	data   []byte
}

// Package is an OOXML archive held in memory. Entry order and
// compression settings are kept so that Bytes writes the parts back in
// the order they were read.
type Package struct {
	entries []*entry
	index   map[string]*entry
	main    string
}

// Open reads an OOXML package from a byte buffer.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPackage, err)
	}

	p := &Package{index: make(map[string]*entry, len(zr.File))}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrNotPackage, f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrNotPackage, f.Name, err)
		}
		e := &entry{header: f.FileHeader, data: content}
		p.entries = append(p.entries, e)
		p.index[f.Name] = e
	}

	p.main = p.resolveMainPart()
	if _, ok := p.index[p.main]; !ok {
		return nil, ErrMissingMainPart
	}
	return p, nil
}

func (p *Package) resolveMainPart() string {
	rels, err := p.Relationships("")
	if err == nil {
		for _, r := range rels {
			if r.Type == relOfficeDocument {
				return strings.TrimPrefix(r.Target, "/")
			}
		}
	}
	return defaultMainPart
}

// MainPart returns the name of the main document part.
func (p *Package) MainPart() string {
	return p.main
}

// Names lists every entry in archive order.
func (p *Package) Names() []string {
	out := make([]string, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.header.Name)
	}
	return out
}

// Part returns the bytes of a part.
func (p *Package) Part(name string) ([]byte, bool) {
	e, ok := p.index[name]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// SetPart replaces a part, or appends it when the name is new.
func (p *Package) SetPart(name string, data []byte) {
	if e, ok := p.index[name]; ok {
		e.data = data
		return
	}
	e := &entry{header: zip.FileHeader{Name: name, Method: zip.Deflate}, data: data}
	p.entries = append(p.entries, e)
	p.index[name] = e
}

// Tree parses a part into a mutable tree.
func (p *Package) Tree(name string) (*Node, error) {
	data, ok := p.Part(name)
	if !ok {
		return nil, fmt.Errorf("ooxml: part %s not found", name)
	}
	root, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("part %s: %w", name, err)
	}
	return root, nil
}

// SetTree serializes a tree back into a part.
func (p *Package) SetTree(name string, root *Node) {
	p.SetPart(name, root.Bytes())
}

// Relationships reads the .rels part belonging to partName. An empty
// partName reads the package-level relationships. A missing .rels part
// yields no relationships and no error.
func (p *Package) Relationships(partName string) ([]Relationship, error) {
	relPath := "_rels/.rels"
	if partName != "" {
		dir, base := path.Split(partName)
		relPath = dir + "_rels/" + base + ".rels"
	}
	data, ok := p.Part(relPath)
	if !ok {
		return nil, nil
	}
	var rels relationships
	if err := xml.Unmarshal(data, &rels); err != nil {
		return nil, fmt.Errorf("parse %s: %w", relPath, err)
	}
	return rels.Relationship, nil
}

// HeaderFooterParts lists the header and footer parts referenced by the
// main document, sorted by name. When the main part has no readable
// relationships, parts named like word/header1.xml are used instead.
func (p *Package) HeaderFooterParts() []string {
	seen := make(map[string]bool)
	var out []string
	rels, err := p.Relationships(p.main)
	if err == nil {
		dir := path.Dir(p.main)
		for _, r := range rels {
			if r.Type != relHeader && r.Type != relFooter {
				continue
			}
			name := resolveTarget(dir, r.Target)
			if _, ok := p.index[name]; ok && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	if len(out) == 0 {
		for _, e := range p.entries {
			name := e.header.Name
			base := path.Base(name)
			if path.Dir(name) == path.Dir(p.main) && path.Ext(name) == ".xml" &&
				(strings.HasPrefix(base, "header") || strings.HasPrefix(base, "footer")) {
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func resolveTarget(dir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(dir, target))
}

// Bytes writes the package back into a ZIP archive.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range p.entries {
		hdr := &zip.FileHeader{
			Name:     e.header.Name,
			Method:   e.header.Method,
			Modified: e.header.Modified,
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", e.header.Name, err)
		}
		if strings.HasSuffix(e.header.Name, "/") {
			continue
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", e.header.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
