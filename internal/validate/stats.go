package validate

import (
	"bytes"

	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/fumiama/go-docx"
)

// stats counts paragraphs (table cells included) and tables. go-docx
// reads the archive; when it cannot, the already parsed main part is
// walked the same way.
func stats(archive []byte, main *ooxml.Node) Stats {
	doc, err := docx.Parse(bytes.NewReader(archive), int64(len(archive)))
	if err == nil && doc != nil {
		var s Stats
		for _, item := range doc.Document.Body.Items {
			switch v := item.(type) {
			case *docx.Paragraph:
				s.TotalParagraphs++
			case *docx.Table:
				countTable(v, &s)
			}
		}
		return s
	}
	return treeStats(main)
}

func countTable(t *docx.Table, s *Stats) {
	s.TotalTables++
	for _, row := range t.TableRows {
		for _, cell := range row.TableCells {
			s.TotalParagraphs += len(cell.Paragraphs)
			for _, nested := range cell.Tables {
				countTable(nested, s)
			}
		}
	}
}

func treeStats(main *ooxml.Node) Stats {
	var s Stats
	body := ooxml.Body(main)
	if body == nil {
		return s
	}
	var walk func(n *ooxml.Node)
	walk = func(n *ooxml.Node) {
		for _, c := range n.Elements() {
			switch {
			case c.Is("w:p"):
				s.TotalParagraphs++
			case c.Is("w:tbl"):
				s.TotalTables++
				for _, tr := range c.ChildrenNamed("w:tr") {
					for _, tc := range tr.ChildrenNamed("w:tc") {
						walk(tc)
					}
				}
			}
		}
	}
	walk(body)
	return s
}
