// Package tables expands a template table's model row into one row per
// data tuple, with an optional totals row.
package tables

import (
	"fmt"
	"strconv"

	"github.com/dgallion1/docforge/internal/ooxml"
)

// Config selects a table and its model row by 0-based position in the
// document and supplies the rows to generate.
type Config struct {
	TableIndex    int        `json:"table_index"`
	ModelRowIndex int        `json:"model_row_index"`
	Data          [][]string `json:"data"`
	AutoTotals    bool       `json:"auto_totals"`
	TotalsColumns []int      `json:"totals_columns,omitempty"`
}

// Skip records a config that could not be applied.
type Skip struct {
	TableIndex    int    `json:"table_index"`
	ModelRowIndex int    `json:"model_row_index"`
	Reason        string `json:"reason"`
}

// Report summarizes an Apply call.
type Report struct {
	Tables  int    `json:"tables"`
	Rows    int    `json:"rows"`
	Skipped []Skip `json:"skipped,omitempty"`
}

const (
	totalLabel         = "TOTAL"
	defaultNoDataLabel = "No data"
)

// Generator applies table configs.
type Generator struct {
	format      NumberFormat
	noDataLabel string
}

// New returns a Generator. An empty label falls back to "No data".
func New(format NumberFormat, noDataLabel string) *Generator {
	if noDataLabel == "" {
		noDataLabel = defaultNoDataLabel
	}
	return &Generator{format: format.withDefaults(), noDataLabel: noDataLabel}
}

// Apply expands every config against doc. Table and row positions are
// resolved once, before any row is generated, so one config never shifts
// the indices seen by the next. A model row can be expanded only once.
func (g *Generator) Apply(doc *ooxml.Node, configs []Config) Report {
	var rep Report
	tbls := ooxml.Tables(doc)
	rows := make([][]*ooxml.Node, len(tbls))
	for i, tbl := range tbls {
		rows[i] = tbl.ChildrenNamed("w:tr")
	}
	used := make(map[*ooxml.Node]bool)
	for _, cfg := range configs {
		if cfg.TableIndex < 0 || cfg.TableIndex >= len(tbls) {
			rep.Skipped = append(rep.Skipped, skip(cfg, fmt.Sprintf("table index out of range (%d tables)", len(tbls))))
			continue
		}
		tblRows := rows[cfg.TableIndex]
		if cfg.ModelRowIndex < 0 || cfg.ModelRowIndex >= len(tblRows) {
			rep.Skipped = append(rep.Skipped, skip(cfg, fmt.Sprintf("model row index out of range (%d rows)", len(tblRows))))
			continue
		}
		model := tblRows[cfg.ModelRowIndex]
		if used[model] {
			rep.Skipped = append(rep.Skipped, skip(cfg, "model row already expanded"))
			continue
		}
		used[model] = true
		generated := g.expand(tbls[cfg.TableIndex], model, cfg)
		model.ReplaceWith(generated...)
		rep.Tables++
		rep.Rows += len(generated)
	}
	return rep
}

func skip(cfg Config, reason string) Skip {
	return Skip{TableIndex: cfg.TableIndex, ModelRowIndex: cfg.ModelRowIndex, Reason: reason}
}

func (g *Generator) expand(tbl, model *ooxml.Node, cfg Config) []*ooxml.Node {
	if len(cfg.Data) == 0 {
		return []*ooxml.Node{g.noDataRow(tbl, model)}
	}
	out := make([]*ooxml.Node, 0, len(cfg.Data)+1)
	for _, tuple := range cfg.Data {
		row := cloneRow(model)
		fillRow(row, tuple)
		out = append(out, row)
	}
	if cfg.AutoTotals && len(cfg.TotalsColumns) > 0 {
		out = append(out, g.totalsRow(model, cfg))
	}
	return out
}

// cloneRow copies the model row. A repeated header flag is dropped so
// data rows do not repeat on every page.
func cloneRow(model *ooxml.Node) *ooxml.Node {
	row := model.Clone()
	if hdr := row.Child("w:trPr").Child("w:tblHeader"); hdr != nil {
		hdr.Remove()
	}
	return row
}

func fillRow(row *ooxml.Node, values []string) {
	for i, tc := range row.ChildrenNamed("w:tc") {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		setCellText(tc, v)
	}
}

// setCellText puts s in the cell's first text node and blanks the rest.
// A cell without text gets a run in its first paragraph, formatted like
// the paragraph mark.
func setCellText(tc *ooxml.Node, s string) *ooxml.Node {
	var first *ooxml.Node
	for _, p := range tc.ChildrenNamed("w:p") {
		for _, t := range ooxml.TextNodes(p) {
			if first == nil {
				first = t
				ooxml.SetText(t, s)
				continue
			}
			ooxml.SetText(t, "")
		}
	}
	if first != nil {
		return first.Parent
	}
	p := tc.Child("w:p")
	if p == nil {
		p = ooxml.NewElement("w:p")
		tc.AppendChild(p)
	}
	r := ooxml.NewRun(p.Child("w:pPr").Child("w:rPr"), s)
	p.AppendChild(r)
	return r
}

// noDataRow is a single cell spanning the whole grid with an italic
// label.
func (g *Generator) noDataRow(tbl, model *ooxml.Node) *ooxml.Node {
	row := cloneRow(model)
	cells := row.ChildrenNamed("w:tc")
	if len(cells) == 0 {
		tc := ooxml.NewElement("w:tc")
		tc.AppendChild(ooxml.NewElement("w:p"))
		row.AppendChild(tc)
		cells = []*ooxml.Node{tc}
	}

	span, width, dxa := 0, 0, true
	for _, tc := range cells {
		tcPr := tc.Child("w:tcPr")
		n, err := strconv.Atoi(ooxml.Val(tcPr.Child("w:gridSpan")))
		if err != nil || n < 1 {
			n = 1
		}
		span += n
		tcW := tcPr.Child("w:tcW")
		w, err := strconv.Atoi(attr(tcW, "w:w"))
		if err != nil || attr(tcW, "w:type") != "dxa" {
			dxa = false
		}
		width += w
	}
	if cols := len(tbl.Child("w:tblGrid").ChildrenNamed("w:gridCol")); cols > span {
		span = cols
	}

	first := cells[0]
	for _, tc := range cells[1:] {
		tc.Remove()
	}
	tcPr := ooxml.EnsureFirstChild(first, "w:tcPr")
	for _, merge := range []string{"w:hMerge", "w:vMerge"} {
		if c := tcPr.Child(merge); c != nil {
			c.Remove()
		}
	}
	if span > 1 {
		ooxml.CellProperty(tcPr, "gridSpan").SetAttr("w:val", strconv.Itoa(span))
	}
	if dxa && width > 0 {
		tcW := ooxml.CellProperty(tcPr, "tcW")
		tcW.SetAttr("w:w", strconv.Itoa(width))
		tcW.SetAttr("w:type", "dxa")
	}

	r := setCellText(first, g.noDataLabel)
	ooxml.SetRunFlag(ooxml.EnsureFirstChild(r, "w:rPr"), "i")
	return row
}

// totalsRow sums the configured columns over cfg.Data.
func (g *Generator) totalsRow(model *ooxml.Node, cfg Config) *ooxml.Node {
	sums := make(map[int]float64, len(cfg.TotalsColumns))
	for _, col := range cfg.TotalsColumns {
		if col < 0 {
			continue
		}
		var sum float64
		for _, tuple := range cfg.Data {
			if col >= len(tuple) {
				continue
			}
			if v, ok := g.format.Parse(tuple[col]); ok {
				sum += v
			}
		}
		sums[col] = sum
	}

	width := len(model.ChildrenNamed("w:tc"))
	values := make([]string, width)
	for col, sum := range sums {
		if col < width {
			values[col] = g.format.Format(sum)
		}
	}
	if width > 0 {
		values[0] = totalLabel
	}

	row := cloneRow(model)
	fillRow(row, values)
	for _, r := range row.FindAll("w:r") {
		ooxml.SetRunFlag(ooxml.EnsureFirstChild(r, "w:rPr"), "b")
	}
	return row
}

func attr(n *ooxml.Node, name string) string {
	v, _ := n.GetAttr(name)
	return v
}
