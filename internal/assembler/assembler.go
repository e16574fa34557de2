// Package assembler turns a DOCX template and the values gathered for it
// into a finished document: tables are expanded, placeholders filled,
// conditional sections removed and header/footer parts filled, in that
// order, before the result is validated.
package assembler

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dgallion1/docforge/internal/filler"
	"github.com/dgallion1/docforge/internal/markdown"
	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/dgallion1/docforge/internal/runmerge"
	"github.com/dgallion1/docforge/internal/sections"
	"github.com/dgallion1/docforge/internal/tables"
	"github.com/dgallion1/docforge/internal/validate"
)

// ErrEmptyTemplate is returned when no template bytes were supplied.
var ErrEmptyTemplate = errors.New("assembler: empty template")

// Error is a structural failure of one assembly step.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return "assembler: " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// GenerationInput is everything one document is built from. FieldValues
// are keyed by field id; a key already written as a placeholder, such as
// "[Client Name]", is used verbatim, any other key is matched as {{id}}.
type GenerationInput struct {
	Template            []byte            `json:"template"`
	FieldValues         map[string]string `json:"field_values"`
	DynamicTables       []tables.Config   `json:"dynamic_tables,omitempty"`
	ConditionalSections []sections.Config `json:"conditional_sections,omitempty"`
	HeaderFooterValues  map[string]string `json:"header_footer_values,omitempty"`
	NarrativeFields     []string          `json:"narrative_fields,omitempty"`
	ConditionData       map[string]any    `json:"condition_data,omitempty"`
	ExpectedFields      []string          `json:"expected_fields,omitempty"`
}

// PartReport is the fill report of one header or footer part.
type PartReport struct {
	Part   string        `json:"part"`
	Report filler.Report `json:"report"`
}

// Result is an assembled document with what each step did.
type Result struct {
	Document     []byte          `json:"-"`
	Tables       tables.Report   `json:"tables"`
	Body         filler.Report   `json:"body"`
	Sections     sections.Report `json:"sections"`
	HeaderFooter []PartReport    `json:"header_footer,omitempty"`
	Validation   validate.Result `json:"validation"`
}

// Options tune an Assembler.
type Options struct {
	NumberFormat tables.NumberFormat
	NoDataLabel  string
	Converter    *markdown.Converter
}

// Assembler builds documents. It holds no per-document state and may be
// shared between goroutines.
type Assembler struct {
	log    *slog.Logger
	opts   Options
	tables *tables.Generator
}

// New returns an Assembler. A nil logger discards output.
func New(log *slog.Logger, opts Options) *Assembler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.NumberFormat == (tables.NumberFormat{}) {
		opts.NumberFormat = tables.DefaultNumberFormat()
	}
	return &Assembler{
		log:    log,
		opts:   opts,
		tables: tables.New(opts.NumberFormat, opts.NoDataLabel),
	}
}

// Assemble builds the document described by in. Only a template that
// cannot be read as a package is an error; values, tables and sections
// that do not match the template are reported and skipped.
func (a *Assembler) Assemble(in GenerationInput) (*Result, error) {
	if len(in.Template) == 0 {
		return nil, &Error{Op: "open", Err: ErrEmptyTemplate}
	}
	start := time.Now()
	pkg, err := ooxml.Open(in.Template)
	if err != nil {
		return nil, &Error{Op: "open", Err: err}
	}
	main := pkg.MainPart()
	doc, err := pkg.Tree(main)
	if err != nil {
		return nil, &Error{Op: "parse " + main, Err: err}
	}

	res := &Result{}
	res.Tables = a.tables.Apply(doc, in.DynamicTables)

	fill := filler.New(a.opts.Converter)
	res.Body = fill.Fill(doc, bodyReplacements(in))

	data := in.ConditionData
	if data == nil {
		data = fieldData(in.FieldValues)
	}
	res.Sections = sections.Process(doc, in.ConditionalSections, data)
	pkg.SetTree(main, doc)

	hf := headerFooterReplacements(in)
	for _, name := range pkg.HeaderFooterParts() {
		root, err := pkg.Tree(name)
		if err != nil {
			a.log.Warn("header/footer part unreadable", "part", name, "error", err)
			continue
		}
		rep := fill.Fill(root, hf)
		if len(rep.Replaced) > 0 {
			pkg.SetTree(name, root)
		}
		res.HeaderFooter = append(res.HeaderFooter, PartReport{Part: name, Report: rep})
	}

	out, err := pkg.Bytes()
	if err != nil {
		return nil, &Error{Op: "write", Err: err}
	}
	res.Document = out
	res.Validation = validate.Validate(out, in.ExpectedFields)

	a.log.Info("document assembled",
		"tables", res.Tables.Tables,
		"rows", res.Tables.Rows,
		"replaced", len(res.Body.Replaced),
		"missing", len(res.Body.Missing),
		"sections_removed", len(res.Sections.Removed),
		"header_footer_parts", len(res.HeaderFooter),
		"valid", res.Validation.Valid,
		"warnings", len(res.Validation.Warnings),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// bodyReplacements turns field values into replacements, sorted by field
// id so a fill is reproducible.
func bodyReplacements(in GenerationInput) []filler.Replacement {
	narrative := make(map[string]bool, len(in.NarrativeFields))
	for _, id := range in.NarrativeFields {
		narrative[id] = true
	}
	ids := sortedKeys(in.FieldValues)
	reps := make([]filler.Replacement, 0, len(ids))
	for _, id := range ids {
		reps = append(reps, filler.Replacement{
			Placeholder: runmerge.Token(id),
			Value:       in.FieldValues[id],
			Narrative:   narrative[id],
		})
	}
	return reps
}

// headerFooterReplacements merges HeaderFooterValues over the plain field
// values. Narrative fields never reach headers or footers.
func headerFooterReplacements(in GenerationInput) []filler.Replacement {
	narrative := make(map[string]bool, len(in.NarrativeFields))
	for _, id := range in.NarrativeFields {
		narrative[id] = true
	}
	merged := make(map[string]string, len(in.FieldValues)+len(in.HeaderFooterValues))
	for id, v := range in.FieldValues {
		if !narrative[id] {
			merged[id] = v
		}
	}
	for id, v := range in.HeaderFooterValues {
		merged[id] = v
	}
	ids := sortedKeys(merged)
	reps := make([]filler.Replacement, 0, len(ids))
	for _, id := range ids {
		reps = append(reps, filler.Replacement{Placeholder: runmerge.Token(id), Value: merged[id]})
	}
	return reps
}

func fieldData(values map[string]string) map[string]any {
	data := make(map[string]any, len(values))
	for k, v := range values {
		data[k] = v
	}
	return data
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
