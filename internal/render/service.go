// Package render is the request-scoped entry point to the engine used by
// the HTTP server and the CLI. It sniffs formats, bounds concurrent
// renders, tags each render with an id and keeps latency statistics.
package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/dgallion1/docforge/internal/assembler"
	"github.com/dgallion1/docforge/internal/outline"
	"github.com/dgallion1/docforge/internal/pdfdoc"
	"github.com/dgallion1/docforge/internal/pdfform"
	"github.com/dgallion1/docforge/internal/validate"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBusy means no render slot became free before the context ended.
	ErrBusy = errors.New("render: too many concurrent renders")
	// ErrUnsupportedFormat means the template is not of the expected kind.
	ErrUnsupportedFormat = errors.New("render: unsupported template format")
)

// Format is a sniffed template format.
type Format string

const (
	FormatDOCX    Format = "docx"
	FormatPDF     Format = "pdf"
	FormatUnknown Format = "unknown"
)

// Sniff classifies data by its leading bytes.
func Sniff(data []byte) Format {
	head := data[:min(len(data), 1024)]
	switch {
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return FormatDOCX
	case bytes.Contains(head, []byte("%PDF-")):
		return FormatPDF
	}
	return FormatUnknown
}

// Operations recorded in Stats.
const (
	OpDocx      = "docx"
	OpPDFForm   = "pdf_acroform"
	OpPDFFlat   = "pdf_overlay"
	OpInspect   = "inspect"
	OpValidate  = "validate"
	opDocxBatch = "docx_batch"
	// opPDF records PDF renders that failed before a strategy was known.
	opPDF = "pdf"
)

// Options configure a Service.
type Options struct {
	MaxConcurrent int
	BatchLimit    int
	StatsWindow   time.Duration
	Assembler     assembler.Options
	// OverlayFont is an optional TrueType font for flat PDF overlays.
	OverlayFont []byte
}

// Service renders documents. It is safe for concurrent use.
type Service struct {
	log     *slog.Logger
	asm     *assembler.Assembler
	filler  *pdfform.Filler
	overlay *pdfform.Overlay
	sem     chan struct{}
	batch   int
	stats   *Stats
}

// New returns a Service. A nil logger discards output.
func New(log *slog.Logger, opts Options) *Service {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 8
	}
	if opts.BatchLimit <= 0 || opts.BatchLimit > opts.MaxConcurrent {
		opts.BatchLimit = opts.MaxConcurrent
	}
	return &Service{
		log:     log,
		asm:     assembler.New(log, opts.Assembler),
		filler:  pdfform.NewFiller(log),
		overlay: pdfform.NewOverlay(log, opts.OverlayFont),
		sem:     make(chan struct{}, opts.MaxConcurrent),
		batch:   opts.BatchLimit,
		stats:   NewStats(opts.StatsWindow),
	}
}

// Stats returns the latency snapshot.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

func (s *Service) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrBusy, ctx.Err())
	}
}

func (s *Service) release() { <-s.sem }

// TemplateHash is a short content hash used to correlate logs.
func TemplateHash(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}

// run executes fn in a render slot, logs and records the outcome. The
// result is discarded when ctx ended while fn ran.
func (s *Service) run(ctx context.Context, op string, template []byte, fn func(log *slog.Logger) error) (string, error) {
	return s.runAs(ctx, op, template, func(log *slog.Logger) (string, error) {
		return op, fn(log)
	})
}

// runAs is run for work that learns its operation name inside the slot.
// fn returns the name the outcome is recorded under; an empty name keeps
// op.
func (s *Service) runAs(ctx context.Context, op string, template []byte, fn func(log *slog.Logger) (string, error)) (string, error) {
	id := uuid.NewString()
	log := s.log.With("render_id", id, "template_hash", TemplateHash(template))
	if err := s.acquire(ctx); err != nil {
		log.Warn("render rejected", "op", op, "error", err)
		s.stats.Fail(op)
		return id, err
	}
	defer s.release()

	start := time.Now()
	resolved, err := fn(log.With("op", op))
	if resolved != "" {
		op = resolved
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		log.Error("render failed", "op", op, "error", err, "duration_ms", time.Since(start).Milliseconds())
		s.stats.Fail(op)
		return id, err
	}
	s.stats.Record(op, time.Since(start))
	return id, nil
}

// DocxResult is an assembled document.
type DocxResult struct {
	RenderID     string `json:"render_id"`
	TemplateHash string `json:"template_hash"`
	*assembler.Result
}

// RenderDocx assembles and validates one document.
func (s *Service) RenderDocx(ctx context.Context, in assembler.GenerationInput) (*DocxResult, error) {
	if f := Sniff(in.Template); len(in.Template) > 0 && f != FormatDOCX {
		return nil, fmt.Errorf("%w: got %s, want docx", ErrUnsupportedFormat, f)
	}
	var res *assembler.Result
	id, err := s.run(ctx, OpDocx, in.Template, func(log *slog.Logger) error {
		var err error
		res, err = s.asm.Assemble(in)
		if err == nil && !res.Validation.Valid {
			log.Warn("assembled document failed validation", "errors", len(res.Validation.Errors))
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &DocxResult{RenderID: id, TemplateHash: TemplateHash(in.Template), Result: res}, nil
}

// BatchItem is the outcome of one input of a batch.
type BatchItem struct {
	Index  int         `json:"index"`
	Result *DocxResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
	err    error
}

// Err returns the render error of the item.
func (b BatchItem) Err() error { return b.err }

// RenderDocxBatch renders independent inputs in parallel. A failed item
// never cancels the others.
func (s *Service) RenderDocxBatch(ctx context.Context, inputs []assembler.GenerationInput) []BatchItem {
	items := make([]BatchItem, len(inputs))
	start := time.Now()
	var g errgroup.Group
	g.SetLimit(s.batch)
	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			res, err := s.RenderDocx(ctx, in)
			items[i] = BatchItem{Index: i, Result: res, err: err}
			if err != nil {
				items[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, it := range items {
		if it.err != nil {
			failed++
		}
	}
	s.log.Info("batch rendered", "items", len(items), "failed", failed, "duration_ms", time.Since(start).Milliseconds())
	s.stats.Record(opDocxBatch, time.Since(start))
	return items
}

// PDFInput drives RenderPDF. Values fill interactive fields; Placements
// are drawn on flat templates.
type PDFInput struct {
	Template   []byte              `json:"template"`
	Values     map[string]string   `json:"field_values,omitempty"`
	Placements []pdfform.Placement `json:"placements,omitempty"`
	Flatten    bool                `json:"flatten"`
}

// PDFResult is a filled PDF.
type PDFResult struct {
	RenderID          string           `json:"render_id"`
	TemplateHash      string           `json:"template_hash"`
	Strategy          pdfform.Strategy `json:"strategy"`
	PDF               []byte           `json:"-"`
	Filled            []string         `json:"filled"`
	SkippedFields     []pdfform.Skip   `json:"skipped_fields"`
	SkippedPlacements []pdfform.Skip   `json:"skipped_placements"`
	Lines             []pdfform.Line   `json:"lines,omitempty"`
	Flattened         bool             `json:"flattened"`
}

// Skip reasons for inputs that do not apply to the detected strategy.
const (
	ReasonFlatTemplate = "template has no interactive fields"
	ReasonFormTemplate = "template is an interactive form"
)

// RenderPDF detects how the template is filled and fills it: values go
// into interactive fields, placements are drawn on flat pages. Inputs
// meant for the other strategy are reported as skipped.
func (s *Service) RenderPDF(ctx context.Context, in PDFInput) (*PDFResult, error) {
	if f := Sniff(in.Template); f != FormatPDF {
		return nil, fmt.Errorf("%w: got %s, want pdf", ErrUnsupportedFormat, f)
	}
	res := &PDFResult{
		TemplateHash:      TemplateHash(in.Template),
		Filled:            []string{},
		SkippedFields:     []pdfform.Skip{},
		SkippedPlacements: []pdfform.Skip{},
	}
	var err error
	res.RenderID, err = s.runAs(ctx, opPDF, in.Template, func(log *slog.Logger) (string, error) {
		det, err := pdfform.Detect(in.Template)
		if err != nil {
			return "", err
		}
		if det.Encrypted {
			return "", &pdfdoc.Error{Op: "render", Err: pdfdoc.ErrEncrypted}
		}
		res.Strategy = det.Strategy
		if det.Strategy == pdfform.StrategyAcroForm {
			return OpPDFForm, s.fillForm(res, in)
		}
		return OpPDFFlat, s.overlayFlat(log, res, in)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) fillForm(res *PDFResult, in PDFInput) error {
	for _, p := range in.Placements {
		res.SkippedPlacements = append(res.SkippedPlacements, pdfform.Skip{Name: p.FieldID, Reason: ReasonFormTemplate})
	}
	fr, err := s.filler.Fill(in.Template, in.Values, pdfform.FillOptions{Flatten: in.Flatten})
	if err != nil {
		return err
	}
	res.PDF, res.Filled, res.Flattened = fr.PDF, fr.Filled, fr.Flattened
	res.SkippedFields = append(res.SkippedFields, fr.SkippedFields...)
	return nil
}

func (s *Service) overlayFlat(log *slog.Logger, res *PDFResult, in PDFInput) error {
	for _, name := range sortedNames(in.Values) {
		res.SkippedFields = append(res.SkippedFields, pdfform.Skip{Name: name, Reason: ReasonFlatTemplate})
	}
	if len(in.Placements) == 0 {
		log.Info("flat template without placements returned unchanged")
		res.PDF = in.Template
		return nil
	}
	or, err := s.overlay.Apply(in.Template, in.Placements)
	if err != nil {
		return err
	}
	res.PDF, res.Lines = or.PDF, or.Lines
	res.Filled = placementIDs(in.Placements, or.Skipped)
	res.SkippedPlacements = append(res.SkippedPlacements, or.Skipped...)
	return nil
}

// InspectPDF reports the fill strategy and fields of a PDF template.
func (s *Service) InspectPDF(ctx context.Context, template []byte) (*pdfform.Detection, error) {
	if f := Sniff(template); f != FormatPDF {
		return nil, fmt.Errorf("%w: got %s, want pdf", ErrUnsupportedFormat, f)
	}
	var det *pdfform.Detection
	_, err := s.run(ctx, OpInspect, template, func(*slog.Logger) error {
		var err error
		det, err = pdfform.Detect(template)
		return err
	})
	return det, err
}

// InspectDocx lists the placeholders, tables and headings of a template.
func (s *Service) InspectDocx(ctx context.Context, template []byte) (*outline.Outline, error) {
	if f := Sniff(template); f != FormatDOCX {
		return nil, fmt.Errorf("%w: got %s, want docx", ErrUnsupportedFormat, f)
	}
	var out *outline.Outline
	_, err := s.run(ctx, OpInspect, template, func(*slog.Logger) error {
		var err error
		out, err = outline.Inspect(template)
		return err
	})
	return out, err
}

// ValidateDocx runs the export validator on a finished document.
func (s *Service) ValidateDocx(ctx context.Context, doc []byte, expectedFields []string) (validate.Result, error) {
	var res validate.Result
	_, err := s.run(ctx, OpValidate, doc, func(*slog.Logger) error {
		res = validate.Validate(doc, expectedFields)
		return nil
	})
	return res, err
}

func placementIDs(placements []pdfform.Placement, skipped []pdfform.Skip) []string {
	skip := make(map[string]int, len(skipped))
	for _, sk := range skipped {
		skip[sk.Name]++
	}
	ids := []string{}
	for _, p := range placements {
		if skip[p.FieldID] > 0 {
			skip[p.FieldID]--
			continue
		}
		ids = append(ids, p.FieldID)
	}
	return ids
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
