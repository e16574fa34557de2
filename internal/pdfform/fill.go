package pdfform

import (
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgallion1/docforge/internal/pdfdoc"
)

// Skip explains why an input was not applied.
type Skip struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Skip reasons.
const (
	ReasonNotFound      = "field not found"
	ReasonSignature     = "signature fields are not filled"
	ReasonPushbutton    = "push buttons carry no value"
	ReasonNotInOptions  = "value is not one of the field options"
	ReasonNoRadioOption = "no radio button exports this value"
	ReasonNoWidgetRef   = "field is not an indirect object"
	ReasonUnknownType   = "unsupported field type"
	ReasonPageMissing   = "page does not exist"
)

// FillOptions control Fill.
type FillOptions struct {
	// Flatten draws the filled fields into the page content and removes
	// the interactive form. The result can no longer be edited.
	Flatten bool `json:"flatten"`
}

// FillResult is the outcome of Fill.
type FillResult struct {
	PDF           []byte   `json:"-"`
	Filled        []string `json:"filled"`
	SkippedFields []Skip   `json:"skipped_fields"`
	Flattened     bool     `json:"flattened"`
}

// Filler fills interactive PDF forms.
type Filler struct {
	log *slog.Logger
}

// NewFiller returns a Filler. A nil logger discards output.
func NewFiller(log *slog.Logger) *Filler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Filler{log: log}
}

// session holds the edits of one fill. Dictionaries are cloned once
// and written back as a single incremental update.
type session struct {
	doc   *pdfdoc.Document
	u     *pdfdoc.Update
	m     *metrics
	edits map[int]pdfdoc.Dict
	gens  map[int]int
	font  *pdfdoc.Reference
}

func newSession(doc *pdfdoc.Document) *session {
	return &session{
		doc:   doc,
		u:     doc.NewUpdate(),
		m:     newMetrics(),
		edits: make(map[int]pdfdoc.Dict),
		gens:  make(map[int]int),
	}
}

// edit returns the working copy of the dictionary ref points to.
func (s *session) edit(ref pdfdoc.Reference) pdfdoc.Dict {
	if d, ok := s.edits[ref.Number]; ok {
		return d
	}
	d := s.doc.ResolveDict(ref).Clone()
	s.edits[ref.Number] = d
	s.gens[ref.Number] = ref.Generation
	return d
}

func (s *session) helv() pdfdoc.Reference {
	if s.font == nil {
		ref := s.u.Add(helvetica())
		s.font = &ref
	}
	return *s.font
}

// commit writes every edited dictionary into the update.
func (s *session) commit() {
	for num, d := range s.edits {
		s.u.Set(pdfdoc.Reference{Number: num, Generation: s.gens[num]}, d)
	}
	s.edits = make(map[int]pdfdoc.Dict)
}

// Fill sets the given field values. Names are fully qualified field
// names; a unique partial name is accepted too. Values that cannot be
// applied are listed in SkippedFields, never returned as errors.
func (f *Filler) Fill(data []byte, values map[string]string, opts FillOptions) (*FillResult, error) {
	doc, err := pdfdoc.Open(data)
	if err != nil {
		return nil, err
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	fm, err := readForm(doc, pages)
	if err != nil {
		return nil, err
	}

	res := &FillResult{Filled: []string{}, SkippedFields: []Skip{}}
	s := newSession(doc)
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ff := fm.lookup(name)
		if ff == nil {
			res.SkippedFields = append(res.SkippedFields, Skip{Name: name, Reason: ReasonNotFound})
			continue
		}
		if reason := s.apply(ff, values[name]); reason != "" {
			f.log.Debug("pdf field skipped", "field", name, "reason", reason)
			res.SkippedFields = append(res.SkippedFields, Skip{Name: name, Reason: reason})
			continue
		}
		res.Filled = append(res.Filled, ff.Name)
	}
	s.commit()

	if opts.Flatten {
		if err := s.flatten(pages); err != nil {
			return nil, err
		}
		res.Flattened = true
	}
	if s.u.Len() == 0 {
		res.PDF = data
	} else {
		res.PDF = s.u.Bytes()
	}
	f.log.Info("pdf form filled", "filled", len(res.Filled), "skipped", len(res.SkippedFields), "flattened", res.Flattened)
	return res, nil
}

// Flatten draws every widget appearance into its page and removes the
// interactive form.
func (f *Filler) Flatten(data []byte) ([]byte, error) {
	doc, err := pdfdoc.Open(data)
	if err != nil {
		return nil, err
	}
	pages, err := doc.Pages()
	if err != nil {
		return nil, err
	}
	s := newSession(doc)
	if err := s.flatten(pages); err != nil {
		return nil, err
	}
	if s.u.Len() == 0 {
		return data, nil
	}
	return s.u.Bytes(), nil
}

// apply sets one field and returns a skip reason, or "" on success.
func (s *session) apply(ff *formField, value string) string {
	if !ff.hasRef {
		return ReasonNoWidgetRef
	}
	switch ff.Type {
	case TypeText:
		s.setText(ff, value, value)
	case TypeDropdown:
		export, display, ok := matchOption(ff.opts, value)
		if !ok {
			if len(ff.opts) > 0 && ff.flags&pdfdoc.FlagEdit == 0 {
				return ReasonNotInOptions
			}
			export, display = value, value
		}
		s.setText(ff, export, display)
	case TypeCheckbox:
		s.setCheckbox(ff, truthy(value))
	case TypeRadio:
		return s.setRadio(ff, value)
	case TypeSignature:
		return ReasonSignature
	default:
		if ff.ft == "Btn" {
			return ReasonPushbutton
		}
		return ReasonUnknownType
	}
	return ""
}

func (s *session) setText(ff *formField, value, display string) {
	s.edit(ff.ref)["V"] = pdfdoc.EncodeText(value)
	st := parseDA(ff.da)
	multiline := ff.Type == TypeText && ff.flags&pdfdoc.FlagMultiline != 0
	for _, w := range ff.widgets {
		rect, ok := pdfdoc.RectFrom(s.doc.Resolve(w.dict["Rect"]))
		if !ok {
			continue
		}
		ap := s.u.Add(textAppearance(s.m, display, rect, st, ff.q, multiline, s.helv()))
		s.edit(w.ref)["AP"] = pdfdoc.Dict{"N": ap}
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off", "n", "unchecked":
		return false
	}
	return true
}

func (s *session) setCheckbox(ff *formField, on bool) {
	value := pdfdoc.Name("Off")
	for i, w := range ff.widgets {
		state := pdfdoc.Name("Off")
		if on {
			state = "Yes"
			if states := onStates(s.doc, w.dict); len(states) > 0 {
				state = states[0]
			}
			if i == 0 {
				value = state
			}
		}
		s.edit(w.ref)["AS"] = state
	}
	s.edit(ff.ref)["V"] = value
}

// setRadio turns on the widget whose on-state, or /Opt export value,
// matches value and turns every other widget off.
func (s *session) setRadio(ff *formField, value string) string {
	if !truthy(value) {
		for _, w := range ff.widgets {
			s.edit(w.ref)["AS"] = pdfdoc.Name("Off")
		}
		s.edit(ff.ref)["V"] = pdfdoc.Name("Off")
		return ""
	}
	chosen := -1
	var state pdfdoc.Name
	for i, w := range ff.widgets {
		states := onStates(s.doc, w.dict)
		if len(states) == 0 {
			continue
		}
		export := string(states[0])
		if i < len(ff.opts) {
			export = ff.opts[i].export
		}
		if export == value || string(states[0]) == value {
			chosen, state = i, states[0]
			break
		}
	}
	if chosen < 0 {
		return ReasonNoRadioOption
	}
	for i, w := range ff.widgets {
		if i == chosen {
			s.edit(w.ref)["AS"] = state
		} else {
			s.edit(w.ref)["AS"] = pdfdoc.Name("Off")
		}
	}
	s.edit(ff.ref)["V"] = state
	return ""
}

func matchOption(opts []option, value string) (export, display string, ok bool) {
	for _, o := range opts {
		if o.export == value || o.display == value {
			return o.export, o.display, true
		}
	}
	for _, o := range opts {
		if strings.EqualFold(o.export, value) || strings.EqualFold(o.display, value) {
			return o.export, o.display, true
		}
	}
	return "", "", false
}
