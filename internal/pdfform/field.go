// Package pdfform detects how a PDF template is meant to be filled and
// fills it: interactive form fields with regenerated appearances, an
// optional flatten pass, or text drawn at coordinates on flat pages.
package pdfform

import (
	"sort"
	"strings"

	"github.com/dgallion1/docforge/internal/pdfdoc"
)

// FieldType is the kind of an interactive field.
type FieldType string

const (
	TypeText      FieldType = "text"
	TypeCheckbox  FieldType = "checkbox"
	TypeDropdown  FieldType = "dropdown"
	TypeRadio     FieldType = "radio"
	TypeSignature FieldType = "signature"
	TypeUnknown   FieldType = "unknown"
)

// Field describes one interactive field. Page is 0-based and -1 when no
// widget could be tied to a page.
type Field struct {
	Name         string       `json:"name"`
	Type         FieldType    `json:"type"`
	Page         int          `json:"page"`
	Rect         *pdfdoc.Rect `json:"rect,omitempty"`
	CurrentValue string       `json:"current_value,omitempty"`
	Options      []string     `json:"options,omitempty"`
	Required     bool         `json:"required"`
}

// widget is one annotation that shows a field.
type widget struct {
	ref  pdfdoc.Reference
	dict pdfdoc.Dict
	page int
}

// formField is a terminal field with its inherited attributes resolved.
type formField struct {
	Field
	partial string
	ref     pdfdoc.Reference
	hasRef  bool
	dict    pdfdoc.Dict
	ft      pdfdoc.Name
	flags   int64
	da      string
	q       int64
	// opts holds export and display values of choice options.
	opts    []option
	widgets []widget
}

type option struct {
	export, display string
}

// inherited carries the attributes a field kid takes from its parents.
type inherited struct {
	name  string
	ft    pdfdoc.Name
	flags int64
	v     pdfdoc.Object
	da    string
	q     int64
	opt   pdfdoc.Object
}

// form is the interactive form of a document.
type form struct {
	acroForm pdfdoc.Dict
	fields   []*formField
}

// readForm walks /AcroForm /Fields. Pages map widget object numbers to
// page indices.
func readForm(doc *pdfdoc.Document, pages []pdfdoc.Page) (*form, error) {
	cat, err := doc.Catalog()
	if err != nil {
		return nil, err
	}
	f := &form{acroForm: doc.ResolveDict(cat["AcroForm"])}
	if f.acroForm == nil {
		return f, nil
	}

	byPage := make(map[int]int, len(pages))
	annotPage := make(map[int]int)
	for _, p := range pages {
		byPage[p.Ref.Number] = p.Index
		for _, a := range doc.ResolveArray(p.Dict["Annots"]) {
			if ref, ok := a.(pdfdoc.Reference); ok {
				annotPage[ref.Number] = p.Index
			}
		}
	}
	pageOf := func(ref pdfdoc.Reference, hasRef bool, d pdfdoc.Dict) int {
		if p, ok := d["P"].(pdfdoc.Reference); ok {
			if idx, ok := byPage[p.Number]; ok {
				return idx
			}
		}
		if hasRef {
			if idx, ok := annotPage[ref.Number]; ok {
				return idx
			}
		}
		return -1
	}

	base := inherited{da: pdfdoc.DecodeText(f.acroForm["DA"])}
	if q, ok := f.acroForm.GetInt("Q"); ok {
		base.q = q
	}
	seen := make(map[int]bool)
	var walk func(o pdfdoc.Object, parent inherited, depth int)
	walk = func(o pdfdoc.Object, parent inherited, depth int) {
		ref, hasRef := o.(pdfdoc.Reference)
		if hasRef {
			if seen[ref.Number] {
				return
			}
			seen[ref.Number] = true
		}
		d := doc.ResolveDict(o)
		if d == nil || depth > 32 {
			return
		}
		cur := parent
		partial := pdfdoc.DecodeText(d["T"])
		if partial != "" {
			if cur.name != "" {
				cur.name += "." + partial
			} else {
				cur.name = partial
			}
		}
		if ft := d.GetName("FT"); ft != "" {
			cur.ft = ft
		}
		if ff, ok := d.GetInt("Ff"); ok {
			cur.flags = ff
		}
		if v, ok := d["V"]; ok {
			cur.v = v
		}
		if da, ok := d["DA"]; ok {
			cur.da = pdfdoc.DecodeText(da)
		}
		if q, ok := d.GetInt("Q"); ok {
			cur.q = q
		}
		if opt, ok := d["Opt"]; ok {
			cur.opt = opt
		}

		var fieldKids, widgetKids []pdfdoc.Object
		for _, kid := range doc.ResolveArray(d["Kids"]) {
			if kd := doc.ResolveDict(kid); kd != nil && kd["T"] != nil {
				fieldKids = append(fieldKids, kid)
			} else {
				widgetKids = append(widgetKids, kid)
			}
		}
		for _, kid := range fieldKids {
			walk(kid, cur, depth+1)
		}
		if (len(fieldKids) > 0 && len(widgetKids) == 0) || cur.name == "" {
			return
		}

		ff := &formField{
			partial: partial,
			ref:     ref,
			hasRef:  hasRef,
			dict:    d,
			ft:      cur.ft,
			flags:   cur.flags,
			da:      cur.da,
			q:       cur.q,
			opts:    readOptions(doc, cur.opt),
		}
		ff.Name = cur.name
		ff.Required = cur.flags&pdfdoc.FlagRequired != 0
		ff.Type = fieldType(cur.ft, cur.flags)
		ff.CurrentValue = valueString(doc.Resolve(cur.v))
		for _, o := range ff.opts {
			ff.Options = append(ff.Options, o.display)
		}

		if len(widgetKids) == 0 {
			ff.widgets = []widget{{ref: ref, dict: d, page: pageOf(ref, hasRef, d)}}
		}
		for _, kid := range widgetKids {
			kref, kok := kid.(pdfdoc.Reference)
			kd := doc.ResolveDict(kid)
			if !kok || kd == nil {
				continue
			}
			ff.widgets = append(ff.widgets, widget{ref: kref, dict: kd, page: pageOf(kref, true, kd)})
		}
		ff.Page = -1
		for _, w := range ff.widgets {
			if w.page >= 0 {
				ff.Page = w.page
				if r, ok := pdfdoc.RectFrom(doc.Resolve(w.dict["Rect"])); ok {
					ff.Rect = &r
				}
				break
			}
		}
		if ff.Rect == nil && len(ff.widgets) > 0 {
			if r, ok := pdfdoc.RectFrom(doc.Resolve(ff.widgets[0].dict["Rect"])); ok {
				ff.Rect = &r
			}
		}
		f.fields = append(f.fields, ff)
	}
	for _, o := range doc.ResolveArray(f.acroForm["Fields"]) {
		walk(o, base, 0)
	}
	return f, nil
}

func fieldType(ft pdfdoc.Name, flags int64) FieldType {
	switch ft {
	case "Tx":
		return TypeText
	case "Btn":
		switch {
		case flags&pdfdoc.FlagPushbutton != 0:
			return TypeUnknown
		case flags&pdfdoc.FlagRadio != 0:
			return TypeRadio
		}
		return TypeCheckbox
	case "Ch":
		return TypeDropdown
	case "Sig":
		return TypeSignature
	}
	return TypeUnknown
}

func readOptions(doc *pdfdoc.Document, o pdfdoc.Object) []option {
	var out []option
	for _, item := range doc.ResolveArray(o) {
		switch v := doc.Resolve(item).(type) {
		case pdfdoc.Array:
			if len(v) == 2 {
				out = append(out, option{export: pdfdoc.DecodeText(doc.Resolve(v[0])), display: pdfdoc.DecodeText(doc.Resolve(v[1]))})
			}
		default:
			s := pdfdoc.DecodeText(v)
			out = append(out, option{export: s, display: s})
		}
	}
	return out
}

func valueString(o pdfdoc.Object) string {
	switch v := o.(type) {
	case pdfdoc.String, pdfdoc.Name:
		s := pdfdoc.DecodeText(v)
		if s == "Off" {
			return ""
		}
		return s
	case pdfdoc.Array:
		var parts []string
		for _, item := range v {
			parts = append(parts, pdfdoc.DecodeText(item))
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// onStates lists the non-Off appearance states of a button widget.
func onStates(doc *pdfdoc.Document, w pdfdoc.Dict) []pdfdoc.Name {
	ap := doc.ResolveDict(w["AP"])
	var states []pdfdoc.Name
	for _, key := range []pdfdoc.Name{"N", "D"} {
		for name := range doc.ResolveDict(ap[key]) {
			if name != "Off" && !containsName(states, name) {
				states = append(states, name)
			}
		}
		if len(states) > 0 {
			break
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	return states
}

func containsName(list []pdfdoc.Name, n pdfdoc.Name) bool {
	for _, x := range list {
		if x == n {
			return true
		}
	}
	return false
}

// lookup finds a field by full name, then by unique partial name.
func (f *form) lookup(name string) *formField {
	for _, ff := range f.fields {
		if ff.Name == name {
			return ff
		}
	}
	var match *formField
	for _, ff := range f.fields {
		if ff.partial == name {
			if match != nil {
				return nil
			}
			match = ff
		}
	}
	return match
}
