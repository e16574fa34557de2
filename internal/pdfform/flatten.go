package pdfform

import (
	"bytes"
	"fmt"

	"github.com/dgallion1/docforge/internal/pdfdoc"
)

// flatten paints each visible widget's normal appearance into its page,
// drops the widget annotations and removes /AcroForm from the catalog.
// The existing page content is wrapped in q/Q.
func (s *session) flatten(pages []pdfdoc.Page) error {
	cat, err := s.doc.Catalog()
	if err != nil {
		return err
	}
	for _, p := range pages {
		annots := s.doc.ResolveArray(p.Dict["Annots"])
		if len(annots) == 0 {
			continue
		}
		xobjects := s.doc.ResolveDict(p.Resources["XObject"]).Clone()
		var keep pdfdoc.Array
		var draws bytes.Buffer
		removed := 0
		for _, a := range annots {
			ad := s.doc.ResolveDict(a)
			if ad.GetName("Subtype") != "Widget" {
				keep = append(keep, a)
				continue
			}
			removed++
			if flags, _ := ad.GetInt("F"); flags&pdfdoc.AnnotFlagHidden != 0 {
				continue
			}
			ap, ok := s.appearance(ad)
			if !ok {
				continue
			}
			rect, ok := pdfdoc.RectFrom(s.doc.Resolve(ad["Rect"]))
			if !ok || rect.Width() == 0 || rect.Height() == 0 {
				continue
			}
			name := freeName(xobjects)
			xobjects[name] = ap
			sx, sy, tx, ty := placement(s.doc.ResolveDict(ap), rect)
			fmt.Fprintf(&draws, "q %s 0 0 %s %s %s cm /%s Do Q\n", num4(sx), num4(sy), num4(tx), num4(ty), name)
		}
		if removed == 0 {
			continue
		}

		page := s.edit(p.Ref)
		if len(keep) == 0 {
			delete(page, "Annots")
		} else {
			page["Annots"] = keep
		}
		if draws.Len() == 0 {
			continue
		}
		res := p.Resources.Clone()
		res["XObject"] = xobjects
		page["Resources"] = res

		contents := pdfdoc.Array{s.u.Add(pdfdoc.Stream{Dict: pdfdoc.Dict{}, Data: []byte("q\n")})}
		switch v := s.doc.Resolve(page["Contents"]).(type) {
		case pdfdoc.Array:
			contents = append(contents, v...)
		case pdfdoc.Stream:
			contents = append(contents, page["Contents"])
		}
		body := append([]byte("Q\n"), draws.Bytes()...)
		contents = append(contents, s.u.Add(pdfdoc.Stream{Dict: pdfdoc.Dict{"Filter": pdfdoc.Name("FlateDecode")}, Data: pdfdoc.Flate(body)}))
		page["Contents"] = contents
	}

	if cat["AcroForm"] != nil {
		if ref, ok := s.doc.RootRef(); ok {
			delete(s.edit(ref), "AcroForm")
		}
	}
	s.commit()
	return nil
}

// appearance picks the widget's normal appearance stream, following
// /AS for state dictionaries.
func (s *session) appearance(ad pdfdoc.Dict) (pdfdoc.Reference, bool) {
	n := s.doc.ResolveDict(ad["AP"])["N"]
	ref, ok := n.(pdfdoc.Reference)
	if !ok {
		if states, isDict := n.(pdfdoc.Dict); isDict {
			ref, ok = states[ad.GetName("AS")].(pdfdoc.Reference)
		}
		if !ok {
			return pdfdoc.Reference{}, false
		}
	}
	switch v := s.doc.Resolve(ref).(type) {
	case pdfdoc.Stream:
		return ref, true
	case pdfdoc.Dict:
		ref, ok = v[ad.GetName("AS")].(pdfdoc.Reference)
		if ok {
			_, ok = s.doc.Resolve(ref).(pdfdoc.Stream)
		}
		return ref, ok
	}
	return pdfdoc.Reference{}, false
}

// placement maps the form's transformed bounding box onto rect.
func placement(form pdfdoc.Dict, rect pdfdoc.Rect) (sx, sy, tx, ty float64) {
	bbox, ok := pdfdoc.RectFrom(form["BBox"])
	if !ok {
		bbox = pdfdoc.Rect{URX: rect.Width(), URY: rect.Height()}
	}
	if m := form.GetArray("Matrix"); len(m) == 6 {
		var v [6]float64
		for i, item := range m {
			v[i], _ = pdfdoc.Number(item)
		}
		bbox = transform(bbox, v)
	}
	if bbox.Width() == 0 || bbox.Height() == 0 {
		return 1, 1, rect.LLX, rect.LLY
	}
	sx = rect.Width() / bbox.Width()
	sy = rect.Height() / bbox.Height()
	return sx, sy, rect.LLX - bbox.LLX*sx, rect.LLY - bbox.LLY*sy
}

func transform(r pdfdoc.Rect, m [6]float64) pdfdoc.Rect {
	xs := [4]float64{r.LLX, r.URX, r.LLX, r.URX}
	ys := [4]float64{r.LLY, r.LLY, r.URY, r.URY}
	out := pdfdoc.Rect{}
	for i := range xs {
		x := m[0]*xs[i] + m[2]*ys[i] + m[4]
		y := m[1]*xs[i] + m[3]*ys[i] + m[5]
		if i == 0 {
			out = pdfdoc.Rect{LLX: x, LLY: y, URX: x, URY: y}
			continue
		}
		out.LLX, out.URX = min(out.LLX, x), max(out.URX, x)
		out.LLY, out.URY = min(out.LLY, y), max(out.URY, y)
	}
	return out
}

func freeName(xobjects pdfdoc.Dict) pdfdoc.Name {
	for i := len(xobjects); ; i++ {
		name := pdfdoc.Name(fmt.Sprintf("Flat%d", i))
		if _, taken := xobjects[name]; !taken {
			return name
		}
	}
}

func num4(f float64) string {
	return fmt.Sprintf("%.4f", f)
}
