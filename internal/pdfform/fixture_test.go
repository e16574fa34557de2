package pdfform

import (
	"bytes"
	"testing"

	"github.com/dgallion1/docforge/internal/pdfdoc"
	"github.com/jung-kurt/gofpdf"
)

func rect(llx, lly, urx, ury float64) pdfdoc.Array {
	return pdfdoc.Array{pdfdoc.Real(llx), pdfdoc.Real(lly), pdfdoc.Real(urx), pdfdoc.Real(ury)}
}

func stateAP(f *pdfdoc.File, on pdfdoc.Name) pdfdoc.Dict {
	form := func(data string) pdfdoc.Reference {
		return f.Add(pdfdoc.Stream{
			Dict: pdfdoc.Dict{"Type": pdfdoc.Name("XObject"), "Subtype": pdfdoc.Name("Form"), "BBox": rect(0, 0, 12, 12)},
			Data: []byte(data),
		})
	}
	return pdfdoc.Dict{"N": pdfdoc.Dict{on: form("0 g 2 2 8 8 re f"), "Off": form("")}}
}

// formPDF builds a one-page interactive form:
//
//	client.name  text, required, nested under "client"
//	notes        multiline text
//	agree        checkbox with on-state /Da
//	plan         radio group Basic/Pro
//	city         combo box with options
//	sig          signature
func formPDF(t *testing.T) []byte {
	t.Helper()
	var f pdfdoc.File
	catalog := f.Add(nil)
	pages := f.Add(nil)
	page := f.Add(nil)
	content := f.Add(pdfdoc.Stream{Dict: pdfdoc.Dict{}, Data: []byte("BT /F1 12 Tf 72 800 Td (Formular) Tj ET")})
	font := f.Add(pdfdoc.Dict{"Type": pdfdoc.Name("Font"), "Subtype": pdfdoc.Name("Type1"), "BaseFont": pdfdoc.Name("Helvetica")})

	client := f.Add(nil)
	name := f.Add(pdfdoc.Dict{
		"T": pdfdoc.Text("name"), "FT": pdfdoc.Name("Tx"), "Ff": pdfdoc.Integer(pdfdoc.FlagRequired),
		"Parent": client, "Type": pdfdoc.Name("Annot"), "Subtype": pdfdoc.Name("Widget"),
		"Rect": rect(100, 700, 300, 720), "P": page,
	})
	f.Set(client, pdfdoc.Dict{"T": pdfdoc.Text("client"), "Kids": pdfdoc.Array{name}})

	notes := f.Add(pdfdoc.Dict{
		"T": pdfdoc.Text("notes"), "FT": pdfdoc.Name("Tx"), "Ff": pdfdoc.Integer(pdfdoc.FlagMultiline),
		"DA": pdfdoc.Text("/Helv 0 Tf 0 g"), "Type": pdfdoc.Name("Annot"), "Subtype": pdfdoc.Name("Widget"),
		"Rect": rect(100, 500, 300, 600), "P": page,
	})
	agree := f.Add(pdfdoc.Dict{
		"T": pdfdoc.Text("agree"), "FT": pdfdoc.Name("Btn"), "V": pdfdoc.Name("Off"), "AS": pdfdoc.Name("Off"),
		"Type": pdfdoc.Name("Annot"), "Subtype": pdfdoc.Name("Widget"), "Rect": rect(100, 450, 112, 462),
		"AP": stateAP(&f, "Da"),
	})

	plan := f.Add(nil)
	basic := f.Add(pdfdoc.Dict{"Parent": plan, "Type": pdfdoc.Name("Annot"), "Subtype": pdfdoc.Name("Widget"), "Rect": rect(100, 400, 112, 412), "AS": pdfdoc.Name("Off"), "AP": stateAP(&f, "Basic"), "P": page})
	pro := f.Add(pdfdoc.Dict{"Parent": plan, "Type": pdfdoc.Name("Annot"), "Subtype": pdfdoc.Name("Widget"), "Rect": rect(150, 400, 162, 412), "AS": pdfdoc.Name("Off"), "AP": stateAP(&f, "Pro"), "P": page})
	f.Set(plan, pdfdoc.Dict{"T": pdfdoc.Text("plan"), "FT": pdfdoc.Name("Btn"), "Ff": pdfdoc.Integer(pdfdoc.FlagRadio | pdfdoc.FlagNoToggleOff), "Kids": pdfdoc.Array{basic, pro}})

	city := f.Add(pdfdoc.Dict{
		"T": pdfdoc.Text("city"), "FT": pdfdoc.Name("Ch"), "Ff": pdfdoc.Integer(pdfdoc.FlagCombo),
		"Opt":  pdfdoc.Array{pdfdoc.Text("Cluj"), pdfdoc.Text("Iasi"), pdfdoc.Array{pdfdoc.Text("B"), pdfdoc.Text("Bucuresti")}},
		"Type": pdfdoc.Name("Annot"), "Subtype": pdfdoc.Name("Widget"), "Rect": rect(100, 350, 250, 370), "P": page,
	})
	sig := f.Add(pdfdoc.Dict{
		"T": pdfdoc.Text("sig"), "FT": pdfdoc.Name("Sig"), "Type": pdfdoc.Name("Annot"), "Subtype": pdfdoc.Name("Widget"),
		"Rect": rect(100, 100, 300, 150), "P": page,
	})
	link := f.Add(pdfdoc.Dict{"Type": pdfdoc.Name("Annot"), "Subtype": pdfdoc.Name("Link"), "Rect": rect(0, 0, 10, 10)})

	f.Set(page, pdfdoc.Dict{
		"Type": pdfdoc.Name("Page"), "Parent": pages, "MediaBox": rect(0, 0, 595, 842),
		"Contents":  content,
		"Resources": pdfdoc.Dict{"Font": pdfdoc.Dict{"F1": font}},
		"Annots":    pdfdoc.Array{name, notes, agree, basic, pro, city, sig, link},
	})
	f.Set(pages, pdfdoc.Dict{"Type": pdfdoc.Name("Pages"), "Kids": pdfdoc.Array{page}, "Count": pdfdoc.Integer(1)})
	acro := f.Add(pdfdoc.Dict{
		"Fields": pdfdoc.Array{client, notes, agree, plan, city, sig},
		"DA":     pdfdoc.Text("/Helv 10 Tf 0 g"),
	})
	f.Set(catalog, pdfdoc.Dict{"Type": pdfdoc.Name("Catalog"), "Pages": pages, "AcroForm": acro})
	return f.Bytes(pdfdoc.Dict{"Root": catalog})
}

// flatPDF builds a flat PDF with the given number of A4 pages, each
// holding one line of text.
func flatPDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Text(72, 72, "Contract de prestari servicii")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("build flat pdf: %v", err)
	}
	return buf.Bytes()
}
