package pdfform

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/docforge/internal/pdfdoc"
	"github.com/google/go-cmp/cmp"
	"github.com/jung-kurt/gofpdf"
)

type fieldSummary struct {
	Name     string
	Type     FieldType
	Page     int
	Required bool
	Options  []string
}

func summarize(fields []Field) []fieldSummary {
	out := make([]fieldSummary, len(fields))
	for i, f := range fields {
		out[i] = fieldSummary{Name: f.Name, Type: f.Type, Page: f.Page, Required: f.Required, Options: f.Options}
	}
	return out
}

func TestDetect_AcroForm(t *testing.T) {
	det, err := Detect(formPDF(t))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Strategy != StrategyAcroForm || !det.HasTextContent || det.PageCount != 1 {
		t.Errorf("detection = %+v", det)
	}
	want := []fieldSummary{
		{Name: "client.name", Type: TypeText, Page: 0, Required: true},
		{Name: "notes", Type: TypeText, Page: 0},
		{Name: "agree", Type: TypeCheckbox, Page: 0},
		{Name: "plan", Type: TypeRadio, Page: 0},
		{Name: "city", Type: TypeDropdown, Page: 0, Options: []string{"Cluj", "Iasi", "Bucuresti"}},
		{Name: "sig", Type: TypeSignature, Page: 0},
	}
	if diff := cmp.Diff(want, summarize(det.Fields)); diff != "" {
		t.Errorf("fields (-want +got):\n%s", diff)
	}
	if r := det.Fields[0].Rect; r == nil || *r != (pdfdoc.Rect{LLX: 100, LLY: 700, URX: 300, URY: 720}) {
		t.Errorf("client.name rect = %v", r)
	}
}

func TestDetect_Flat(t *testing.T) {
	det, err := Detect(flatPDF(t, 2))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Strategy != StrategyFlat {
		t.Errorf("Strategy = %q, want flat", det.Strategy)
	}
	if !det.HasTextContent {
		t.Error("HasTextContent = false for a page with text")
	}
	if det.PageCount != 2 || len(det.Fields) != 0 {
		t.Errorf("PageCount = %d, fields = %d", det.PageCount, len(det.Fields))
	}
}

func TestDetect_Encrypted(t *testing.T) {
	var f pdfdoc.File
	catalog := f.Add(nil)
	pages := f.Add(nil)
	page := f.Add(pdfdoc.Dict{"Type": pdfdoc.Name("Page"), "Parent": pages})
	f.Set(pages, pdfdoc.Dict{"Type": pdfdoc.Name("Pages"), "Kids": pdfdoc.Array{page}, "Count": pdfdoc.Integer(1)})
	f.Set(catalog, pdfdoc.Dict{"Type": pdfdoc.Name("Catalog"), "Pages": pages})
	enc := f.Add(pdfdoc.Dict{"Filter": pdfdoc.Name("Standard"), "V": pdfdoc.Integer(2)})
	data := f.Bytes(pdfdoc.Dict{"Root": catalog, "Encrypt": enc})

	det, err := Detect(data)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if !det.Encrypted || det.Strategy != StrategyFlat {
		t.Errorf("detection = %+v", det)
	}
	if _, err := NewFiller(nil).Fill(data, map[string]string{"x": "y"}, FillOptions{}); !errors.Is(err, pdfdoc.ErrEncrypted) {
		t.Errorf("Fill error = %v, want ErrEncrypted", err)
	}
}

func TestDetect_ContentWithoutText(t *testing.T) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	pdf.SetFillColor(200, 30, 30)
	pdf.Rect(100, 100, 200, 80, "F")
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("build pdf: %v", err)
	}

	var f pdfdoc.File
	catalog := f.Add(nil)
	pages := f.Add(nil)
	page := f.Add(pdfdoc.Dict{"Type": pdfdoc.Name("Page"), "Parent": pages, "MediaBox": rect(0, 0, 595, 842)})
	f.Set(pages, pdfdoc.Dict{"Type": pdfdoc.Name("Pages"), "Kids": pdfdoc.Array{page}, "Count": pdfdoc.Integer(1)})
	f.Set(catalog, pdfdoc.Dict{"Type": pdfdoc.Name("Catalog"), "Pages": pages})
	blank := f.Bytes(pdfdoc.Dict{"Root": catalog})

	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"graphics only", buf.Bytes(), true},
		{"no content stream", blank, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := Detect(tt.data)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if det.Strategy != StrategyFlat || det.PageCount != 1 {
				t.Errorf("detection = %+v", det)
			}
			if det.HasTextContent != tt.want {
				t.Errorf("HasTextContent = %v, want %v", det.HasTextContent, tt.want)
			}
		})
	}
}

func TestDetect_NotAPDF(t *testing.T) {
	if _, err := Detect([]byte("PK\x03\x04 not a pdf")); !errors.Is(err, pdfdoc.ErrMalformed) {
		t.Errorf("error = %v, want ErrMalformed", err)
	}
}

// reopen parses a filled file and returns its form.
func reopen(t *testing.T, data []byte) (*pdfdoc.Document, *form) {
	t.Helper()
	doc, err := pdfdoc.Open(data)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("pages: %v", err)
	}
	fm, err := readForm(doc, pages)
	if err != nil {
		t.Fatalf("readForm: %v", err)
	}
	return doc, fm
}

func appearanceText(t *testing.T, doc *pdfdoc.Document, w widget) string {
	t.Helper()
	ap := doc.ResolveDict(w.dict["AP"])
	s, ok := doc.Resolve(ap["N"]).(pdfdoc.Stream)
	if !ok {
		t.Fatalf("widget %v has no normal appearance stream", w.ref)
	}
	data, err := pdfdoc.Decode(s)
	if err != nil {
		t.Fatalf("decode appearance: %v", err)
	}
	return string(data)
}

func TestFill_Values(t *testing.T) {
	src := formPDF(t)
	values := map[string]string{
		"name":    "Acme SRL",
		"notes":   "Livrare in doua transe, prima la semnare si a doua la receptia lucrarilor.",
		"agree":   "yes",
		"plan":    "Pro",
		"city":    "Bucuresti",
		"sig":     "Ion Popescu",
		"missing": "x",
	}
	res, err := NewFiller(nil).Fill(src, values, FillOptions{})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if diff := cmp.Diff([]string{"agree", "city", "client.name", "notes", "plan"}, res.Filled); diff != "" {
		t.Errorf("Filled (-want +got):\n%s", diff)
	}
	wantSkips := []Skip{{Name: "missing", Reason: ReasonNotFound}, {Name: "sig", Reason: ReasonSignature}}
	if diff := cmp.Diff(wantSkips, res.SkippedFields); diff != "" {
		t.Errorf("SkippedFields (-want +got):\n%s", diff)
	}
	if !bytes.HasPrefix(res.PDF, src) {
		t.Error("filled file does not start with the original bytes")
	}

	doc, fm := reopen(t, res.PDF)
	got := map[string]string{}
	for _, ff := range fm.fields {
		got[ff.Name] = ff.CurrentValue
	}
	want := map[string]string{
		"client.name": "Acme SRL",
		"notes":       values["notes"],
		"agree":       "Da",
		"plan":        "Pro",
		"city":        "B",
		"sig":         "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("values after fill (-want +got):\n%s", diff)
	}

	if text := appearanceText(t, doc, fm.lookup("client.name").widgets[0]); !strings.Contains(text, "(Acme SRL) Tj") || !strings.Contains(text, "/Helv") {
		t.Errorf("client.name appearance = %q", text)
	}
	if text := appearanceText(t, doc, fm.lookup("city").widgets[0]); !strings.Contains(text, "(Bucuresti) Tj") {
		t.Errorf("city appearance shows %q, want the display value", text)
	}
	if notes := appearanceText(t, doc, fm.lookup("notes").widgets[0]); strings.Count(notes, " Tj") < 2 {
		t.Errorf("multiline notes drawn on one line: %q", notes)
	}

	states := map[string]pdfdoc.Name{}
	for _, w := range fm.lookup("plan").widgets {
		states[w.ref.String()] = w.dict.GetName("AS")
	}
	plan := fm.lookup("plan")
	if states[plan.widgets[0].ref.String()] != "Off" || states[plan.widgets[1].ref.String()] != "Pro" {
		t.Errorf("radio states = %v", states)
	}
	if as := fm.lookup("agree").widgets[0].dict.GetName("AS"); as != "Da" {
		t.Errorf("checkbox AS = %q, want Da", as)
	}
}

func TestFill_Skips(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		want   []Skip
	}{
		{"value outside options", map[string]string{"city": "Timisoara"}, []Skip{{Name: "city", Reason: ReasonNotInOptions}}},
		{"unknown radio value", map[string]string{"plan": "Enterprise"}, []Skip{{Name: "plan", Reason: ReasonNoRadioOption}}},
		{"unknown field", map[string]string{"client.phone": "0700"}, []Skip{{Name: "client.phone", Reason: ReasonNotFound}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := formPDF(t)
			res, err := NewFiller(nil).Fill(src, tt.values, FillOptions{})
			if err != nil {
				t.Fatalf("Fill: %v", err)
			}
			if diff := cmp.Diff(tt.want, res.SkippedFields); diff != "" {
				t.Errorf("SkippedFields (-want +got):\n%s", diff)
			}
			if len(res.Filled) != 0 || !bytes.Equal(res.PDF, src) {
				t.Errorf("file changed although nothing was filled")
			}
		})
	}
}

func TestFill_CheckboxOff(t *testing.T) {
	res, err := NewFiller(nil).Fill(formPDF(t), map[string]string{"agree": "no"}, FillOptions{})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	_, fm := reopen(t, res.PDF)
	agree := fm.lookup("agree")
	if agree.CurrentValue != "" || agree.widgets[0].dict.GetName("AS") != "Off" {
		t.Errorf("checkbox value %q, AS %q", agree.CurrentValue, agree.widgets[0].dict.GetName("AS"))
	}
}

func TestFill_Flatten(t *testing.T) {
	res, err := NewFiller(nil).Fill(formPDF(t), map[string]string{"name": "Acme SRL", "agree": "1"}, FillOptions{Flatten: true})
	if err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if !res.Flattened {
		t.Error("Flattened = false")
	}
	doc, err := pdfdoc.Open(res.PDF)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	cat, err := doc.Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if cat["AcroForm"] != nil {
		t.Error("AcroForm still present after flatten")
	}
	pages, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	annots := doc.ResolveArray(pages[0].Dict["Annots"])
	if len(annots) != 1 || doc.ResolveDict(annots[0]).GetName("Subtype") != "Link" {
		t.Errorf("annotations left = %v, want only the link", annots)
	}
	content, err := doc.Contents(pages[0])
	if err != nil {
		t.Fatalf("Contents: %v", err)
	}
	if !bytes.Contains(content, []byte("(Formular) Tj")) {
		t.Error("original page content lost")
	}
	if n := bytes.Count(content, []byte(" Do Q")); n < 2 {
		t.Errorf("found %d painted appearances, want at least 2", n)
	}
	if xo := doc.ResolveDict(pages[0].Resources["XObject"]); len(xo) == 0 {
		t.Error("no XObject resources after flatten")
	}

	det, err := Detect(res.PDF)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if det.Strategy != StrategyFlat {
		t.Errorf("flattened file detected as %q", det.Strategy)
	}
}

func TestFlatten_NoFormLeavesFileUnchanged(t *testing.T) {
	src := flatPDF(t, 1)
	out, err := NewFiller(nil).Flatten(src)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if !bytes.Equal(out, src) {
		t.Error("flatten of a file without widgets changed it")
	}
}

func TestOverlay_WrapsToMaxWidth(t *testing.T) {
	value := "Prestatorul se obliga sa execute lucrarile in termenul convenit si sa predea documentatia completa beneficiarului."
	res, err := NewOverlay(nil, nil).Apply(flatPDF(t, 1), []Placement{
		{FieldID: "clause", Value: value, Page: 0, X: 72, Y: 700, FontSize: 10, Multiline: true, MaxWidth: 150},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Drawn != 1 {
		t.Errorf("Drawn = %d", res.Drawn)
	}
	if len(res.Lines) < 2 {
		t.Fatalf("got %d lines, want the value wrapped", len(res.Lines))
	}
	var words []string
	for i, l := range res.Lines {
		if l.Width > 150 {
			t.Errorf("line %d %q is %.2f wide", i, l.Text, l.Width)
		}
		if i > 0 && l.Y >= res.Lines[i-1].Y {
			t.Errorf("line %d baseline %.2f not below previous %.2f", i, l.Y, res.Lines[i-1].Y)
		}
		words = append(words, strings.Fields(l.Text)...)
	}
	if got := strings.Join(words, " "); got != value {
		t.Errorf("wrapped text = %q", got)
	}

	doc, err := pdfdoc.Open(res.PDF)
	if err != nil {
		t.Fatalf("open overlay output: %v", err)
	}
	pages, err := doc.Pages()
	if err != nil || len(pages) != 1 {
		t.Fatalf("pages = %d, err = %v", len(pages), err)
	}
	if diff := cmp.Diff(pdfdoc.Rect{URX: 595.28, URY: 841.89}, pages[0].MediaBox, cmp.Comparer(func(a, b float64) bool { return a-b < 0.5 && b-a < 0.5 })); diff != "" {
		t.Errorf("page size (-want +got):\n%s", diff)
	}
}

func TestOverlay_Skips(t *testing.T) {
	res, err := NewOverlay(nil, nil).Apply(flatPDF(t, 2), []Placement{
		{FieldID: "total", Value: "1.250,00 lei", Page: 1, X: 400, Y: 100},
		{FieldID: "annex", Value: "Anexa 1", Page: 5, X: 72, Y: 72},
		{FieldID: "blank", Value: "  ", Page: 0, X: 72, Y: 72},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := []Skip{{Name: "annex", Reason: ReasonPageMissing}, {Name: "blank", Reason: ReasonEmptyValue}}
	if diff := cmp.Diff(want, res.Skipped); diff != "" {
		t.Errorf("Skipped (-want +got):\n%s", diff)
	}
	if res.Drawn != 1 || len(res.Lines) != 1 || res.Lines[0].Page != 1 {
		t.Errorf("Drawn = %d, lines = %+v", res.Drawn, res.Lines)
	}
}

func TestWrapLines(t *testing.T) {
	width := func(s string) float64 { return float64(len(s)) }
	tests := []struct {
		name string
		text string
		max  float64
		want []string
	}{
		{"fits", "ab cd", 10, []string{"ab cd"}},
		{"greedy", "aa bb cc dd", 5, []string{"aa bb", "cc dd"}},
		{"hard breaks", "aa\n\nbb", 10, []string{"aa", "", "bb"}},
		{"long word split", "abcdefgh ij", 3, []string{"abc", "def", "gh", "ij"}},
		{"no limit", "aa   bb", 0, []string{"aa bb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, wrapLines(tt.text, tt.max, width)); diff != "" {
				t.Errorf("wrapLines (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseDA(t *testing.T) {
	tests := []struct {
		da   string
		want appearanceStyle
	}{
		{"/Helv 0 Tf 0 g", appearanceStyle{size: 0, color: "0 g"}},
		{"/TiRo 11 Tf 0.2 0.4 0.6 rg", appearanceStyle{size: 11, color: "0.2 0.4 0.6 rg"}},
		{"", appearanceStyle{color: "0 g"}},
	}
	for _, tt := range tests {
		if got := parseDA(tt.da); got != tt.want {
			t.Errorf("parseDA(%q) = %+v, want %+v", tt.da, got, tt.want)
		}
	}
}

func TestTextAppearance_AutoSizeFits(t *testing.T) {
	m := newMetrics()
	lay := layoutText(m, "Societatea Comerciala Exemplu Foarte Lunga SRL", 120, 14, appearanceStyle{color: "0 g"}, 0, false)
	if lay.size >= autoFontSize {
		t.Errorf("size = %v, want shrunk below %v", lay.size, autoFontSize)
	}
	if w := m.width(lay.lines[0], lay.size); w > 120-2*padding && lay.size > minFontSize {
		t.Errorf("line width %.2f exceeds box", w)
	}
}
