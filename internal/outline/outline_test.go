package outline

import (
	"testing"

	"github.com/dgallion1/docforge/internal/docxtest"
	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/google/go-cmp/cmp"
)

func TestInspect(t *testing.T) {
	body := docxtest.Heading(1, "1. Date client") +
		docxtest.P("Nume: {{cli", "ent}}, CUI [CUI Client]") +
		docxtest.Heading(2, "1.1 Adresa") +
		docxtest.P("{{client}} ________") +
		docxtest.Heading(1, "Anexe") +
		docxtest.Table([]string{"Produs", "Cant."}, []string{"{{item}}", "{{qty}}"})
	archive := docxtest.Build(t, body, docxtest.WithHeader(docxtest.P("{{client}}")))

	out, err := Inspect(archive)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}

	wantPh := []Placeholder{
		{Token: "{{client}}", Count: 3, Parts: []string{"word/document.xml", "word/header1.xml"}},
		{Token: "[CUI Client]", Count: 1, Parts: []string{"word/document.xml"}},
		{Token: "________", Count: 1, Parts: []string{"word/document.xml"}},
		{Token: "{{item}}", Count: 1, Parts: []string{"word/document.xml"}},
		{Token: "{{qty}}", Count: 1, Parts: []string{"word/document.xml"}},
	}
	if diff := cmp.Diff(wantPh, out.Placeholders); diff != "" {
		t.Errorf("placeholders mismatch (-want +got):\n%s", diff)
	}

	wantTables := []Table{{Index: 0, Rows: 2, Cells: []int{2, 2}, Header: []string{"Produs", "Cant."}}}
	if diff := cmp.Diff(wantTables, out.Tables); diff != "" {
		t.Errorf("tables mismatch (-want +got):\n%s", diff)
	}

	wantHeads := []Heading{
		{Level: 1, Text: "1. Date client", Numbered: true, Path: []string{"1. Date client"}},
		{Level: 2, Text: "1.1 Adresa", Numbered: true, Path: []string{"1. Date client", "1.1 Adresa"}},
		{Level: 1, Text: "Anexe", Path: []string{"Anexe"}},
	}
	if diff := cmp.Diff(wantHeads, out.Headings); diff != "" {
		t.Errorf("headings mismatch (-want +got):\n%s", diff)
	}
	if len(out.Sections) != 2 || len(out.Sections[0].Children) != 1 {
		t.Errorf("sections = %+v", out.Sections)
	}
}

func TestInspect_NotAPackage(t *testing.T) {
	if _, err := Inspect([]byte("nope")); err == nil {
		t.Fatal("expected error")
	}
}

func TestTreeHeadings_OutlineLevel(t *testing.T) {
	root, err := ooxml.Parse([]byte(docxtest.DocumentXML(
		`<w:p><w:pPr><w:outlineLvl w:val="0"/></w:pPr>` + docxtest.R("Capitol") + `</w:p>` +
			docxtest.Heading(3, "Detaliu"),
	)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := treeHeadings(root)
	want := []Heading{
		{Level: 1, Text: "Capitol", Path: []string{"Capitol"}},
		{Level: 3, Text: "Detaliu", Path: []string{"Capitol", "Detaliu"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("headings mismatch (-want +got):\n%s", diff)
	}
}

func TestInspect_OutlineLevelHeading(t *testing.T) {
	archive := docxtest.Build(t, docxtest.Heading(1, "Contract")+
		`<w:p><w:pPr><w:outlineLvl w:val="1"/></w:pPr>`+docxtest.R("Obiect")+`</w:p>`+
		docxtest.P("text"))

	out, err := Inspect(archive)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	want := []Heading{
		{Level: 1, Text: "Contract", Path: []string{"Contract"}},
		{Level: 2, Text: "Obiect", Path: []string{"Contract", "Obiect"}},
	}
	if diff := cmp.Diff(want, out.Headings); diff != "" {
		t.Errorf("headings mismatch (-want +got):\n%s", diff)
	}
}
