package assembler

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/docforge/internal/docxtest"
	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/dgallion1/docforge/internal/sections"
	"github.com/dgallion1/docforge/internal/tables"
	"github.com/dgallion1/docforge/internal/validate"
	"github.com/google/go-cmp/cmp"
)

func contractTemplate(t *testing.T) []byte {
	t.Helper()
	body := docxtest.P("Contract nr. {{contract_no}}") +
		docxtest.P("Client: ", "{{cli", "ent}}") +
		docxtest.Heading(1, "1. Obiectul contractului") +
		docxtest.P("{{scope}}") +
		docxtest.Table([]string{"Serviciu", "Valoare"}, []string{"", ""}) +
		docxtest.Heading(1, "2. Penalitati") +
		docxtest.P("Penalitati de 0,1% pe zi.") +
		docxtest.Heading(1, "3. Dispozitii finale") +
		docxtest.P("Semnat azi, {{date}}.")
	return docxtest.Build(t, body,
		docxtest.WithHeader(docxtest.P("{{company}}")),
		docxtest.WithFooter(docxtest.P("Contract ", "{{contract_no}}")),
	)
}

func contractInput(t *testing.T) GenerationInput {
	return GenerationInput{
		Template: contractTemplate(t),
		FieldValues: map[string]string{
			"contract_no": "42/2026",
			"client":      "Acme SRL",
			"scope":       "Prestatorul livreaza **doua** module:\n\n- proiectare\n- implementare",
			"date":        "15.10.2026",
			"value":       "3500.5",
			"company":     "Docforge SA",
		},
		NarrativeFields: []string{"scope"},
		DynamicTables: []tables.Config{{
			TableIndex:    0,
			ModelRowIndex: 1,
			Data:          [][]string{{"Proiectare", "1.000,00"}, {"Implementare", "2.500,50"}},
			AutoTotals:    true,
			TotalsColumns: []int{1},
		}},
		ConditionalSections: []sections.Config{{
			SectionID:      "penalties",
			Condition:      "value > 10000",
			IncludeHeading: true,
			HeadingText:    "Penalitati",
		}},
		ExpectedFields: []string{"contract_no", "client", "scope", "date"},
	}
}

func TestAssemble_EndToEnd(t *testing.T) {
	res, err := New(nil, Options{}).Assemble(contractInput(t))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !res.Validation.Valid || res.Validation.Stats.UnreplacedPlaceholders != 0 {
		t.Fatalf("validation = %+v", res.Validation)
	}
	if len(res.Validation.Warnings) != 0 {
		t.Errorf("warnings = %+v", res.Validation.Warnings)
	}
	if diff := cmp.Diff([]string{"penalties"}, res.Sections.Removed); diff != "" {
		t.Errorf("removed sections (-want +got):\n%s", diff)
	}
	// company lives only in the header; value only feeds the condition.
	if diff := cmp.Diff([]string{"{{company}}", "{{value}}"}, res.Body.Missing); diff != "" {
		t.Errorf("missing in body (-want +got):\n%s", diff)
	}

	body := docxtest.ReadPart(t, res.Document, "word/document.xml")
	for _, want := range []string{"42/2026", "Acme SRL", "proiectare", "implementare", "Proiectare", "3.500,50", "2. Dispozitii finale", "15.10.2026"} {
		if !strings.Contains(body, want) {
			t.Errorf("body lacks %q", want)
		}
	}
	for _, gone := range []string{"Penalitati", "{{", "3. Dispozitii"} {
		if strings.Contains(body, gone) {
			t.Errorf("body still contains %q", gone)
		}
	}

	if h := docxtest.ReadPart(t, res.Document, "word/header1.xml"); !strings.Contains(h, "Docforge SA") {
		t.Errorf("header = %s", h)
	}
	if f := docxtest.ReadPart(t, res.Document, "word/footer1.xml"); !strings.Contains(f, "42/2026") {
		t.Errorf("footer = %s", f)
	}
	if len(res.HeaderFooter) != 2 {
		t.Errorf("header/footer reports = %+v", res.HeaderFooter)
	}
}

func TestAssemble_ConditionDataOverridesFieldValues(t *testing.T) {
	in := contractInput(t)
	in.ConditionData = map[string]any{"value": 25000}
	res, err := New(nil, Options{}).Assemble(in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(res.Sections.Removed) != 0 {
		t.Errorf("removed = %v, want the section kept", res.Sections.Removed)
	}
	if body := docxtest.ReadPart(t, res.Document, "word/document.xml"); !strings.Contains(body, "Penalitati") {
		t.Error("kept section missing from body")
	}
}

func TestAssemble_UnfilledPlaceholderIsAWarning(t *testing.T) {
	tmpl := docxtest.Build(t, docxtest.P("Beneficiar: {{beneficiary}}"))
	res, err := New(nil, Options{}).Assemble(GenerationInput{
		Template:       tmpl,
		FieldValues:    map[string]string{"unused": "x"},
		ExpectedFields: []string{"beneficiary"},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !res.Validation.Valid {
		t.Errorf("Valid = false, warnings must not invalidate: %+v", res.Validation)
	}
	var codes []string
	for _, w := range res.Validation.Warnings {
		codes = append(codes, w.Code)
	}
	if diff := cmp.Diff([]string{validate.CodePlaceholder, validate.CodeExpectedField}, codes); diff != "" {
		t.Errorf("warning codes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"{{unused}}"}, res.Body.Missing); diff != "" {
		t.Errorf("missing (-want +got):\n%s", diff)
	}
}

func TestAssemble_HeaderFooterValuesWin(t *testing.T) {
	tmpl := docxtest.Build(t, docxtest.P("{{company}}"), docxtest.WithHeader(docxtest.P("{{company}} - [Department]")))
	res, err := New(nil, Options{}).Assemble(GenerationInput{
		Template:           tmpl,
		FieldValues:        map[string]string{"company": "Acme SRL"},
		HeaderFooterValues: map[string]string{"company": "ACME", "[Department]": "Juridic"},
	})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if body := docxtest.ReadPart(t, res.Document, "word/document.xml"); !strings.Contains(body, "Acme SRL") {
		t.Errorf("body = %s", body)
	}
	if h := docxtest.ReadPart(t, res.Document, "word/header1.xml"); !strings.Contains(h, "ACME - Juridic") {
		t.Errorf("header = %s", h)
	}
}

func TestAssemble_StructuralErrors(t *testing.T) {
	tests := []struct {
		name     string
		template []byte
		want     error
	}{
		{"empty", nil, ErrEmptyTemplate},
		{"not a zip", []byte("%PDF-1.7 not a docx"), ooxml.ErrNotPackage},
		{"no main part", docxtest.Zip(t, map[string]string{"[Content_Types].xml": "<Types/>"}), ooxml.ErrMissingMainPart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil, Options{}).Assemble(GenerationInput{Template: tt.template})
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var aerr *Error
			if !errors.As(err, &aerr) || aerr.Op != "open" {
				t.Errorf("error %v is not an open *Error", err)
			}
		})
	}
}

func TestAssemble_DoesNotMutateInput(t *testing.T) {
	in := contractInput(t)
	orig := append([]byte(nil), in.Template...)
	if _, err := New(nil, Options{}).Assemble(in); err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !cmp.Equal(orig, in.Template) {
		t.Error("template buffer was modified")
	}
}
