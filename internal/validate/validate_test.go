package validate

import (
	"testing"

	"github.com/dgallion1/docforge/internal/docxtest"
	"github.com/google/go-cmp/cmp"
)

func codes(issues []Issue) []string {
	out := []string{}
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

func TestValidate_CleanDocument(t *testing.T) {
	archive := docxtest.Build(t,
		docxtest.P("Client: Acme SRL")+docxtest.Table([]string{"a", "b"}, []string{"c", "d"}),
		docxtest.WithHeader(docxtest.P("Raport")),
	)
	res := Validate(archive, []string{"client"})
	if !res.Valid || len(res.Warnings) != 0 {
		t.Fatalf("result = %+v", res)
	}
	want := Stats{TotalParagraphs: 5, TotalTables: 1}
	if diff := cmp.Diff(want, res.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_LeftoverPlaceholders(t *testing.T) {
	body := docxtest.P("Dear {{", "name}},") +
		docxtest.P("Signed: [Nume Client] on [date]") +
		docxtest.P("Amount: ________ lei")
	archive := docxtest.Build(t, body,
		docxtest.WithFooter(docxtest.P("Page {{page_label}}")),
	)
	res := Validate(archive, []string{"name", "total"})

	if !res.Valid {
		t.Errorf("warnings must not invalidate: %+v", res.Errors)
	}
	want := []string{CodePlaceholder, CodeLabel, CodeBlank, CodePlaceholder, CodeExpectedField}
	if diff := cmp.Diff(want, codes(res.Warnings)); diff != "" {
		t.Errorf("warning codes mismatch (-want +got):\n%s", diff)
	}
	if res.Stats.UnreplacedPlaceholders != 4 {
		t.Errorf("UnreplacedPlaceholders = %d, want 4", res.Stats.UnreplacedPlaceholders)
	}
	if res.Warnings[3].Part != "word/footer1.xml" {
		t.Errorf("footer warning part = %q", res.Warnings[3].Part)
	}
}

func TestValidate_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		archive []byte
		code    string
	}{
		{"not a zip", []byte("plain text"), CodeArchive},
		{"no main part", docxtest.Zip(t, map[string]string{"[Content_Types].xml": "<Types/>"}), CodeMainPart},
		{"malformed main part", docxtest.Zip(t, map[string]string{"word/document.xml": "<w:document><w:body>"}), CodeMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.archive, nil)
			if res.Valid {
				t.Fatalf("expected invalid result")
			}
			if diff := cmp.Diff([]string{tt.code}, codes(res.Errors)); diff != "" {
				t.Errorf("error codes mismatch (-want +got):\n%s", diff)
			}
			if len(res.Warnings) != 0 {
				t.Errorf("validation should stop at the first structural error: %+v", res.Warnings)
			}
		})
	}
}

func TestValidate_EmptyBody(t *testing.T) {
	res := Validate(docxtest.Build(t, docxtest.P("  ")), nil)
	if !res.Valid {
		t.Fatalf("empty body is a warning, not an error")
	}
	if diff := cmp.Diff([]string{CodeMissingContent}, codes(res.Warnings)); diff != "" {
		t.Errorf("warning codes mismatch (-want +got):\n%s", diff)
	}
}

func TestTreeStats_NestedTables(t *testing.T) {
	inner := docxtest.Table([]string{"x"})
	body := docxtest.P("a") + `<w:tbl><w:tr><w:tc>` + docxtest.P("b") + inner + `</w:tc></w:tr></w:tbl>`
	archive := docxtest.Build(t, body)
	res := Validate(archive, nil)
	want := Stats{TotalParagraphs: 3, TotalTables: 2}
	if diff := cmp.Diff(want, res.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}
