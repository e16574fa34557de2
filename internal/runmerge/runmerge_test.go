package runmerge

import (
	"strings"
	"testing"

	"github.com/dgallion1/docforge/internal/ooxml"
)

func paragraph(t *testing.T, markup string) *ooxml.Node {
	t.Helper()
	root, err := ooxml.Parse([]byte(markup))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root.Root()
}

func TestParagraph_SplitAcrossRuns(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "three runs",
			markup: `<w:p><w:r><w:t>{{</w:t></w:r><w:r><w:t>name</w:t></w:r><w:r><w:t>}}</w:t></w:r></w:p>`,
			want:   "{{name}}",
		},
		{
			name:   "prefix and suffix text",
			markup: `<w:p><w:r><w:t xml:space="preserve">Client: {{cli</w:t></w:r><w:r><w:rPr><w:b/></w:rPr><w:t>ent}} end</w:t></w:r></w:p>`,
			want:   "Client: {{client}} end",
		},
		{
			name:   "bracket label",
			markup: `<w:p><w:r><w:t>[Nume </w:t></w:r><w:r><w:t>Client]</w:t></w:r></w:p>`,
			want:   "[Nume Client]",
		},
		{
			name:   "many runs",
			markup: `<w:p><w:r><w:t>{</w:t></w:r><w:r><w:t>{</w:t></w:r><w:r><w:t>a</w:t></w:r><w:r><w:t>b</w:t></w:r><w:r><w:t>}</w:t></w:r><w:r><w:t>}</w:t></w:r></w:p>`,
			want:   "{{ab}}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paragraph(t, tt.markup)
			runsBefore := len(ooxml.Runs(p))

			merged, ok := Paragraph(p)
			if !ok || merged == 0 {
				t.Fatalf("Paragraph() = %d, %v", merged, ok)
			}
			if got := len(ooxml.Runs(p)); got != runsBefore {
				t.Errorf("run count changed: %d -> %d", runsBefore, got)
			}
			first := ooxml.TextNodes(p)[0].CharData()
			if !strings.Contains(first, tt.want) {
				t.Errorf("first run text = %q, want it to contain %q", first, tt.want)
			}
			for _, tn := range ooxml.TextNodes(p)[1:] {
				if s := tn.CharData(); strings.ContainsAny(s, "{}[]") {
					t.Errorf("stray fragment %q left in later run", s)
				}
			}
		})
	}
}

func TestParagraph_SingleRunIsNoOp(t *testing.T) {
	markup := `<w:p><w:r><w:t>{{name}}</w:t></w:r><w:r><w:t> tail</w:t></w:r></w:p>`
	p := paragraph(t, markup)
	merged, ok := Paragraph(p)
	if !ok || merged != 0 {
		t.Fatalf("Paragraph() = %d, %v", merged, ok)
	}
	if got := string(p.Bytes()); got != markup {
		t.Errorf("paragraph changed:\n%s", got)
	}
}

func TestParagraph_AmbiguousLeftUnmodified(t *testing.T) {
	markup := `<w:p><w:r><w:t>{{na</w:t></w:r><w:hyperlink><w:r><w:t>me}}</w:t></w:r></w:hyperlink></w:p>`
	p := paragraph(t, markup)
	merged, ok := Paragraph(p)
	if ok || merged != 0 {
		t.Fatalf("Paragraph() = %d, %v; want 0, false", merged, ok)
	}
	if got := string(p.Bytes()); got != markup {
		t.Errorf("paragraph changed:\n%s", got)
	}
}

func TestParagraph_FieldCodeBetweenRunsIsAmbiguous(t *testing.T) {
	markup := `<w:p><w:r><w:t>{{na</w:t></w:r><w:r><w:fldChar w:fldCharType="begin"/></w:r><w:r><w:t>me}}</w:t></w:r></w:p>`
	p := paragraph(t, markup)
	if _, ok := Paragraph(p); ok {
		t.Fatalf("expected ambiguous merge to be refused")
	}
}

func TestParagraph_TwoPlaceholdersSharingARun(t *testing.T) {
	p := paragraph(t, `<w:p><w:r><w:t>{{a</w:t></w:r><w:r><w:t>}} and {{b</w:t></w:r><w:r><w:t>}}</w:t></w:r></w:p>`)
	merged, ok := Paragraph(p)
	if !ok || merged != 2 {
		t.Fatalf("Paragraph() = %d, %v; want 2, true", merged, ok)
	}
	if got := ooxml.TextNodes(p)[0].CharData(); got != "{{a}} and {{b}}" {
		t.Errorf("merged text = %q", got)
	}
}

func TestToken(t *testing.T) {
	tests := map[string]string{
		"client_name":     "{{client_name}}",
		"{{client_name}}": "{{client_name}}",
		"[Nume Client]":   "[Nume Client]",
		"________":        "________",
		"a [b] c":         "{{a [b] c}}",
	}
	for in, want := range tests {
		if got := Token(in); got != want {
			t.Errorf("Token(%q) = %q, want %q", in, got, want)
		}
	}
}
