package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docforge/internal/assembler"
	"github.com/dgallion1/docforge/internal/docxtest"
	"github.com/dgallion1/docforge/internal/tables"
	"github.com/google/go-cmp/cmp"
)

func TestParseTableSource(t *testing.T) {
	tests := []struct {
		in      string
		want    tableSource
		wantErr bool
	}{
		{"0:1:rows.csv", tableSource{0, 1, "rows.csv"}, false},
		{"2:0:C:/data/rows.csv", tableSource{2, 0, "C:/data/rows.csv"}, false},
		{"0:1", tableSource{}, true},
		{"x:1:rows.csv", tableSource{}, true},
		{"0:-1:rows.csv", tableSource{}, true},
		{"0:1:", tableSource{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTableSource(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestApplyTables(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", []byte("Produs,Suma\nLaptop,100\nMouse,20\n"))
	b := writeFile(t, dir, "b.csv", []byte("x\n"))

	in := assembler.GenerationInput{DynamicTables: []tables.Config{{TableIndex: 0, ModelRowIndex: 5, AutoTotals: true}}}
	if err := applyTables(&in, []tableSource{{0, 1, a}, {3, 0, b}}, true); err != nil {
		t.Fatal(err)
	}
	want := []tables.Config{
		{TableIndex: 0, ModelRowIndex: 1, AutoTotals: true, Data: [][]string{{"Laptop", "100"}, {"Mouse", "20"}}},
		{TableIndex: 3, ModelRowIndex: 0, Data: [][]string{}},
	}
	if diff := cmp.Diff(want, in.DynamicTables); diff != "" {
		t.Errorf("tables (-want +got):\n%s", diff)
	}

	if err := applyTables(&in, []tableSource{{0, 0, filepath.Join(dir, "missing.csv")}}, false); err == nil {
		t.Error("missing csv: want error")
	}
}

func TestRun_RenderWithTable(t *testing.T) {
	dir := t.TempDir()
	tmpl := writeFile(t, dir, "t.docx", docxtest.Build(t,
		docxtest.P("Client: {{client}}")+
			docxtest.Table([]string{"Produs", "Suma"}, []string{"x", "0"})))
	input := writeFile(t, dir, "in.json", []byte(`{"field_values":{"client":"Acme SRL"}}`))
	rows := writeFile(t, dir, "rows.csv", []byte("Laptop,100\nMouse,20\n"))
	out := filepath.Join(dir, "out.docx")

	var stdout, stderr bytes.Buffer
	code := run([]string{"render", "-template", tmpl, "-input", input, "-table", "0:1:" + rows, "-out", out}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}

	var res struct {
		Tables struct {
			Rows int `json:"rows"`
		} `json:"tables"`
		Validation struct {
			Valid bool `json:"valid"`
		} `json:"validation"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("stdout is not json: %v\n%s", err, stdout.String())
	}
	if res.Tables.Rows != 2 || !res.Validation.Valid {
		t.Errorf("result = %+v", res)
	}

	doc, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	body := docxtest.ReadPart(t, doc, "word/document.xml")
	for _, want := range []string{"Acme SRL", "Laptop", "Mouse"} {
		if !strings.Contains(body, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRun_Inspect(t *testing.T) {
	dir := t.TempDir()
	docx := writeFile(t, dir, "t.docx", docxtest.Build(t, docxtest.P("{{a}} and [Nume Client]")))
	txt := writeFile(t, dir, "t.txt", []byte("plain"))

	var stdout, stderr bytes.Buffer
	if code := run([]string{"inspect", docx}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit = %d, stderr = %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "{{a}}") {
		t.Errorf("stdout = %s", stdout.String())
	}

	stdout.Reset()
	stderr.Reset()
	if code := run([]string{"inspect", txt}, &stdout, &stderr); code != 1 {
		t.Errorf("unsupported file: exit = %d", code)
	}
}

func TestRun_ExitCodes(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.docx")
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no args", nil, 2},
		{"unknown command", []string{"bogus"}, 2},
		{"render without -out", []string{"render", "-template", "x.docx"}, 2},
		{"pdf without -template", []string{"pdf", "-out", "x.pdf"}, 2},
		{"undefined flag", []string{"render", "-nope"}, 2},
		{"bad table flag", []string{"render", "-table", "x:1:a.csv"}, 2},
		{"inspect without file", []string{"inspect"}, 2},
		{"help", []string{"help"}, 0},
		{"subcommand help", []string{"render", "-h"}, 0},
		{"missing template file", []string{"render", "-template", missing, "-out", filepath.Join(dir, "o.docx")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.want {
				t.Errorf("exit = %d, want %d: %s", code, tt.want, stderr.String())
			}
		})
	}
}
