// Package validate checks an assembled DOCX before it is delivered:
// the archive must open, and no template placeholder may survive.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/dgallion1/docforge/internal/runmerge"
)

// Issue codes.
const (
	CodeArchive        = "archive_unreadable"
	CodeMainPart       = "main_part_missing"
	CodeMalformed      = "part_malformed"
	CodePlaceholder    = "unreplaced_placeholder"
	CodeLabel          = "unreplaced_label"
	CodeBlank          = "unfilled_blank"
	CodeExpectedField  = "expected_field_unreplaced"
	CodeMissingContent = "missing_content"
)

// Issue is one finding.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Part    string `json:"part,omitempty"`
}

// Stats describes the validated document.
type Stats struct {
	TotalParagraphs        int `json:"total_paragraphs"`
	TotalTables            int `json:"total_tables"`
	UnreplacedPlaceholders int `json:"unreplaced_placeholders"`
}

// Result is valid when there are no errors; warnings never affect it.
type Result struct {
	Valid    bool    `json:"valid"`
	Warnings []Issue `json:"warnings"`
	Errors   []Issue `json:"errors"`
	Stats    Stats   `json:"stats"`
}

var (
	braceRe      = regexp.MustCompile(`\{\{[^{}]*\}\}`)
	labelRe      = regexp.MustCompile(`\[\p{Lu}[^\[\]\n]*\]`)
	underscoreRe = regexp.MustCompile(`_{5,}`)
)

// Validate inspects a DOCX archive. expectedFields are field ids whose
// placeholders must no longer appear in the body.
func Validate(archive []byte, expectedFields []string) Result {
	res := Result{Warnings: []Issue{}, Errors: []Issue{}}

	pkg, err := ooxml.Open(archive)
	if err != nil {
		code := CodeArchive
		if errors.Is(err, ooxml.ErrMissingMainPart) {
			code = CodeMainPart
		}
		res.Errors = append(res.Errors, Issue{Code: code, Message: err.Error()})
		return res
	}

	main, err := pkg.Tree(pkg.MainPart())
	if err != nil {
		res.Errors = append(res.Errors, Issue{Code: CodeMalformed, Message: err.Error(), Part: pkg.MainPart()})
		return res
	}

	res.Stats = stats(archive, main)
	res.scanPart(pkg.MainPart(), main)
	for _, name := range pkg.HeaderFooterParts() {
		tree, err := pkg.Tree(name)
		if err != nil {
			res.Errors = append(res.Errors, Issue{Code: CodeMalformed, Message: err.Error(), Part: name})
			continue
		}
		res.scanPart(name, tree)
	}

	bodyText := paragraphTexts(main)
	for _, id := range expectedFields {
		if id == "" {
			continue
		}
		token := runmerge.Token(id)
		for _, text := range bodyText {
			if strings.Contains(text, token) {
				res.Warnings = append(res.Warnings, Issue{
					Code:    CodeExpectedField,
					Message: fmt.Sprintf("field %q still shows its placeholder %s", id, token),
					Part:    pkg.MainPart(),
				})
				break
			}
		}
	}

	if !hasContent(main) {
		res.Warnings = append(res.Warnings, Issue{
			Code:    CodeMissingContent,
			Message: "document body has no text",
			Part:    pkg.MainPart(),
		})
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// scanPart reports every placeholder-shaped token left in a part. Text is
// read per paragraph so tokens split across runs are still found.
func (r *Result) scanPart(name string, root *ooxml.Node) {
	checks := []struct {
		re   *regexp.Regexp
		code string
		what string
	}{
		{braceRe, CodePlaceholder, "placeholder"},
		{labelRe, CodeLabel, "bracketed label"},
		{underscoreRe, CodeBlank, "blank line"},
	}
	for _, text := range paragraphTexts(root) {
		for _, c := range checks {
			for _, m := range c.re.FindAllString(text, -1) {
				r.Warnings = append(r.Warnings, Issue{
					Code:    c.code,
					Message: fmt.Sprintf("unreplaced %s %s", c.what, m),
					Part:    name,
				})
				r.Stats.UnreplacedPlaceholders++
			}
		}
	}
}

func paragraphTexts(root *ooxml.Node) []string {
	paras := ooxml.Paragraphs(root)
	out := make([]string, 0, len(paras))
	for _, p := range paras {
		out = append(out, ooxml.ParagraphText(p))
	}
	return out
}

func hasContent(main *ooxml.Node) bool {
	body := ooxml.Body(main)
	if body == nil {
		return false
	}
	for _, p := range ooxml.Paragraphs(body) {
		if strings.TrimSpace(ooxml.ParagraphText(p)) != "" {
			return true
		}
	}
	return false
}
