package outline

import (
	"bytes"
	"strings"

	"github.com/dgallion1/docforge/internal/ooxml"
	"github.com/fumiama/go-docx"
)

// Section is a heading with the headings nested under it.
type Section struct {
	Title    string     `json:"title"`
	Level    int        `json:"level"`
	Children []*Section `json:"children,omitempty"`
}

// headings lists the body headings. go-docx reads the paragraph styles;
// a paragraph whose style names no level falls back to the engine's own
// tree, which also understands outline levels. When go-docx cannot parse
// the archive, or sees a different paragraph sequence, the tree is used
// throughout.
func headings(archive []byte, main *ooxml.Node) []Heading {
	doc, err := docx.Parse(bytes.NewReader(archive), int64(len(archive)))
	if err != nil || doc == nil {
		return treeHeadings(main)
	}
	var paras []*docx.Paragraph
	for _, item := range doc.Document.Body.Items {
		if para, ok := item.(*docx.Paragraph); ok {
			paras = append(paras, para)
		}
	}
	nodes := ooxml.Body(main).ChildrenNamed("w:p")
	if len(paras) != len(nodes) {
		return treeHeadings(main)
	}
	var out []Heading
	for i, para := range paras {
		level := docxHeadingLevel(para)
		if level == 0 {
			level = ooxml.HeadingLevel(nodes[i])
		}
		text := docxParagraphText(para)
		if level > 0 && text != "" {
			out = append(out, Heading{Level: level, Text: text, Numbered: numberedRe.MatchString(text)})
		}
	}
	return withPaths(out)
}

func treeHeadings(main *ooxml.Node) []Heading {
	var out []Heading
	for _, p := range ooxml.Body(main).ChildrenNamed("w:p") {
		level := ooxml.HeadingLevel(p)
		text := strings.TrimSpace(ooxml.ParagraphText(p))
		if level > 0 && text != "" {
			out = append(out, Heading{Level: level, Text: text, Numbered: numberedRe.MatchString(text)})
		}
	}
	return withPaths(out)
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	return ooxml.HeadingStyleLevel(para.Properties.Style.Val)
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}

// withPaths fills each heading's breadcrumb of enclosing heading texts.
func withPaths(hs []Heading) []Heading {
	var stack []Heading
	for i := range hs {
		for len(stack) > 0 && stack[len(stack)-1].Level >= hs[i].Level {
			stack = stack[:len(stack)-1]
		}
		path := make([]string, 0, len(stack)+1)
		for _, h := range stack {
			path = append(path, h.Text)
		}
		hs[i].Path = append(path, hs[i].Text)
		stack = append(stack, hs[i])
	}
	return hs
}

// buildSections nests headings by level.
func buildSections(hs []Heading) []*Section {
	type stackEntry struct {
		node  *Section
		level int
	}
	root := &Section{}
	stack := []stackEntry{{node: root, level: 0}}
	for _, h := range hs {
		s := &Section{Title: h.Text, Level: h.Level}
		for len(stack) > 1 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].node
		parent.Children = append(parent.Children, s)
		stack = append(stack, stackEntry{node: s, level: h.Level})
	}
	if root.Children == nil {
		return []*Section{}
	}
	return root.Children
}
