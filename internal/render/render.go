// Package render produces the synthesized markup the export needs beyond
// stored content: composite table-of-contents bodies and the XHTML shell
// wrapped around every packaged document.
package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/dgallion1/colporter/internal/content"
)

// tocTmpl renders a composite's member forest as nested ordered lists.
// Document entries link the same <id>@<version>.html names the packaging
// step assigns; grouping entries become unlinked headings over their nested
// members.
var tocTmpl = template.Must(template.New("toc").Parse(`{{define "entries"}}<ol>{{range .}}<li>{{if .IsSubcollection}}<span>{{.Title}}</span>{{template "entries" .Children}}{{else}}<a href="{{.ID}}@{{.Version}}.html">{{.Title}}</a>{{end}}</li>{{end}}</ol>{{end}}<nav class="toc"><h1>{{.Title}}</h1>{{template "entries" .Children}}</nav>`))

// pageTmpl is the minimal XHTML shell for one packaged document.
var pageTmpl = template.Must(template.New("page").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><meta charset="utf-8"/><title>{{.Title}}</title></head>
<body>
{{.Body}}
</body>
</html>
`))

// TOC renders the synthesized body of a composite from its member listing.
func TOC(title string, children []content.ChildRef) (string, error) {
	var b strings.Builder
	err := tocTmpl.Execute(&b, struct {
		Title    string
		Children []content.ChildRef
	}{Title: title, Children: children})
	if err != nil {
		return "", fmt.Errorf("render toc: %w", err)
	}
	return b.String(), nil
}

// Page wraps a document's body fragment in a full XHTML document. The body
// is repository markup that has already been through reference resolution;
// it is inserted verbatim.
func Page(node *content.Node) (string, error) {
	var b strings.Builder
	err := pageTmpl.Execute(&b, struct {
		Title string
		Body  template.HTML
	}{Title: node.Title, Body: template.HTML(node.Body)})
	if err != nil {
		return "", fmt.Errorf("render page %s: %w", node.ID, err)
	}
	return b.String(), nil
}
