package epub

import (
	"encoding/xml"
	"fmt"
	"html/template"
	"strings"
)

// spineItem is one document in reading order.
type spineItem struct {
	Name  string // file name under OEBPS/content/
	Title string
}

type opfPackage struct {
	XMLName  xml.Name    `xml:"package"`
	Xmlns    string      `xml:"xmlns,attr"`
	Version  string      `xml:"version,attr"`
	UniqueID string      `xml:"unique-identifier,attr"`
	Metadata opfMetadata `xml:"metadata"`
	Manifest opfManifest `xml:"manifest"`
	Spine    opfSpine    `xml:"spine"`
}

type opfMetadata struct {
	XmlnsDC    string        `xml:"xmlns:dc,attr"`
	Identifier opfIdentifier `xml:"dc:identifier"`
	Title      string        `xml:"dc:title"`
	Language   string        `xml:"dc:language"`
}

type opfIdentifier struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type opfManifest struct {
	Items []opfItem `xml:"item"`
}

type opfItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr,omitempty"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// buildOPF assembles the package manifest and spine. Spine order is the walk
// order the sequence produced; it is the externally observable contract.
func buildOPF(meta Meta, spine []spineItem, resources []resourceRef) ([]byte, error) {
	pkg := opfPackage{
		Xmlns:    "http://www.idpf.org/2007/opf",
		Version:  "3.0",
		UniqueID: "pub-id",
		Metadata: opfMetadata{
			XmlnsDC:    "http://purl.org/dc/elements/1.1/",
			Identifier: opfIdentifier{ID: "pub-id", Value: meta.Identifier},
			Title:      meta.Title,
			Language:   meta.Language,
		},
		Spine: opfSpine{Toc: "ncx"},
	}

	pkg.Manifest.Items = append(pkg.Manifest.Items,
		opfItem{ID: "nav", Href: "nav.xhtml", MediaType: "application/xhtml+xml", Properties: "nav"},
		opfItem{ID: "ncx", Href: "toc.ncx", MediaType: "application/x-dtbncx+xml"},
	)
	for i, s := range spine {
		id := fmt.Sprintf("doc-%d", i)
		pkg.Manifest.Items = append(pkg.Manifest.Items, opfItem{
			ID:        id,
			Href:      "content/" + s.Name,
			MediaType: "application/xhtml+xml",
		})
		pkg.Spine.ItemRefs = append(pkg.Spine.ItemRefs, opfItemRef{IDRef: id})
	}
	for _, r := range resources {
		pkg.Manifest.Items = append(pkg.Manifest.Items, opfItem{
			ID:        "res-" + r.Hash,
			Href:      "resources/" + r.Hash,
			MediaType: r.MediaType,
		})
	}

	out, err := xml.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal opf: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

var navTmpl = template.Must(template.New("nav").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>{{.Title}}</title></head>
<body>
<nav epub:type="toc"><ol>
{{- range .Items}}
<li><a href="content/{{.Name}}">{{.Title}}</a></li>
{{- end}}
</ol></nav>
</body>
</html>
`))

func buildNav(meta Meta, spine []spineItem) ([]byte, error) {
	var b strings.Builder
	err := navTmpl.Execute(&b, struct {
		Title string
		Items []spineItem
	}{Title: meta.Title, Items: spine})
	if err != nil {
		return nil, fmt.Errorf("render nav: %w", err)
	}
	return []byte(b.String()), nil
}

type ncxRoot struct {
	XMLName xml.Name  `xml:"ncx"`
	Xmlns   string    `xml:"xmlns,attr"`
	Version string    `xml:"version,attr"`
	Head    ncxHead   `xml:"head"`
	Title   ncxText   `xml:"docTitle"`
	NavMap  ncxNavMap `xml:"navMap"`
}

type ncxHead struct {
	Meta []ncxMeta `xml:"meta"`
}

type ncxMeta struct {
	Name    string `xml:"name,attr"`
	Content string `xml:"content,attr"`
}

type ncxText struct {
	Text string `xml:"text"`
}

type ncxNavMap struct {
	Points []ncxNavPoint `xml:"navPoint"`
}

type ncxNavPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     ncxText    `xml:"navLabel"`
	Content   ncxContent `xml:"content"`
}

type ncxContent struct {
	Src string `xml:"src,attr"`
}

func buildNCX(meta Meta, spine []spineItem) ([]byte, error) {
	root := ncxRoot{
		Xmlns:   "http://www.daisy.org/z3986/2005/ncx/",
		Version: "2005-1",
		Head: ncxHead{Meta: []ncxMeta{
			{Name: "dtb:uid", Content: meta.Identifier},
		}},
		Title: ncxText{Text: meta.Title},
	}
	for i, s := range spine {
		root.NavMap.Points = append(root.NavMap.Points, ncxNavPoint{
			ID:        fmt.Sprintf("np-%d", i+1),
			PlayOrder: i + 1,
			Label:     ncxText{Text: s.Title},
			Content:   ncxContent{Src: "content/" + s.Name},
		})
	}

	out, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal ncx: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
