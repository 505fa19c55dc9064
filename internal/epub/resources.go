package epub

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// resourceRef is one embedded resource discovered in rewritten markup.
type resourceRef struct {
	Hash      string
	Filename  string
	MediaType string
}

// scanResources collects the package-relative resource references the
// resolver wrote into a document body, in document order. The auxiliary
// data-filename and data-mediatype attributes travel with each reference.
func scanResources(body string) []resourceRef {
	if body == "" {
		return nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(body), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil
	}

	var refs []resourceRef
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			var r resourceRef
			for _, a := range n.Attr {
				switch {
				case strings.HasPrefix(a.Val, "../resources/"):
					r.Hash = strings.TrimPrefix(a.Val, "../resources/")
				case a.Key == "data-filename":
					r.Filename = a.Val
				case a.Key == "data-mediatype":
					r.MediaType = a.Val
				}
			}
			if r.Hash != "" {
				refs = append(refs, r)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return refs
}
