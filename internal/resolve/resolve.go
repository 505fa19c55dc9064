// Package resolve rewrites the hyperlink and media references embedded in a
// document's markup to package-relative paths. A reference that cannot be
// parsed or located degrades to a recorded ResolutionError; resolution never
// fails a document.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/colporter/internal/content"
	"github.com/dgallion1/colporter/internal/ref"
	"github.com/dgallion1/colporter/internal/repo"
)

// mediaAttrs maps each media-carrying element to the attribute holding its
// reference. Anchors are scanned separately.
var mediaAttrs = map[string]string{
	"img":    "src",
	"audio":  "src",
	"video":  "src",
	"object": "data",
	"source": "src",
	"span":   "data-src",
}

var (
	// Absolute external schemes are never touched.
	schemeRe = regexp.MustCompile(`(?i)^(https?|mailto|ftp|file|javascript):`)

	// The shape this resolver itself writes for module links. Skipping it
	// keeps a second Rewrite over already-resolved markup a no-op.
	resolvedModuleRe = regexp.MustCompile(`^[^/#]+@[^/#]+\.html(#.*)?$`)
)

// Resolver rewrites references against a content repository.
type Resolver struct {
	repo repo.Repository
}

func New(r repo.Repository) *Resolver {
	return &Resolver{repo: r}
}

// Rewrite parses doc.Body, rewrites every resolvable reference in place,
// reserializes the markup into doc.Body, and returns the reference errors
// collected along the way. The returned error is reserved for
// infrastructure failures (markup that cannot be parsed, repository errors
// other than a miss); reference-level failures are values in the slice.
//
// Scan order is fixed: the media surface first, then anchors, each in
// depth-first document order, so output is deterministic for a fixed input.
func (rs *Resolver) Rewrite(ctx context.Context, doc *content.Node) ([]content.ResolutionError, error) {
	if doc.Body == "" {
		return nil, nil
	}

	nodes, err := html.ParseFragment(strings.NewReader(doc.Body), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, fmt.Errorf("parse markup of %s: %w", doc.ID, err)
	}

	var errs []content.ResolutionError

	record := func(raw string, kind content.ErrorKind) {
		errs = append(errs, content.ResolutionError{
			DocumentID: doc.ID,
			Ref:        raw,
			Kind:       kind,
		})
	}

	for _, n := range nodes {
		if err := rs.rewriteMedia(ctx, n, record); err != nil {
			return errs, err
		}
	}
	for _, n := range nodes {
		if err := rs.rewriteAnchors(ctx, n, record); err != nil {
			return errs, err
		}
	}

	var b strings.Builder
	for _, n := range nodes {
		if err := html.Render(&b, n); err != nil {
			return errs, fmt.Errorf("render markup of %s: %w", doc.ID, err)
		}
	}
	doc.Body = b.String()

	return errs, nil
}

func (rs *Resolver) rewriteMedia(ctx context.Context, n *html.Node, record func(string, content.ErrorKind)) error {
	if n.Type == html.ElementNode {
		if attrName, ok := mediaAttrs[n.Data]; ok {
			if _, found := getAttr(n, attrName); found {
				if err := rs.rewriteValue(ctx, n, attrName, record); err != nil {
					return err
				}
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := rs.rewriteMedia(ctx, c, record); err != nil {
			return err
		}
	}
	return nil
}

func (rs *Resolver) rewriteAnchors(ctx context.Context, n *html.Node, record func(string, content.ErrorKind)) error {
	if n.Type == html.ElementNode && n.Data == "a" {
		if _, found := getAttr(n, "href"); found {
			if err := rs.rewriteValue(ctx, n, "href", record); err != nil {
				return err
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := rs.rewriteAnchors(ctx, c, record); err != nil {
			return err
		}
	}
	return nil
}

// rewriteValue handles one candidate attribute value. The element is left
// untouched on every failure path.
func (rs *Resolver) rewriteValue(ctx context.Context, n *html.Node, attrName string, record func(string, content.ErrorKind)) error {
	val, _ := getAttr(n, attrName)
	if passThrough(val) {
		return nil
	}

	r, err := ref.Parse(val)
	if err != nil {
		record(val, content.RefInvalid)
		return nil
	}

	switch r.Kind {
	case ref.KindResource:
		info, err := rs.repo.ResolveResource(ctx, r.Filename, r.OwnerID, r.OwnerVersion)
		if errors.Is(err, content.ErrNotFound) {
			record(val, content.RefNotFound)
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve resource %q: %w", val, err)
		}
		setAttr(n, attrName, "../resources/"+info.Hash)
		setAttr(n, "data-filename", info.Filename)
		setAttr(n, "data-mediatype", info.MediaType)

	case ref.KindModule:
		info, err := rs.repo.ResolveModule(ctx, r.TargetID, r.TargetVersion)
		if errors.Is(err, content.ErrNotFound) {
			record(val, content.RefNotFound)
			return nil
		}
		if err != nil {
			return fmt.Errorf("resolve module %q: %w", val, err)
		}
		setAttr(n, attrName, info.CanonicalID+"@"+info.Version+".html"+r.Fragment)
	}
	return nil
}

// passThrough reports whether a reference value must be left exactly as
// authored: empty values, in-page anchors, absolute external schemes, the
// legacy admin path, already package-relative paths, and the resolved
// module-link shape.
func passThrough(val string) bool {
	switch {
	case val == "":
		return true
	case strings.HasPrefix(val, "#"):
		return true
	case schemeRe.MatchString(val):
		return true
	case strings.HasPrefix(val, "/help"):
		return true
	case strings.HasPrefix(val, "../"):
		return true
	case resolvedModuleRe.MatchString(val):
		return true
	}
	return false
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == name {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: val})
}
