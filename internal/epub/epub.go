// Package epub writes the export container. It consumes the walker's
// sequence one unit at a time, so an aborted export never pays for documents
// past the stopping point.
package epub

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/klauspost/compress/flate"

	"github.com/dgallion1/colporter/internal/content"
	"github.com/dgallion1/colporter/internal/render"
	"github.com/dgallion1/colporter/internal/repo"
)

// ErrTooManyRefErrors aborts a packaging run whose accumulated reference
// errors passed the caller's threshold.
var ErrTooManyRefErrors = errors.New("reference error threshold exceeded")

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// Meta identifies the package being written.
type Meta struct {
	Title      string
	Identifier string // root id@version
	Language   string // defaults to "en"
}

// Options controls packaging behavior.
type Options struct {
	// MaxRefErrors aborts the run once more than this many reference
	// errors have accumulated. 0 means unlimited.
	MaxRefErrors int
}

// Result summarizes one packaging run.
type Result struct {
	Documents int
	Resources int
	RefErrors []content.ResolutionError
	Warnings  []string
}

// Write streams the export sequence into an EPUB container on w. Reference
// errors ride along in the result; a structural error from the sequence, or
// a tripped error threshold, aborts with whatever was already counted.
// Resource payloads are fetched through payloads and deduplicated by hash;
// a missing payload degrades to a warning.
func Write(ctx context.Context, w io.Writer, meta Meta, seq iter.Seq2[content.ExportUnit, error], payloads repo.ResourcePayloader, opts Options) (Result, error) {
	var res Result

	if meta.Language == "" {
		meta.Language = "en"
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	// The mimetype entry must come first and must be stored uncompressed.
	mt, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return res, fmt.Errorf("write mimetype: %w", err)
	}
	if _, err := mt.Write([]byte("application/epub+zip")); err != nil {
		return res, fmt.Errorf("write mimetype: %w", err)
	}
	if err := writeEntry(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		return res, err
	}

	var (
		spine     []spineItem
		resources []resourceRef
		seen      = map[string]bool{} // resource hashes already queued
		pages     = map[string]bool{} // page names already written
	)

	for unit, err := range seq {
		if err != nil {
			return res, err
		}

		// The root arrives first; its title names the package unless the
		// caller chose one.
		if meta.Title == "" {
			meta.Title = unit.Node.Title
		}

		name := unit.Node.ID + "@" + unit.Node.Version + ".html"
		// A document reachable through two parents is yielded once per
		// appearance; the container holds exactly one page for it.
		if pages[name] {
			continue
		}
		pages[name] = true

		page, err := render.Page(unit.Node)
		if err != nil {
			return res, err
		}
		if err := writeEntry(zw, "OEBPS/content/"+name, []byte(page)); err != nil {
			return res, err
		}
		spine = append(spine, spineItem{Name: name, Title: unit.Node.Title})
		res.Documents++

		res.RefErrors = append(res.RefErrors, unit.Errors...)
		if opts.MaxRefErrors > 0 && len(res.RefErrors) > opts.MaxRefErrors {
			return res, fmt.Errorf("%d reference errors: %w", len(res.RefErrors), ErrTooManyRefErrors)
		}

		for _, r := range scanResources(unit.Node.Body) {
			if seen[r.Hash] {
				continue
			}
			seen[r.Hash] = true
			resources = append(resources, r)
		}
	}

	var embedded []resourceRef
	for _, r := range resources {
		if payloads == nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("resource %s (%s): no payload source", r.Hash, r.Filename))
			continue
		}
		data, err := payloads.ResourceData(ctx, r.Hash)
		if errors.Is(err, content.ErrNotFound) {
			res.Warnings = append(res.Warnings, fmt.Sprintf("resource %s (%s): payload missing", r.Hash, r.Filename))
			continue
		}
		if err != nil {
			return res, fmt.Errorf("fetch resource %s: %w", r.Hash, err)
		}
		if err := writeEntry(zw, "OEBPS/resources/"+r.Hash, data); err != nil {
			return res, err
		}
		embedded = append(embedded, r)
		res.Resources++
	}

	opf, err := buildOPF(meta, spine, embedded)
	if err != nil {
		return res, err
	}
	if err := writeEntry(zw, "OEBPS/content.opf", opf); err != nil {
		return res, err
	}

	nav, err := buildNav(meta, spine)
	if err != nil {
		return res, err
	}
	if err := writeEntry(zw, "OEBPS/nav.xhtml", nav); err != nil {
		return res, err
	}

	ncx, err := buildNCX(meta, spine)
	if err != nil {
		return res, err
	}
	if err := writeEntry(zw, "OEBPS/toc.ncx", ncx); err != nil {
		return res, err
	}

	if err := zw.Close(); err != nil {
		return res, fmt.Errorf("close container: %w", err)
	}
	return res, nil
}

func writeEntry(zw *zip.Writer, name string, data []byte) error {
	f, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
