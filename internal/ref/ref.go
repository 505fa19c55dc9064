// Package ref parses the free-text hyperlink and media reference strings
// found in legacy document markup. Parsing is pure string work: the
// repository, not the parser, is the authority on whether a parsed target
// actually exists.
package ref

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformed indicates a reference string that does not match the
// reference grammar at all. Callers convert it into a soft resolution
// error; it is never fatal.
var ErrMalformed = errors.New("malformed reference")

// Kind classifies a parsed reference.
type Kind string

const (
	KindModule   Kind = "module"   // a link to another document
	KindResource Kind = "resource" // an embedded media file
)

// Ref is the structured form of one raw reference string. Constructed fresh
// per string, immutable, discarded after resolution.
type Ref struct {
	Kind Kind

	// Module reference fields.
	TargetID      string
	TargetVersion string // empty means "resolve to the current version"
	Fragment      string // in-page anchor, verbatim including the leading #

	// Resource reference fields. Empty owner fields mean the resource
	// belongs to the referencing document.
	Filename     string
	OwnerID      string
	OwnerVersion string
}

var (
	// Legacy module ids are one or two letters followed by a digit run.
	// Older corpora carry ids with trailing word characters after a short
	// digit run (m10strong), so anything alphanumeric after the digits is
	// tolerated; existence is checked at lookup time.
	moduleIDRe = regexp.MustCompile(`^[A-Za-z]{1,2}[0-9]{2,5}[A-Za-z0-9]*$`)

	// Dotted numeric version, or the literal "latest".
	versionRe = regexp.MustCompile(`^([0-9]+(\.[0-9]+)*|latest)$`)

	// A resource filename needs an extension; a bare word is not a
	// reference the grammar recognizes.
	filenameRe = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9 ._@+-]*\.[A-Za-z0-9]+$`)
)

// Parse interprets one raw reference string. Grammar, left to right: an
// optional leading path marker (/, content/, /content/), an optional legacy
// module id with an optional /- or @-separated version, an optional trailing
// resource filename, and an optional #fragment. Returns ErrMalformed when
// the string fits none of those shapes.
func Parse(raw string) (Ref, error) {
	s := raw
	var fragment string
	if i := strings.Index(s, "#"); i >= 0 {
		fragment = s[i:]
		s = s[:i]
	}

	s = strings.TrimPrefix(s, "/")
	s = strings.TrimPrefix(s, "content/")
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return Ref{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}

	segs := strings.Split(s, "/")

	var id, version string
	first := segs[0]
	if at := strings.Index(first, "@"); at >= 0 {
		if moduleIDRe.MatchString(first[:at]) && versionRe.MatchString(first[at+1:]) {
			id, version = first[:at], first[at+1:]
			segs = segs[1:]
		}
	} else if moduleIDRe.MatchString(first) {
		id = first
		segs = segs[1:]
		if len(segs) > 0 && versionRe.MatchString(segs[0]) {
			version = segs[0]
			segs = segs[1:]
		}
	}
	// "latest" means: resolve to the current version at lookup time.
	if version == "latest" {
		version = ""
	}

	switch {
	case len(segs) == 0:
		if id == "" {
			return Ref{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
		}
		return Ref{
			Kind:          KindModule,
			TargetID:      id,
			TargetVersion: version,
			Fragment:      fragment,
		}, nil
	case len(segs) == 1 && filenameRe.MatchString(segs[0]):
		// A fragment has no meaning on a media file.
		if fragment != "" {
			return Ref{}, fmt.Errorf("%w: fragment on resource: %q", ErrMalformed, raw)
		}
		return Ref{
			Kind:         KindResource,
			Filename:     segs[0],
			OwnerID:      id,
			OwnerVersion: version,
		}, nil
	default:
		return Ref{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}
}
