// Package walk flattens a content tree into the ordered sequence of
// documents an export package contains. The sequence is pull-based: nothing
// is fetched or resolved past the point where the consumer stops.
package walk

import (
	"context"
	"fmt"
	"iter"

	"github.com/dgallion1/colporter/internal/content"
	"github.com/dgallion1/colporter/internal/render"
	"github.com/dgallion1/colporter/internal/repo"
	"github.com/dgallion1/colporter/internal/resolve"
)

// Options controls traversal hardening.
type Options struct {
	// CycleGuard tracks every visited (id, version) pair and fails the
	// walk with content.ErrCyclicStructure on a revisit. Off by default:
	// the legacy exporter only ever filtered a composite listing itself
	// as its own child, and exports of trees that share a module between
	// two parents rely on the duplicate being emitted twice.
	CycleGuard bool
}

// Walker flattens content trees held in a repository.
type Walker struct {
	repo     repo.Repository
	resolver *resolve.Resolver
	opts     Options
}

func New(r repo.Repository, rs *resolve.Resolver, opts Options) *Walker {
	return &Walker{repo: r, resolver: rs, opts: opts}
}

// Flatten yields the depth-first pre-order expansion of the tree rooted at
// (id, version): a composite is emitted before its descendants, descendants
// follow its listed member order. Each leaf body has been through reference
// resolution by the time its unit is yielded; composite bodies are
// synthesized tables of contents.
//
// A document the repository cannot fetch is structural, and fatal to the
// subtree: the sequence yields the error once and stops. Reference-level
// failures ride along inside each unit instead.
func (w *Walker) Flatten(ctx context.Context, id, version string) iter.Seq2[content.ExportUnit, error] {
	return func(yield func(content.ExportUnit, error) bool) {
		var visited map[string]struct{}
		if w.opts.CycleGuard {
			visited = make(map[string]struct{})
		}
		w.walk(ctx, id, version, visited, yield)
	}
}

// walk emits the subtree at (id, version). Returns false once the consumer
// has stopped or a fatal error has been yielded.
func (w *Walker) walk(ctx context.Context, id, version string, visited map[string]struct{}, yield func(content.ExportUnit, error) bool) bool {
	if visited != nil {
		key := id + "@" + version
		if _, seen := visited[key]; seen {
			yield(content.ExportUnit{}, fmt.Errorf("revisited %s: %w", key, content.ErrCyclicStructure))
			return false
		}
		visited[key] = struct{}{}
	}

	node, err := w.repo.Document(ctx, id, version)
	if err != nil {
		yield(content.ExportUnit{}, fmt.Errorf("fetch %s@%s: %w", id, version, err))
		return false
	}

	if node.Kind == content.KindLeaf {
		errs, err := w.resolver.Rewrite(ctx, node)
		if err != nil {
			yield(content.ExportUnit{}, fmt.Errorf("resolve %s@%s: %w", id, version, err))
			return false
		}
		return yield(content.ExportUnit{Node: node, Errors: errs}, nil)
	}

	children, err := w.repo.Children(ctx, node.ID, node.Version)
	if err != nil {
		yield(content.ExportUnit{}, fmt.Errorf("fetch children of %s@%s: %w", id, version, err))
		return false
	}
	node.Children = children

	body, err := render.TOC(node.Title, children)
	if err != nil {
		yield(content.ExportUnit{}, err)
		return false
	}
	node.Body = body

	if !yield(content.ExportUnit{Node: node}, nil) {
		return false
	}
	return w.walkMembers(ctx, node, children, visited, yield)
}

// walkMembers recurses into a composite's member listing in order. Grouping
// entries contribute their nested members without being fetched or yielded
// themselves; an entry that lists the composite as its own child is skipped
// outright.
func (w *Walker) walkMembers(ctx context.Context, parent *content.Node, members []content.ChildRef, visited map[string]struct{}, yield func(content.ExportUnit, error) bool) bool {
	for _, m := range members {
		if m.ID == parent.ID && m.Version == parent.Version {
			continue
		}
		if m.IsSubcollection() {
			if !w.walkMembers(ctx, parent, m.Children, visited, yield) {
				return false
			}
			continue
		}
		if !w.walk(ctx, m.ID, m.Version, visited, yield) {
			return false
		}
	}
	return true
}
