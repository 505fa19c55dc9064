// Package repo defines the lookup contract the export core consumes. The
// core never sees a backend's row shapes: implementations validate whatever
// they read and hand back typed content records.
package repo

import (
	"context"

	"github.com/dgallion1/colporter/internal/content"
)

// Repository answers the four read-only lookups the walker and resolver
// need. An empty version string always means "the current version". Misses
// are reported as errors wrapping content.ErrNotFound; any other error is an
// infrastructure failure.
type Repository interface {
	// Document fetches one document by identifier and version. Leaf bodies
	// arrive populated; composite member listings come from Children.
	Document(ctx context.Context, id, version string) (*content.Node, error)

	// Children returns a composite's ordered member listing, including
	// grouping entries with their nested members.
	Children(ctx context.Context, id, version string) ([]content.ChildRef, error)

	// ResolveModule maps a possibly legacy module reference to the
	// canonical identity used in rewritten output.
	ResolveModule(ctx context.Context, id, version string) (content.ModuleInfo, error)

	// ResolveResource locates a media file by filename, optionally scoped
	// to an owning document.
	ResolveResource(ctx context.Context, filename, ownerID, ownerVersion string) (content.ResourceInfo, error)
}

// ResourcePayloader is the packaging-side extension for fetching raw
// resource bytes. Kept separate so the core contract stays exactly the four
// lookups above.
type ResourcePayloader interface {
	ResourceData(ctx context.Context, hash string) ([]byte, error)
}
