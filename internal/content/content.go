package content

import "errors"

// SubcollectionID is the sentinel identifier carried by grouping entries in a
// composite's child listing. Grouping entries exist purely to organize the
// table of contents: they are never fetched from the repository and never
// exported, but their members join the traversal in listed order.
const SubcollectionID = "subcol"

// NodeKind distinguishes container documents from authored documents.
type NodeKind string

const (
	KindComposite NodeKind = "composite" // a collection of other documents
	KindLeaf      NodeKind = "leaf"      // directly authored content
)

// Node is one document in the content tree.
type Node struct {
	ID      string   // stable content identifier (legacy id or UUID)
	Version string   // version string, compared for equality only
	Kind    NodeKind // composite or leaf
	Title   string   // display title

	// Children is the ordered member listing of a composite. Order is
	// significant: it defines both table-of-contents order and export order.
	// Empty for leaves.
	Children []ChildRef

	// Body is the raw HTML fragment of a leaf, rewritten in place during
	// reference resolution. For composites it holds the synthesized
	// table-of-contents markup instead of stored content.
	Body string
}

// ChildRef is one entry of a composite's member listing. A grouping entry
// carries SubcollectionID and a populated nested Children forest; all other
// entries identify a fetchable document.
type ChildRef struct {
	ID       string
	Version  string
	Title    string
	Children []ChildRef // populated only for grouping entries
}

// IsSubcollection reports whether the entry is a grouping placeholder rather
// than a fetchable document.
func (c ChildRef) IsSubcollection() bool {
	return c.ID == SubcollectionID
}

// ErrorKind classifies a failed reference.
type ErrorKind string

const (
	// RefNotFound marks a well-formed reference whose target is absent
	// from the repository.
	RefNotFound ErrorKind = "not_found"
	// RefInvalid marks a reference string that does not match the
	// reference grammar.
	RefInvalid ErrorKind = "invalid"
)

// ResolutionError records one reference that could not be rewritten. It is
// accumulated per document and reported to the caller; it never aborts an
// export.
type ResolutionError struct {
	DocumentID string    `json:"document_id"`
	Ref        string    `json:"ref"`
	Kind       ErrorKind `json:"kind"`
}

// ExportUnit is one yielded item of the flattened export sequence: a document
// plus the reference errors produced while resolving its markup.
type ExportUnit struct {
	Node   *Node
	Errors []ResolutionError
}

// ModuleInfo is the repository's answer to a module lookup.
type ModuleInfo struct {
	CanonicalID string // stable identity used in rewritten output
	Version     string // resolved version (never "latest")
}

// ResourceInfo is the repository's answer to a resource lookup.
type ResourceInfo struct {
	Hash      string // content hash, keys the packaged resource path
	Filename  string // canonical filename
	MediaType string
}

// Domain errors. Structural misses are fatal to the subtree being walked;
// everything reference-level degrades to a ResolutionError instead.
var (
	// ErrNotFound indicates a requested document, module, or resource does
	// not exist in the repository.
	ErrNotFound = errors.New("not found")

	// ErrCyclicStructure indicates the walker revisited a document while
	// the cycle guard was enabled.
	ErrCyclicStructure = errors.New("cyclic content structure")
)
