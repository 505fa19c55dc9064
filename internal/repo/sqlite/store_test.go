package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/colporter/internal/content"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedModule(t *testing.T, s *Store, moduleid, version, portalType, name, body, format, uid string) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO modules (moduleid, version, portal_type, name, body, format, uuid)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		moduleid, version, portalType, name, body, format, nullable(uid))
	require.NoError(t, err)
}

func seedFile(t *testing.T, s *Store, hash, mimetype string, data []byte) int64 {
	t.Helper()
	res, err := s.db.Exec(`INSERT INTO files (hash, mimetype, data) VALUES (?, ?, ?)`, hash, mimetype, data)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func attachFile(t *testing.T, s *Store, moduleid, version, filename string, fileid int64) {
	t.Helper()
	_, err := s.db.Exec(`INSERT INTO module_files (moduleid, version, filename, fileid) VALUES (?, ?, ?, ?)`,
		moduleid, version, filename, fileid)
	require.NoError(t, err)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func TestStore_DocumentLeaf(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "m44425", "1.1", "Module", "Intro", "<p>hello</p>", "html", "")

	doc, err := s.Document(context.Background(), "m44425", "1.1")
	require.NoError(t, err)
	assert.Equal(t, "m44425", doc.ID)
	assert.Equal(t, "1.1", doc.Version)
	assert.Equal(t, content.KindLeaf, doc.Kind)
	assert.Equal(t, "Intro", doc.Title)
	assert.Equal(t, "<p>hello</p>", doc.Body)
}

func TestStore_DocumentComposite(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "col117", "1.4", "Collection", "Book", "", "html", "")

	doc, err := s.Document(context.Background(), "col117", "1.4")
	require.NoError(t, err)
	assert.Equal(t, content.KindComposite, doc.Kind)
	assert.Empty(t, doc.Body, "composite bodies are synthesized, never stored")
}

func TestStore_DocumentLatest(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "m44425", "1.1", "Module", "Intro v1", "<p>one</p>", "html", "")
	seedModule(t, s, "m44425", "1.2", "Module", "Intro v2", "<p>two</p>", "html", "")

	doc, err := s.Document(context.Background(), "m44425", "")
	require.NoError(t, err)
	assert.Equal(t, "1.2", doc.Version)
	assert.Equal(t, "Intro v2", doc.Title)
}

func TestStore_DocumentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Document(context.Background(), "m404", "1.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestStore_MarkdownBodyNormalized(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "m50001", "1.1", "Module", "Modern", "# Heading\n\nbody text", "markdown", "")

	doc, err := s.Document(context.Background(), "m50001", "1.1")
	require.NoError(t, err)
	assert.Contains(t, doc.Body, "<h1")
	assert.Contains(t, doc.Body, "body text")
}

func TestStore_ChildrenWithGrouping(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "col117", "1.4", "Collection", "Book", "", "html", "")

	res, err := s.db.Exec(
		`INSERT INTO module_children (parent_id, parent_version, position, child_id, child_version, title, group_of)
		 VALUES ('col117', '1.4', 0, 'subcol', NULL, 'Part One', NULL)`)
	require.NoError(t, err)
	groupRowID, err := res.LastInsertId()
	require.NoError(t, err)

	_, err = s.db.Exec(
		`INSERT INTO module_children (parent_id, parent_version, position, child_id, child_version, title, group_of)
		 VALUES ('col117', '1.4', 1, 'mA', '1.1', 'Chapter A', ?),
		        ('col117', '1.4', 2, 'mB', '1.2', 'Chapter B', ?),
		        ('col117', '1.4', 3, 'mC', '1.1', 'Chapter C', NULL)`,
		groupRowID, groupRowID)
	require.NoError(t, err)

	children, err := s.Children(context.Background(), "col117", "1.4")
	require.NoError(t, err)
	require.Len(t, children, 2)

	assert.True(t, children[0].IsSubcollection())
	assert.Equal(t, "Part One", children[0].Title)
	require.Len(t, children[0].Children, 2)
	assert.Equal(t, "mA", children[0].Children[0].ID)
	assert.Equal(t, "mB", children[0].Children[1].ID)

	assert.Equal(t, "mC", children[1].ID)
	assert.Equal(t, "1.1", children[1].Version)
}

func TestStore_ResolveModuleCanonicalUUID(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "m44425", "1.1", "Module", "Intro", "<p>x</p>", "html",
		"3f609b3e-31bb-4b62-8a0e-fbbcb4534a37")

	info, err := s.ResolveModule(context.Background(), "m44425", "1.1")
	require.NoError(t, err)
	assert.Equal(t, "3f609b3e-31bb-4b62-8a0e-fbbcb4534a37", info.CanonicalID)
	assert.Equal(t, "1.1", info.Version)
}

func TestStore_ResolveModuleLegacyFallback(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "m44425", "1.1", "Module", "Intro", "<p>x</p>", "html", "")

	info, err := s.ResolveModule(context.Background(), "m44425", "1.1")
	require.NoError(t, err)
	assert.Equal(t, "m44425", info.CanonicalID, "snapshots without uuid fall back to the module id")
}

func TestStore_ResolveModuleLatest(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "m44425", "1.1", "Module", "Intro", "<p>x</p>", "html", "")
	seedModule(t, s, "m44425", "2.1", "Module", "Intro", "<p>x</p>", "html", "")

	info, err := s.ResolveModule(context.Background(), "m44425", "")
	require.NoError(t, err)
	assert.Equal(t, "2.1", info.Version)
}

func TestStore_ResolveResourceByOwner(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "m44425", "1.1", "Module", "Intro", "<p>x</p>", "html", "")
	fid := seedFile(t, s, "abc123", "image/png", []byte{0x89, 0x50})
	attachFile(t, s, "m44425", "1.1", "figure1.png", fid)

	info, err := s.ResolveResource(context.Background(), "figure1.png", "m44425", "1.1")
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.Hash)
	assert.Equal(t, "figure1.png", info.Filename)
	assert.Equal(t, "image/png", info.MediaType)
}

func TestStore_ResolveResourceUnscoped(t *testing.T) {
	s := newTestStore(t)
	fid := seedFile(t, s, "abc123", "image/png", []byte{0x89, 0x50})
	attachFile(t, s, "m44425", "1.1", "figure1.png", fid)

	info, err := s.ResolveResource(context.Background(), "figure1.png", "", "")
	require.NoError(t, err)
	assert.Equal(t, "abc123", info.Hash)
}

func TestStore_ResolveResourceOwnerLatest(t *testing.T) {
	s := newTestStore(t)
	seedModule(t, s, "m44425", "1.1", "Module", "Intro", "<p>x</p>", "html", "")
	seedModule(t, s, "m44425", "1.2", "Module", "Intro", "<p>x</p>", "html", "")
	old := seedFile(t, s, "oldhash", "image/png", []byte{1})
	cur := seedFile(t, s, "newhash", "image/png", []byte{2})
	attachFile(t, s, "m44425", "1.1", "figure1.png", old)
	attachFile(t, s, "m44425", "1.2", "figure1.png", cur)

	info, err := s.ResolveResource(context.Background(), "figure1.png", "m44425", "")
	require.NoError(t, err)
	assert.Equal(t, "newhash", info.Hash)
}

func TestStore_ResolveResourceNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ResolveResource(context.Background(), "missing.png", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestStore_ResourceData(t *testing.T) {
	s := newTestStore(t)
	payload := []byte("raw image bytes")
	seedFile(t, s, "abc123", "image/png", payload)

	data, err := s.ResourceData(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = s.ResourceData(context.Background(), "nope")
	assert.True(t, errors.Is(err, content.ErrNotFound))
}
