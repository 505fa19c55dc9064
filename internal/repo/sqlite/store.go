// Package sqlite serves the repository contract from a SQLite snapshot of
// the legacy content database.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dgallion1/colporter/internal/content"
)

//go:embed schema.sql
var schema string

// Store reads content from a legacy snapshot database. All lookups are
// read-only; the schema bootstrap only matters when pointing at a fresh file
// (fixture snapshots are built through the same path).
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or initializes) a snapshot database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Document fetches one module row as a typed node. An empty version resolves
// to the most recent row for the module id.
func (s *Store) Document(ctx context.Context, id, version string) (*content.Node, error) {
	const byVersion = `SELECT moduleid, version, portal_type, name, body, format
		FROM modules WHERE moduleid = ? AND version = ?`
	const latest = `SELECT moduleid, version, portal_type, name, body, format
		FROM modules WHERE moduleid = ? ORDER BY module_ident DESC LIMIT 1`

	var row *sql.Row
	if version == "" {
		row = s.db.QueryRowContext(ctx, latest, id)
	} else {
		row = s.db.QueryRowContext(ctx, byVersion, id, version)
	}

	var (
		node       content.Node
		portalType string
		body       sql.NullString
		format     string
	)
	err := row.Scan(&node.ID, &node.Version, &portalType, &node.Title, &body, &format)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s@%s: %w", id, version, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("document %s@%s: %w", id, version, err)
	}

	if portalType == "Collection" {
		node.Kind = content.KindComposite
		return &node, nil
	}

	node.Kind = content.KindLeaf
	node.Body = body.String
	// Modern snapshots carry markdown-authored modules; the core only
	// speaks HTML, so normalize at the boundary.
	if format == "markdown" && node.Body != "" {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(node.Body), &buf); err != nil {
			return nil, fmt.Errorf("render markdown body of %s@%s: %w", id, version, err)
		}
		node.Body = buf.String()
	}
	return &node, nil
}

// Children returns a composite's member listing in position order, with
// grouping rows reassembled into nested forests.
func (s *Store) Children(ctx context.Context, id, version string) ([]content.ChildRef, error) {
	if version == "" {
		v, err := s.latestVersion(ctx, id)
		if err != nil {
			return nil, err
		}
		version = v
	}

	const q = `SELECT rowid, child_id, child_version, title, group_of
		FROM module_children WHERE parent_id = ? AND parent_version = ? ORDER BY position`
	rows, err := s.db.QueryContext(ctx, q, id, version)
	if err != nil {
		return nil, fmt.Errorf("children of %s@%s: %w", id, version, err)
	}
	defer rows.Close()

	var top []content.ChildRef
	groups := make(map[int64]int) // grouping rowid -> index in top

	for rows.Next() {
		var (
			rowid        int64
			childVersion sql.NullString
			groupOf      sql.NullInt64
			ref          content.ChildRef
		)
		if err := rows.Scan(&rowid, &ref.ID, &childVersion, &ref.Title, &groupOf); err != nil {
			return nil, fmt.Errorf("children of %s@%s: %w", id, version, err)
		}
		ref.Version = childVersion.String

		if groupOf.Valid {
			// Member of a grouping row seen earlier in position order.
			idx, ok := groups[groupOf.Int64]
			if !ok {
				return nil, fmt.Errorf("children of %s@%s: member row %d references unknown group %d", id, version, rowid, groupOf.Int64)
			}
			top[idx].Children = append(top[idx].Children, ref)
			continue
		}
		top = append(top, ref)
		if ref.IsSubcollection() {
			groups[rowid] = len(top) - 1
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("children of %s@%s: %w", id, version, err)
	}
	return top, nil
}

// ResolveModule maps a legacy module reference to its canonical identity.
// The uuid column is the canonical id when the snapshot has one; snapshots
// predating uuid assignment fall back to the module id itself.
func (s *Store) ResolveModule(ctx context.Context, id, version string) (content.ModuleInfo, error) {
	const byVersion = `SELECT moduleid, version, uuid FROM modules WHERE moduleid = ? AND version = ?`
	const latest = `SELECT moduleid, version, uuid FROM modules WHERE moduleid = ? ORDER BY module_ident DESC LIMIT 1`

	var row *sql.Row
	if version == "" {
		row = s.db.QueryRowContext(ctx, latest, id)
	} else {
		row = s.db.QueryRowContext(ctx, byVersion, id, version)
	}

	var (
		moduleID, resolved string
		canonical          sql.NullString
	)
	err := row.Scan(&moduleID, &resolved, &canonical)
	if errors.Is(err, sql.ErrNoRows) {
		return content.ModuleInfo{}, fmt.Errorf("module %s@%s: %w", id, version, content.ErrNotFound)
	}
	if err != nil {
		return content.ModuleInfo{}, fmt.Errorf("module %s@%s: %w", id, version, err)
	}

	info := content.ModuleInfo{CanonicalID: moduleID, Version: resolved}
	if canonical.Valid && uuid.Validate(canonical.String) == nil {
		info.CanonicalID = canonical.String
	}
	return info, nil
}

// ResolveResource locates a media file. A named owner scopes the lookup to
// that module's file listing; without one the most recently attached file of
// that name wins (bare filenames in legacy markup are unscoped).
func (s *Store) ResolveResource(ctx context.Context, filename, ownerID, ownerVersion string) (content.ResourceInfo, error) {
	var (
		row  *sql.Row
		info content.ResourceInfo
	)
	if ownerID != "" {
		if ownerVersion == "" {
			v, err := s.latestVersion(ctx, ownerID)
			if err != nil {
				return content.ResourceInfo{}, err
			}
			ownerVersion = v
		}
		const q = `SELECT f.hash, mf.filename, f.mimetype
			FROM module_files mf JOIN files f ON f.fileid = mf.fileid
			WHERE mf.moduleid = ? AND mf.version = ? AND mf.filename = ?`
		row = s.db.QueryRowContext(ctx, q, ownerID, ownerVersion, filename)
	} else {
		const q = `SELECT f.hash, mf.filename, f.mimetype
			FROM module_files mf JOIN files f ON f.fileid = mf.fileid
			WHERE mf.filename = ? ORDER BY mf.rowid DESC LIMIT 1`
		row = s.db.QueryRowContext(ctx, q, filename)
	}

	err := row.Scan(&info.Hash, &info.Filename, &info.MediaType)
	if errors.Is(err, sql.ErrNoRows) {
		return content.ResourceInfo{}, fmt.Errorf("resource %q: %w", filename, content.ErrNotFound)
	}
	if err != nil {
		return content.ResourceInfo{}, fmt.Errorf("resource %q: %w", filename, err)
	}
	return info, nil
}

// ResourceData returns the raw bytes of a stored file by content hash.
func (s *Store) ResourceData(ctx context.Context, hash string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM files WHERE hash = ?`, hash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("resource data %s: %w", hash, content.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("resource data %s: %w", hash, err)
	}
	return data, nil
}

func (s *Store) latestVersion(ctx context.Context, id string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT version FROM modules WHERE moduleid = ? ORDER BY module_ident DESC LIMIT 1`, id).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("module %s: %w", id, content.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("module %s: %w", id, err)
	}
	return v, nil
}
