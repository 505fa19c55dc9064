package archive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgallion1/colporter/internal/content"
)

func TestClient_DocumentDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/contents/m44425@1.1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "m44425", "version": "1.1", "kind": "leaf",
			"title": "Intro", "body": "<p>hi</p>",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	doc, err := c.Document(context.Background(), "m44425", "1.1")
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if doc.Kind != content.KindLeaf || doc.Title != "Intro" || doc.Body != "<p>hi</p>" {
		t.Errorf("unexpected document: %+v", doc)
	}
}

func TestClient_EmptyVersionRequestsLatest(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{
			"id": "m44425", "version": "2.1", "kind": "leaf", "title": "Intro",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	doc, err := c.Document(context.Background(), "m44425", "")
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if gotPath != "/contents/m44425@latest" {
		t.Errorf("expected latest path, got %s", gotPath)
	}
	if doc.Version != "2.1" {
		t.Errorf("expected resolved version 2.1, got %s", doc.Version)
	}
}

func TestClient_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such content", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Document(context.Background(), "m404", "1.1")
	if !errors.Is(err, content.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_AuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"canonical_id": "u-1", "version": "1.1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-key")
	if _, err := c.ResolveModule(context.Background(), "m44425", "1.1"); err != nil {
		t.Fatalf("ResolveModule failed: %v", err)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
}

func TestClient_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"canonical_id": "u-1", "version": "2.1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	info, err := c.ResolveModule(context.Background(), "m44425", "")
	if err != nil {
		t.Fatalf("ResolveModule failed after retry: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if info.CanonicalID != "u-1" || info.Version != "2.1" {
		t.Errorf("unexpected module info: %+v", info)
	}
}

func TestClient_ChildrenNested(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "subcol", "title": "Part One", "children": []map[string]any{
				{"id": "mA", "version": "1.1", "title": "A"},
			}},
			{"id": "mB", "version": "1.2", "title": "B"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	children, err := c.Children(context.Background(), "col117", "1.4")
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(children))
	}
	if !children[0].IsSubcollection() || len(children[0].Children) != 1 {
		t.Errorf("expected grouping entry with one member, got %+v", children[0])
	}
	if children[1].ID != "mB" || children[1].Version != "1.2" {
		t.Errorf("unexpected second entry: %+v", children[1])
	}
}
