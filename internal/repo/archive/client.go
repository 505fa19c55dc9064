// Package archive serves the repository contract from a hosted archive API.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dgallion1/colporter/internal/content"
)

// Client communicates with the archive HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// documentResponse is the wire shape of GET /contents/{id}@{version}.
type documentResponse struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

// childEntry is one member in a children listing. Grouping entries nest
// their members.
type childEntry struct {
	ID       string       `json:"id"`
	Version  string       `json:"version"`
	Title    string       `json:"title"`
	Children []childEntry `json:"children,omitempty"`
}

// Document fetches a document by identifier and version.
func (c *Client) Document(ctx context.Context, id, version string) (*content.Node, error) {
	var doc documentResponse
	if err := c.getJSON(ctx, "/contents/"+contentKey(id, version), &doc); err != nil {
		return nil, fmt.Errorf("document %s@%s: %w", id, version, err)
	}

	node := &content.Node{
		ID:      doc.ID,
		Version: doc.Version,
		Title:   doc.Title,
		Body:    doc.Body,
	}
	switch doc.Kind {
	case "composite":
		node.Kind = content.KindComposite
	case "leaf":
		node.Kind = content.KindLeaf
	default:
		return nil, fmt.Errorf("document %s@%s: unknown kind %q", id, version, doc.Kind)
	}
	return node, nil
}

// Children fetches a composite's ordered member listing.
func (c *Client) Children(ctx context.Context, id, version string) ([]content.ChildRef, error) {
	var entries []childEntry
	if err := c.getJSON(ctx, "/contents/"+contentKey(id, version)+"/children", &entries); err != nil {
		return nil, fmt.Errorf("children of %s@%s: %w", id, version, err)
	}
	return childRefs(entries), nil
}

func childRefs(entries []childEntry) []content.ChildRef {
	refs := make([]content.ChildRef, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, content.ChildRef{
			ID:       e.ID,
			Version:  e.Version,
			Title:    e.Title,
			Children: childRefs(e.Children),
		})
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}

// ResolveModule maps a module reference to its canonical identity.
func (c *Client) ResolveModule(ctx context.Context, id, version string) (content.ModuleInfo, error) {
	q := url.Values{"id": {id}}
	if version != "" {
		q.Set("version", version)
	}
	var info struct {
		CanonicalID string `json:"canonical_id"`
		Version     string `json:"version"`
	}
	if err := c.getJSON(ctx, "/resolve/module?"+q.Encode(), &info); err != nil {
		return content.ModuleInfo{}, fmt.Errorf("module %s@%s: %w", id, version, err)
	}
	return content.ModuleInfo{CanonicalID: info.CanonicalID, Version: info.Version}, nil
}

// ResolveResource locates a media file by filename and optional owner.
func (c *Client) ResolveResource(ctx context.Context, filename, ownerID, ownerVersion string) (content.ResourceInfo, error) {
	q := url.Values{"filename": {filename}}
	if ownerID != "" {
		q.Set("owner", ownerID)
	}
	if ownerVersion != "" {
		q.Set("version", ownerVersion)
	}
	var info struct {
		Hash      string `json:"hash"`
		Filename  string `json:"filename"`
		MediaType string `json:"media_type"`
	}
	if err := c.getJSON(ctx, "/resolve/resource?"+q.Encode(), &info); err != nil {
		return content.ResourceInfo{}, fmt.Errorf("resource %q: %w", filename, err)
	}
	return content.ResourceInfo{Hash: info.Hash, Filename: info.Filename, MediaType: info.MediaType}, nil
}

// ResourceData fetches the raw bytes of a resource by content hash.
func (c *Client) ResourceData(ctx context.Context, hash string) ([]byte, error) {
	resp, err := c.do(ctx, "/resources/"+hash)
	if err != nil {
		return nil, fmt.Errorf("resource data %s: %w", hash, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("resource data %s: %w", hash, err)
	}
	return data, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func contentKey(id, version string) string {
	if version == "" {
		version = "latest"
	}
	return url.PathEscape(id + "@" + version)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do issues one GET, retrying transient failures with jittered backoff. The
// export core carries no retry policy; it lives here with the collaborator
// that talks to the network.
func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	var lastErr error
	for attempt := range MaxRetries {
		if attempt > 0 {
			select {
			case <-time.After(Backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", path, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, content.ErrNotFound
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			lastErr = &RetryableError{StatusCode: resp.StatusCode, Message: string(body)}
		default:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return nil, fmt.Errorf("get %s: status %d: %s", path, resp.StatusCode, string(body))
		}
	}
	return nil, fmt.Errorf("get %s: %w", path, lastErr)
}
