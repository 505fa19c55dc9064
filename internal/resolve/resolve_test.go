package resolve

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/colporter/internal/content"
)

// fakeRepo answers lookups from fixed maps. Anything absent is a miss.
type fakeRepo struct {
	modules   map[string]content.ModuleInfo   // keyed id@version
	resources map[string]content.ResourceInfo // keyed filename|owner|version
}

func (f *fakeRepo) Document(ctx context.Context, id, version string) (*content.Node, error) {
	return nil, fmt.Errorf("document %s@%s: %w", id, version, content.ErrNotFound)
}

func (f *fakeRepo) Children(ctx context.Context, id, version string) ([]content.ChildRef, error) {
	return nil, nil
}

func (f *fakeRepo) ResolveModule(ctx context.Context, id, version string) (content.ModuleInfo, error) {
	info, ok := f.modules[id+"@"+version]
	if !ok {
		return content.ModuleInfo{}, fmt.Errorf("module %s@%s: %w", id, version, content.ErrNotFound)
	}
	return info, nil
}

func (f *fakeRepo) ResolveResource(ctx context.Context, filename, ownerID, ownerVersion string) (content.ResourceInfo, error) {
	info, ok := f.resources[filename+"|"+ownerID+"|"+ownerVersion]
	if !ok {
		return content.ResourceInfo{}, fmt.Errorf("resource %q: %w", filename, content.ErrNotFound)
	}
	return info, nil
}

func leaf(id, body string) *content.Node {
	return &content.Node{ID: id, Version: "1.1", Kind: content.KindLeaf, Title: id, Body: body}
}

func TestRewrite_ResourceRoundTrip(t *testing.T) {
	rs := New(&fakeRepo{resources: map[string]content.ResourceInfo{
		"figure1.png||": {Hash: "abc123", Filename: "figure1.png", MediaType: "image/png"},
	}})

	doc := leaf("m44425", `<p><img src="figure1.png"/></p>`)
	errs, err := rs.Rewrite(context.Background(), doc)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected no reference errors, got %v", errs)
	}
	for _, want := range []string{
		`src="../resources/abc123"`,
		`data-filename="figure1.png"`,
		`data-mediatype="image/png"`,
	} {
		if !strings.Contains(doc.Body, want) {
			t.Errorf("rewritten body missing %s: %s", want, doc.Body)
		}
	}
}

func TestRewrite_ModuleVersionElision(t *testing.T) {
	rs := New(&fakeRepo{modules: map[string]content.ModuleInfo{
		"m10strong@": {CanonicalID: "u-123", Version: "2.1"},
	}})

	doc := leaf("m44425", `<p><a href="m10strong/latest#intro">strong</a></p>`)
	errs, err := rs.Rewrite(context.Background(), doc)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected no reference errors, got %v", errs)
	}
	if !strings.Contains(doc.Body, `href="u-123@2.1.html#intro"`) {
		t.Errorf("expected rewritten href, got %s", doc.Body)
	}
}

func TestRewrite_PassThrough(t *testing.T) {
	rs := New(&fakeRepo{})

	values := []string{
		"#sec1",
		"http://example.org/x",
		"https://example.org/x",
		"mailto:a@b.com",
		"ftp://example.org/f",
		"javascript:void(0)",
		"/help/authoring",
	}
	for _, v := range values {
		doc := leaf("m44425", `<a href="`+v+`">x</a>`)
		before := doc.Body
		errs, err := rs.Rewrite(context.Background(), doc)
		if err != nil {
			t.Fatalf("Rewrite(%q) failed: %v", v, err)
		}
		if len(errs) != 0 {
			t.Errorf("Rewrite(%q) produced errors: %v", v, errs)
		}
		if doc.Body != before {
			t.Errorf("Rewrite(%q) changed markup: %s", v, doc.Body)
		}
	}
}

func TestRewrite_NotFoundIsSoft(t *testing.T) {
	rs := New(&fakeRepo{})

	doc := leaf("m44425", `<p><a href="m99999/1.1">gone</a></p>`)
	errs, err := rs.Rewrite(context.Background(), doc)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Kind != content.RefNotFound {
		t.Errorf("expected kind %q, got %q", content.RefNotFound, errs[0].Kind)
	}
	if errs[0].Ref != "m99999/1.1" || errs[0].DocumentID != "m44425" {
		t.Errorf("unexpected error record: %+v", errs[0])
	}
	if !strings.Contains(doc.Body, `href="m99999/1.1"`) {
		t.Errorf("expected href untouched, got %s", doc.Body)
	}
}

func TestRewrite_InvalidIsSoft(t *testing.T) {
	rs := New(&fakeRepo{})

	doc := leaf("m44425", `<p><a href="a/b/c/d">odd</a></p>`)
	errs, err := rs.Rewrite(context.Background(), doc)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if len(errs) != 1 || errs[0].Kind != content.RefInvalid {
		t.Fatalf("expected 1 invalid error, got %v", errs)
	}
	if !strings.Contains(doc.Body, `href="a/b/c/d"`) {
		t.Errorf("expected href untouched, got %s", doc.Body)
	}
}

func TestRewrite_MediaSurfaces(t *testing.T) {
	rs := New(&fakeRepo{resources: map[string]content.ResourceInfo{
		"clip.mp3||":  {Hash: "h1", Filename: "clip.mp3", MediaType: "audio/mpeg"},
		"movie.mp4||": {Hash: "h2", Filename: "movie.mp4", MediaType: "video/mp4"},
		"sim.swf||":   {Hash: "h3", Filename: "sim.swf", MediaType: "application/x-shockwave-flash"},
		"alt.webm||":  {Hash: "h4", Filename: "alt.webm", MediaType: "video/webm"},
		"widget.js||": {Hash: "h5", Filename: "widget.js", MediaType: "text/javascript"},
	}})

	doc := leaf("m44425", `<div>`+
		`<audio src="clip.mp3"></audio>`+
		`<video src="movie.mp4"></video>`+
		`<object data="sim.swf"></object>`+
		`<source src="alt.webm"/>`+
		`<span data-src="widget.js"></span>`+
		`</div>`)
	errs, err := rs.Rewrite(context.Background(), doc)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	for _, hash := range []string{"h1", "h2", "h3", "h4", "h5"} {
		if !strings.Contains(doc.Body, "../resources/"+hash) {
			t.Errorf("body missing rewritten resource %s: %s", hash, doc.Body)
		}
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	rs := New(&fakeRepo{
		modules: map[string]content.ModuleInfo{
			"m10strong@": {CanonicalID: "u-123", Version: "2.1"},
		},
		resources: map[string]content.ResourceInfo{
			"figure1.png||": {Hash: "abc123", Filename: "figure1.png", MediaType: "image/png"},
		},
	})

	doc := leaf("m44425", `<p><img src="figure1.png"/><a href="m10strong/latest#intro">x</a></p>`)
	if _, err := rs.Rewrite(context.Background(), doc); err != nil {
		t.Fatalf("first Rewrite failed: %v", err)
	}
	once := doc.Body

	errs, err := rs.Rewrite(context.Background(), doc)
	if err != nil {
		t.Fatalf("second Rewrite failed: %v", err)
	}
	if len(errs) != 0 {
		t.Errorf("second Rewrite produced errors: %v", errs)
	}
	if doc.Body != once {
		t.Errorf("second Rewrite changed markup:\n first: %s\nsecond: %s", once, doc.Body)
	}
}

func TestRewrite_Deterministic(t *testing.T) {
	repo := &fakeRepo{
		modules: map[string]content.ModuleInfo{
			"m10strong@": {CanonicalID: "u-123", Version: "2.1"},
		},
	}
	rs := New(repo)
	body := `<p><a href="m10strong/latest">ok</a><a href="m1bad/1.1">miss</a><img src="gone.png"/></p>`

	run := func() (string, []content.ResolutionError) {
		doc := leaf("m44425", body)
		errs, err := rs.Rewrite(context.Background(), doc)
		if err != nil {
			t.Fatalf("Rewrite failed: %v", err)
		}
		return doc.Body, errs
	}

	body1, errs1 := run()
	body2, errs2 := run()
	if body1 != body2 {
		t.Errorf("bodies differ between runs:\n%s\n%s", body1, body2)
	}
	if len(errs1) != len(errs2) {
		t.Fatalf("error counts differ: %d vs %d", len(errs1), len(errs2))
	}
	for i := range errs1 {
		if errs1[i] != errs2[i] {
			t.Errorf("error %d differs: %+v vs %+v", i, errs1[i], errs2[i])
		}
	}
	// Media surface scans before anchors: the img miss is recorded first.
	if errs1[0].Ref != "gone.png" {
		t.Errorf("expected media error first, got %+v", errs1)
	}
}
