package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/surgeon/safe"
)

const staticPage = `<!DOCTYPE html>
<html>
<head><title>Test Page</title></head>
<body>
<main>
<article>
<h1>Article Title</h1>
<p>Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. Duis aute irure dolor in reprehenderit in voluptate velit esse cillum dolore eu fugiat nulla pariatur.</p>
</article>
</main>
</body>
</html>`

const spaShell = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>App</title></head>
<body>
<div id="root"></div>
<script src="/static/js/main.chunk.js"></script>
<script>window.__BOOT__ = {"route": "/", "flags": ["a", "b", "c", "d", "e", "f", "g", "h"]};</script>
</body>
</html>`

func TestIsSufficient_StaticPage(t *testing.T) {
	if !IsSufficient([]byte(staticPage)) {
		t.Error("expected sufficient for static page with content")
	}
}

func TestIsSufficient_SPAShell(t *testing.T) {
	if IsSufficient([]byte(spaShell)) {
		t.Error("expected insufficient for SPA shell")
	}
}

func TestIsSufficient_TooShort(t *testing.T) {
	if IsSufficient([]byte(`<html><body>hi</body></html>`)) {
		t.Error("expected insufficient for very short content")
	}
}

func TestTextMarkupRatio_ScriptIsMarkup(t *testing.T) {
	text, markup := textMarkupRatio([]byte(`<div>Hello World</div><script>var x = "lots of text";</script>`))
	if text != len("HelloWorld") {
		t.Fatalf("text: got %d, want %d", text, len("HelloWorld"))
	}
	if markup == 0 {
		t.Fatal("expected non-zero markup count")
	}
}

type stubRenderer struct {
	html  string
	err   error
	calls int
}

func (s *stubRenderer) Render(_ context.Context, _ string) ([]byte, error) {
	s.calls++
	return []byte(s.html), s.err
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("User-Agent"), "Surgeon") {
			t.Errorf("user agent: %q", r.Header.Get("User-Agent"))
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_Static(t *testing.T) {
	srv := serve(t, http.StatusOK, staticPage)
	r := &stubRenderer{}

	res, err := New(WithAllowPrivate(), WithRenderer(r)).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !res.Sufficient || res.Rendered || string(res.HTML) != staticPage {
		t.Fatalf("result: %+v", res)
	}
	if r.calls != 0 {
		t.Fatalf("renderer called %d times for a static page", r.calls)
	}
}

func TestFetch_EscalatesSPA(t *testing.T) {
	srv := serve(t, http.StatusOK, spaShell)
	r := &stubRenderer{html: staticPage}

	res, err := New(WithAllowPrivate(), WithRenderer(r)).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !res.Rendered || !res.Sufficient || string(res.HTML) != staticPage {
		t.Fatalf("result: %+v", res)
	}
}

func TestFetch_RenderFailureKeepsStatic(t *testing.T) {
	srv := serve(t, http.StatusOK, spaShell)
	r := &stubRenderer{err: errors.New("no chrome")}

	res, err := New(WithAllowPrivate(), WithRenderer(r)).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Rendered || string(res.HTML) != spaShell {
		t.Fatalf("result: %+v", res)
	}
}

func TestFetch_NoRenderer(t *testing.T) {
	srv := serve(t, http.StatusOK, spaShell)
	res, err := New(WithAllowPrivate()).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.Sufficient || res.Rendered {
		t.Fatalf("result: %+v", res)
	}
}

func TestFetch_BadStatus(t *testing.T) {
	srv := serve(t, http.StatusNotFound, "nope")
	_, err := New(WithAllowPrivate()).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
}

func TestFetch_BlocksPrivate(t *testing.T) {
	srv := serve(t, http.StatusOK, staticPage)
	_, err := New().Fetch(context.Background(), srv.URL)
	if !errors.Is(err, safe.ErrSSRF) {
		t.Fatalf("expected ErrSSRF for loopback, got %v", err)
	}
	if _, err := New().Fetch(context.Background(), "file:///etc/passwd"); !errors.Is(err, safe.ErrUnsafeScheme) {
		t.Fatalf("expected ErrUnsafeScheme, got %v", err)
	}
}

func TestFetch_BodyTooLarge(t *testing.T) {
	srv := serve(t, http.StatusOK, strings.Repeat("a", maxBody+1))
	if _, err := New(WithAllowPrivate()).Fetch(context.Background(), srv.URL); !errors.Is(err, safe.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestResourceType(t *testing.T) {
	if resourceType("images") != "Image" || resourceType("fonts") != "Font" {
		t.Fatal("resource type mapping")
	}
}
