package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestSource(t *testing.T, handler http.Handler) *HTTPSource {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tmpl, err := ParseTemplate(srv.URL + "/{owner}/{repo}/{ref}/{path}")
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	src, err := NewHTTPSource(HTTPConfig{
		Template: tmpl,
		Vars:     Vars{Owner: "acme", Repo: "hub", Ref: "main"},
	})
	if err != nil {
		t.Fatalf("NewHTTPSource: %v", err)
	}
	t.Cleanup(func() { _ = src.Close() })
	return src
}

func TestHTTPSourceFetch(t *testing.T) {
	var gotPath string
	src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("payload"))
	}))

	body, err := src.Fetch(t.Context(), "pack-a/icon.png")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if string(body) != "payload" {
		t.Errorf("body = %q, want %q", body, "payload")
	}
	if gotPath != "/acme/hub/main/pack-a/icon.png" {
		t.Errorf("request path = %q", gotPath)
	}
}

func TestHTTPSourceStatusError(t *testing.T) {
	src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := src.Fetch(t.Context(), "missing.json")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != KindStatus || fe.Status != http.StatusNotFound {
		t.Errorf("kind = %s, status = %d, want status 404", fe.Kind, fe.Status)
	}
	if fe.Temporary() {
		t.Error("404 should not be temporary")
	}
}

func TestHTTPSourceRateLimited(t *testing.T) {
	src := newTestSource(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := src.Fetch(t.Context(), "manifest.json")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if !fe.RateLimited() {
		t.Error("429 should report RateLimited")
	}
	if !fe.Temporary() {
		t.Error("429 should be temporary")
	}
}

func TestHTTPSourceTimeout(t *testing.T) {
	src := newTestSource(t, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx, "slow.json")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != KindTimeout {
		t.Errorf("kind = %s, want %s", fe.Kind, KindTimeout)
	}
	if !fe.Temporary() {
		t.Error("timeouts should be temporary")
	}
}

func TestHTTPSourceConnectionError(t *testing.T) {
	// Grab a URL, then shut the server down so the dial fails.
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	tmpl, err := ParseTemplate(base + "/{path}")
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	src, err := NewHTTPSource(HTTPConfig{Template: tmpl})
	if err != nil {
		t.Fatalf("NewHTTPSource: %v", err)
	}

	_, err = src.Fetch(t.Context(), "any.json")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}
	if fe.Kind != KindConnection {
		t.Errorf("kind = %s, want %s", fe.Kind, KindConnection)
	}
}

func TestNewHTTPSourceRequiresTemplate(t *testing.T) {
	if _, err := NewHTTPSource(HTTPConfig{}); err == nil {
		t.Fatal("expected error for missing template")
	}
}
