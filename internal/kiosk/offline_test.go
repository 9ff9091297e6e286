package kiosk

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func newTestProxy(t *testing.T, upstream string, version string) (*CacheProxy, string) {
	t.Helper()
	dir := t.TempDir()
	proxy, err := NewCacheProxy(upstream, dir, version, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewCacheProxy: %v", err)
	}
	return proxy, dir
}

func get(t *testing.T, proxy *CacheProxy, path string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	proxy.ServeHTTP(rec, req)
	return rec
}

func TestProxyNeverCachesAPIRequests(t *testing.T) {
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("fresh"))
	}))
	defer upstream.Close()

	proxy, _ := newTestProxy(t, upstream.URL, "v1")

	get(t, proxy, "/api/v1/display-config/x", nil)
	get(t, proxy, "/api/v1/display-config/x", nil)

	if hits.Load() != 2 {
		t.Errorf("upstream hits = %d, want every API request forwarded", hits.Load())
	}
}

func TestProxyServesStaticFromCache(t *testing.T) {
	var hits atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/css")
		w.Write([]byte("body{}"))
	}))
	defer upstream.Close()

	proxy, _ := newTestProxy(t, upstream.URL, "v1")

	first := get(t, proxy, "/assets/app.css", nil)
	second := get(t, proxy, "/assets/app.css", nil)

	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1 (second request from cache)", hits.Load())
	}
	if got := second.Body.String(); got != first.Body.String() {
		t.Errorf("cached body = %q", got)
	}
	if ct := second.Header().Get("Content-Type"); ct != "text/css" {
		t.Errorf("cached content type = %q", ct)
	}
}

func TestProxyDocumentFallbackWhenOffline(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>dashboard</html>"))
	}))

	proxy, _ := newTestProxy(t, upstream.URL, "v1")

	// Warm the root document, then take the network away.
	get(t, proxy, "/", nil)
	upstream.Close()

	// Cached paths are unaffected by the outage.
	rec := get(t, proxy, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cached root status = %d", rec.Code)
	}

	// An uncached navigation falls back to the cached root document.
	rec = get(t, proxy, "/settings", http.Header{"Accept": {"text/html,application/xhtml+xml"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("fallback status = %d", rec.Code)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "<html>dashboard</html>" {
		t.Errorf("fallback body = %q", body)
	}

	// Non-document requests get no fallback.
	rec = get(t, proxy, "/assets/missing.js", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("non-document offline status = %d, want 502", rec.Code)
	}
}

func TestProxyDoesNotCacheErrorResponses(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer upstream.Close()

	proxy, _ := newTestProxy(t, upstream.URL, "v1")

	if rec := get(t, proxy, "/assets/app.js", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("error status = %d", rec.Code)
	}

	fail.Store(false)
	rec := get(t, proxy, "/assets/app.js", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("recovered response = %d %q, want fresh fetch after uncached error", rec.Code, rec.Body.String())
	}
}

func TestProxyPurgesStaleVersionDirectories(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer upstream.Close()

	dir := t.TempDir()
	stale := filepath.Join(dir, cacheDirPrefix+"0.9.0")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	unrelated := filepath.Join(dir, "keep-me")
	if err := os.MkdirAll(unrelated, 0o755); err != nil {
		t.Fatal(err)
	}

	if _, err := NewCacheProxy(upstream.URL, dir, "1.0.0", slog.New(slog.DiscardHandler)); err != nil {
		t.Fatalf("NewCacheProxy: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale version directory survived")
	}
	if _, err := os.Stat(filepath.Join(dir, cacheDirPrefix+"1.0.0")); err != nil {
		t.Error("current version directory missing")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Error("unrelated directory removed")
	}
}
