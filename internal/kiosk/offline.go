package kiosk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const cacheDirPrefix = "cache-"

// CacheProxy sits between the display browser and the admin server and gives
// static assets offline-first behavior. Rules, in priority order:
//
//  1. API requests always go to the network and are never cached.
//  2. Anything else is served from cache when present.
//  3. Cache misses are fetched from the network and stored opportunistically.
//  4. If the network fails for the top-level document, the cached root
//     document is served instead.
//
// The cache directory is tagged with the build version; directories from
// other versions are deleted when the proxy is constructed.
type CacheProxy struct {
	upstream *url.URL
	client   *http.Client
	dir      string
	log      *slog.Logger
}

// NewCacheProxy prepares the version-tagged cache directory and removes any
// directories left behind by other build versions.
func NewCacheProxy(upstream, baseDir, version string, log *slog.Logger) (*CacheProxy, error) {
	parsed, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}

	dir := filepath.Join(baseDir, cacheDirPrefix+version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() && strings.HasPrefix(name, cacheDirPrefix) && name != cacheDirPrefix+version {
			if err := os.RemoveAll(filepath.Join(baseDir, name)); err != nil {
				log.Warn("purge stale cache", "dir", name, "error", err)
			} else {
				log.Info("purged stale cache", "dir", name)
			}
		}
	}

	return &CacheProxy{
		upstream: parsed,
		client:   &http.Client{Timeout: 30 * time.Second},
		dir:      dir,
		log:      log,
	}, nil
}

// ServeHTTP implements the fetch rules above.
func (p *CacheProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isAPIPath(r.URL.Path) {
		p.forward(w, r, false)
		return
	}

	if p.serveCached(w, r.URL.Path) {
		return
	}

	p.forward(w, r, true)
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

// forward proxies the request upstream; cacheable responses are stored as a
// side effect. On network failure the cached root document backstops
// document requests.
func (p *CacheProxy) forward(w http.ResponseWriter, r *http.Request, cacheable bool) {
	target := *p.upstream
	target.Path = r.URL.Path
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	req.Header = r.Header.Clone()

	resp, err := p.client.Do(req)
	if err != nil {
		if cacheable && wantsDocument(r) && p.serveCached(w, "/") {
			p.log.Info("network down, served cached root document")
			return
		}
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}

	if cacheable && r.Method == http.MethodGet && resp.StatusCode == http.StatusOK {
		p.store(r.URL.Path, resp.Header.Get("Content-Type"), body)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write(body)
}

func wantsDocument(r *http.Request) bool {
	return r.URL.Path == "/" || strings.Contains(r.Header.Get("Accept"), "text/html")
}

func (p *CacheProxy) serveCached(w http.ResponseWriter, path string) bool {
	body, err := os.ReadFile(p.bodyPath(path))
	if err != nil {
		return false
	}
	if ct, err := os.ReadFile(p.metaPath(path)); err == nil {
		w.Header().Set("Content-Type", string(ct))
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
	return true
}

func (p *CacheProxy) store(path, contentType string, body []byte) {
	if err := os.WriteFile(p.bodyPath(path), body, 0o644); err != nil {
		p.log.Warn("cache write failed", "path", path, "error", err)
		return
	}
	if contentType != "" {
		if err := os.WriteFile(p.metaPath(path), []byte(contentType), 0o644); err != nil {
			p.log.Warn("cache meta write failed", "path", path, "error", err)
		}
	}
}

func (p *CacheProxy) bodyPath(path string) string {
	return filepath.Join(p.dir, cacheKey(path))
}

func (p *CacheProxy) metaPath(path string) string {
	return filepath.Join(p.dir, cacheKey(path)+".type")
}

func cacheKey(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}
