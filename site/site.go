// Package site serves the dashboard client bundle.
package site

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/unrolled/secure"
	"golang.org/x/xerrors"

	"cdr.dev/slog/v3"
)

//go:embed out
var site embed.FS

// FS returns the bundle compiled into the binary.
func FS() fs.FS {
	filesystem, err := fs.Sub(site, "out")
	if err != nil {
		// This can't happen... Go would throw a compilation error.
		panic(err)
	}
	return filesystem
}

// Handler serves files from a bundle. Paths that do not name a file are
// client-side routes and get index.html so the client router can take over.
type Handler struct {
	fs     fs.FS
	logger slog.Logger
	next   http.Handler

	mu         sync.RWMutex
	indexBytes []byte
	// etags caches content hashes by file name until the next Reload.
	etags      map[string]string
	generation int
}

// New reads index.html from filesystem and returns a handler serving it.
func New(filesystem fs.FS, logger slog.Logger) (*Handler, error) {
	h := &Handler{
		fs:     filesystem,
		logger: logger.Named("site"),
	}
	if err := h.Reload(); err != nil {
		return nil, err
	}
	h.next = secureHeaders(http.HandlerFunc(h.serve))
	return h, nil
}

// Reload rereads index.html and forgets cached ETags. On error the previous
// index stays in place.
func (h *Handler) Reload() error {
	indexBytes, err := fs.ReadFile(h.fs, "index.html")
	if err != nil {
		return xerrors.Errorf("read index.html: %w", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.indexBytes = indexBytes
	h.etags = map[string]string{"index.html": hashETag(indexBytes)}
	h.generation++
	return nil
}

// Watch reloads the handler whenever a file under dir changes, until ctx is
// done. dir must be the directory the handler serves from.
func (h *Handler) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return xerrors.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
	if err != nil {
		return xerrors.Errorf("watch %q: %w", dir, err)
	}
	h.logger.Debug(ctx, "watching static files", slog.F("dir", dir))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = watcher.Add(event.Name)
				}
			}
			if err := h.Reload(); err != nil {
				h.logger.Warn(ctx, "reload static files", slog.F("path", event.Name), slog.Error(err))
				continue
			}
			h.logger.Debug(ctx, "static files changed", slog.F("path", event.Name), slog.F("op", event.Op.String()))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn(ctx, "static file watcher failed", slog.Error(err))
		}
	}
}

func (h *Handler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	h.next.ServeHTTP(rw, r)
}

func (h *Handler) serve(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		rw.Header().Set("Allow", "GET, HEAD")
		http.Error(rw, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || name == "index.html" || !fs.ValidPath(name) {
		h.serveIndex(rw, r)
		return
	}

	info, err := fs.Stat(h.fs, name)
	if err != nil || info.IsDir() {
		h.serveIndex(rw, r)
		return
	}
	h.mu.RLock()
	generation := h.generation
	h.mu.RUnlock()
	fileBytes, err := fs.ReadFile(h.fs, name)
	if err != nil {
		h.logger.Warn(r.Context(), "unable to read requested file", slog.F("file_name", name), slog.Error(err))
		h.serveIndex(rw, r)
		return
	}

	if ShouldCacheFile(name) {
		// Hashed names change whenever their content does.
		rw.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		rw.Header().Set("Cache-Control", "no-cache")
		rw.Header().Set("ETag", h.etag(name, fileBytes, generation))
	}
	http.ServeContent(rw, r, name, time.Time{}, bytes.NewReader(fileBytes))
}

func (h *Handler) serveIndex(rw http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	indexBytes, tag := h.indexBytes, h.etags["index.html"]
	h.mu.RUnlock()

	rw.Header().Set("Cache-Control", "no-cache")
	rw.Header().Set("ETag", tag)
	http.ServeContent(rw, r, "index.html", time.Time{}, bytes.NewReader(indexBytes))
}

// etag returns the cached hash for name, or hashes data. A hash of data
// read before the last Reload is not cached.
func (h *Handler) etag(name string, data []byte, generation int) string {
	h.mu.RLock()
	tag, ok := h.etags[name]
	h.mu.RUnlock()
	if ok {
		return tag
	}

	tag = hashETag(data)
	h.mu.Lock()
	if h.generation == generation {
		h.etags[name] = tag
	}
	h.mu.Unlock()
	return tag
}

func hashETag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// hashedName matches bundler output like app.3f2a9c1b.js or chunk-0a1b2c3d4e.css.
var hashedName = regexp.MustCompile(`^[^/]+[.-][0-9a-f]{8,}\.[A-Za-z0-9]+$`)

// ShouldCacheFile reports whether a file may be cached forever. Only files
// whose names carry a content hash qualify; everything else is revalidated
// against its ETag.
func ShouldCacheFile(reqFile string) bool {
	base := path.Base(reqFile)
	switch {
	case base == "service-worker.js":
		return false
	case strings.HasSuffix(base, ".html"), strings.HasSuffix(base, ".htm"):
		return false
	default:
		return hashedName.MatchString(base)
	}
}

// secureHeaders is only needed for statically served files. We do not need this for api endpoints.
// It adds various headers to enforce browser security features.
func secureHeaders(next http.Handler) http.Handler {
	// Content-Security-Policy disables loading certain content types and can prevent XSS injections.
	// The event stream and the chart images are same-origin.
	cspSrcs := []struct {
		directive string
		values    []string
	}{
		{"default-src", []string{"'self'"}},
		{"connect-src", []string{"'self'"}},
		{"script-src", []string{"'self'"}},
		{"style-src", []string{"'self'", "'unsafe-inline'"}},
		{"img-src", []string{"'self'", "data:"}},
		{"object-src", []string{"'none'"}},
		{"form-action", []string{"'self'"}},
		{"frame-ancestors", []string{"'none'"}},
	}

	var csp strings.Builder
	for _, src := range cspSrcs {
		_, _ = fmt.Fprintf(&csp, "%s %s; ", src.directive, strings.Join(src.values, " "))
	}

	// Permissions-Policy can be used to disabled various browser features that we do not use.
	permissions := strings.Join([]string{
		// =() means it is disabled
		"accelerometer=()",
		"autoplay=()",
		"camera=()",
		"geolocation=()",
		"gyroscope=()",
		"magnetometer=()",
		"microphone=()",
		"payment=()",
		"usb=()",
	}, ", ")

	return secure.New(secure.Options{
		ContentSecurityPolicy: strings.TrimSpace(csp.String()),
		PermissionsPolicy:     permissions,
		// Prevent the browser from sending Referer header with requests
		ReferrerPolicy:     "no-referrer",
		FrameDeny:          true,
		ContentTypeNosniff: true,
	}).Handler(next)
}
