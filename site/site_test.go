package site_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/livedash/livedash/site"
	"github.com/livedash/livedash/testutil"
)

func newServer(t *testing.T, rootFS fstest.MapFS) *httptest.Server {
	t.Helper()

	h, err := site.New(rootFS, testutil.Logger(t))
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string, headers ...string) (*http.Response, string) {
	t.Helper()

	ctx := testutil.Context(t, testutil.WaitShort)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(data)
}

func TestCaching(t *testing.T) {
	t.Parallel()

	srv := newServer(t, fstest.MapFS{
		"bundle.js":               &fstest.MapFile{},
		"bundle.4f9c2a1e.js":      &fstest.MapFile{},
		"static/app.js":           &fstest.MapFile{Data: []byte("app")},
		"static/app-0a1b2c3d.css": &fstest.MapFile{},
		"image.png":               &fstest.MapFile{},
		"favicon.ico":             &fstest.MapFile{Data: []byte("folderFile")},
		"service-worker.js":       &fstest.MapFile{},
		"index.html":              &fstest.MapFile{Data: []byte("folderFile")},
		"terminal.html":           &fstest.MapFile{Data: []byte("folderFile")},
	})

	const (
		immutable  = "public, max-age=31536000, immutable"
		revalidate = "no-cache"
	)
	testCases := []struct {
		path  string
		cache string
	}{
		{"/bundle.4f9c2a1e.js", immutable},
		{"/static/app-0a1b2c3d.css", immutable},

		// Names without a content hash keep the same URL across builds.
		{"/bundle.js", revalidate},
		{"/static/app.js", revalidate},
		{"/image.png", revalidate},
		{"/favicon.ico", revalidate},
		{"/", revalidate},
		{"/service-worker.js", revalidate},
		{"/index.html", revalidate},
		{"/terminal.html", revalidate},
		{"/browsers", revalidate},
	}

	for _, testCase := range testCases {
		res, _ := get(t, srv, testCase.path)
		require.Equalf(t, testCase.cache, res.Header.Get("Cache-Control"), "Cache-Control for %s", testCase.path)
		if testCase.cache == revalidate {
			require.NotEmptyf(t, res.Header.Get("ETag"), "ETag for %s", testCase.path)
		}
	}
}

func TestETag(t *testing.T) {
	t.Parallel()

	srv := newServer(t, fstest.MapFS{
		"index.html":     &fstest.MapFile{Data: []byte("index")},
		"static/app.js":  &fstest.MapFile{Data: []byte("app-v1")},
		"static/app.css": &fstest.MapFile{Data: []byte("css-v1")},
	})

	res, body := get(t, srv, "/static/app.js")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "app-v1", body)
	tag := res.Header.Get("ETag")
	require.NotEmpty(t, tag)

	res, body = get(t, srv, "/static/app.js", "If-None-Match", tag)
	require.Equal(t, http.StatusNotModified, res.StatusCode)
	require.Empty(t, body)

	res, _ = get(t, srv, "/static/app.css", "If-None-Match", tag)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEqual(t, tag, res.Header.Get("ETag"))

	res, _ = get(t, srv, "/", "If-None-Match", "\"stale\"")
	require.Equal(t, http.StatusOK, res.StatusCode)
	indexTag := res.Header.Get("ETag")
	res, _ = get(t, srv, "/browsers", "If-None-Match", indexTag)
	require.Equal(t, http.StatusNotModified, res.StatusCode)
}

func TestWatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "static"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("index-v1"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "static", "app.js"), []byte("app-v1"), 0o600))

	h, err := site.New(os.DirFS(dir), testutil.Logger(t))
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- h.Watch(ctx, dir)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	res, body := get(t, srv, "/static/app.js")
	require.Equal(t, "app-v1", body)
	oldTag := res.Header.Get("ETag")

	// Writes are repeated until the watcher has picked one up.
	waitCtx := testutil.Context(t, testutil.WaitLong)
	testutil.Eventually(waitCtx, t, func(context.Context) bool {
		_ = os.WriteFile(filepath.Join(dir, "index.html"), []byte("index-v2"), 0o600)
		_ = os.WriteFile(filepath.Join(dir, "static", "app.js"), []byte("app-v2"), 0o600)
		_, body := get(t, srv, "/browsers")
		if body != "index-v2" {
			return false
		}
		res, body := get(t, srv, "/static/app.js", "If-None-Match", oldTag)
		return res.StatusCode == http.StatusOK && body == "app-v2"
	}, testutil.IntervalMedium)
}

func TestServingFiles(t *testing.T) {
	t.Parallel()

	srv := newServer(t, fstest.MapFS{
		"index.html":        &fstest.MapFile{Data: []byte("index-bytes")},
		"favicon.ico":       &fstest.MapFile{Data: []byte("favicon-bytes")},
		"static/app.js":     &fstest.MapFile{Data: []byte("app-js-bytes")},
		"static/app.css":    &fstest.MapFile{Data: []byte("app-css-bytes")},
		"static/nested/x.j": &fstest.MapFile{Data: []byte("x-bytes")},
	})

	testCases := []struct {
		path     string
		expected string
	}{
		// Client-side routes
		{"/", "index-bytes"},
		{"/index.html", "index-bytes"},
		{"/browsers", "index-bytes"},
		{"/os", "index-bytes"},
		{"/os/", "index-bytes"},
		{"/double/nested", "index-bytes"},
		{"/static", "index-bytes"},
		{"/static/missing.js", "index-bytes"},
		{"/../../etc/passwd", "index-bytes"},

		// Assets
		{"/favicon.ico", "favicon-bytes"},
		{"/static/app.js", "app-js-bytes"},
		{"/static/app.css", "app-css-bytes"},
		{"/static/nested/x.j", "x-bytes"},
	}

	for _, testCase := range testCases {
		res, body := get(t, srv, testCase.path)
		require.Equal(t, http.StatusOK, res.StatusCode, testCase.path)
		require.Equal(t, testCase.expected, body, "Verify file: "+testCase.path)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	srv := newServer(t, fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<html></html>")},
	})
	res, _ := get(t, srv, "/")
	require.Contains(t, res.Header.Get("Content-Security-Policy"), "default-src 'self'")
	require.Equal(t, "no-referrer", res.Header.Get("Referrer-Policy"))
	require.Equal(t, "nosniff", res.Header.Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", res.Header.Get("X-Frame-Options"))
	require.Contains(t, res.Header.Get("Content-Type"), "text/html")
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv := newServer(t, fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("index")},
	})
	ctx := testutil.Context(t, testutil.WaitShort)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/", nil)
	require.NoError(t, err)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
}

func TestMissingIndex(t *testing.T) {
	t.Parallel()

	_, err := site.New(fstest.MapFS{"app.js": &fstest.MapFile{}}, testutil.Logger(t))
	require.Error(t, err)
}

func TestEmbeddedBundle(t *testing.T) {
	t.Parallel()

	h, err := site.New(site.FS(), testutil.Logger(t))
	require.NoError(t, err)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/browsers", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), "/static/app.js")

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), "EventSource")
}

func TestShouldCacheFile(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		reqFile  string
		expected bool
	}{
		{"app.3f2a9c1b.js", true},
		{"static/app-0a1b2c3d4e5f.css", true},
		{"static/images/section-a/image.deadbeef.jpeg", true},

		{"123456789.js", false},
		{"static/app.js", false},
		{"static/app.css", false},
		{"image.png", false},
		{"app.cafe.js", false},
		{"service-worker.js", false},
		{"dashboard.html", false},
		{"apps/app/code/terminal.html", false},
	}

	for _, testCase := range testCases {
		require.Equal(t, testCase.expected, site.ShouldCacheFile(testCase.reqFile), testCase.reqFile)
	}
}
