package api

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HsienYu/BreakingNewsEffects/internal/archiver"
	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeArchiver{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestServer_Readyz_BeforeFirstPass(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeArchiver{ready: false})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "no manifest committed yet")
}

func TestServer_Readyz_AfterCommit(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeArchiver{ready: true})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ready")
}

func TestServer_Feed_ReturnsItems(t *testing.T) {
	t.Parallel()

	img := "assets/images/abc.jpg"
	arc := &fakeArchiver{feed: []news.FeedItem{
		{Title: "Breaking story", Link: "https://www.ntn24.com/news/breaking", Image: &img},
	}}
	server := newTestServer(t, arc)
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":1`)
	require.Contains(t, rec.Body.String(), "Breaking story")
	require.Contains(t, rec.Body.String(), "assets/images/abc.jpg")
}

func TestServer_Feed_EmptyCacheIsAnEmptyArray(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeArchiver{feed: nil})
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"count":0`)
	require.Contains(t, rec.Body.String(), `"items":[]`)
}

func TestServer_Feed_LoadError(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeArchiver{feedErr: errors.New("manifest unreadable")})
	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_Refresh_DefaultsToQuick(t *testing.T) {
	t.Parallel()

	arc := &fakeArchiver{runResult: news.PassResult{PassID: "pass-1", Mode: news.ModeQuick, ItemsFound: 3}}
	server := newTestServer(t, arc)
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "pass-1")
	require.Equal(t, 1, arc.calls())
	require.Equal(t, news.ModeQuick, arc.lastOpts().Mode)
	require.False(t, arc.lastOpts().NoImages)
}

func TestServer_Refresh_FullModeWithoutImages(t *testing.T) {
	t.Parallel()

	arc := &fakeArchiver{runResult: news.PassResult{PassID: "pass-2", Mode: news.ModeFull}}
	server := newTestServer(t, arc)
	body := bytes.NewBufferString(`{"mode":"full","no_images":true}`)
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", body)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, news.ModeFull, arc.lastOpts().Mode)
	require.True(t, arc.lastOpts().NoImages)
}

func TestServer_Refresh_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeArchiver{})
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", bytes.NewBufferString("{invalid"))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Refresh_UnknownMode(t *testing.T) {
	t.Parallel()

	arc := &fakeArchiver{}
	server := newTestServer(t, arc)
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", bytes.NewBufferString(`{"mode":"turbo"}`))
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "unknown mode")
	require.Equal(t, 0, arc.calls())
}

func TestServer_Refresh_ConflictWhileRunning(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeArchiver{runErr: archiver.ErrPassInProgress})
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "already running")
}

func TestServer_Refresh_HomepageDown(t *testing.T) {
	t.Parallel()

	runErr := &news.FatalFetchError{URL: "https://www.ntn24.com", Err: errors.New("connection refused")}
	server := newTestServer(t, &fakeArchiver{runErr: runErr})
	req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "homepage fetch")
}

func TestServer_ServesArchivedPages(t *testing.T) {
	t.Parallel()

	cacheRoot := t.TempDir()
	pageDir := filepath.Join(cacheRoot, "html", "breaking-story")
	require.NoError(t, os.MkdirAll(pageDir, 0o755))
	page := []byte("<html><body><h1>Breaking story</h1></body></html>")
	require.NoError(t, os.WriteFile(filepath.Join(pageDir, "index.html"), page, 0o644))

	server := NewServer(&fakeArchiver{}, cacheRoot, nil)
	req := httptest.NewRequest(http.MethodGet, "/html/breaking-story/index.html", nil)
	rec := httptest.NewRecorder()

	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Breaking story")
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	newTestServer(t, &fakeArchiver{}).Handler().ServeHTTP(rec, req)

	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if _, _, err := rw.Hijack(); err == nil || err.Error() != "hijacker not supported" {
		t.Fatalf("expected unsupported hijacker error, got %v", err)
	}

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	if err != nil {
		t.Fatalf("expected successful hijack, got %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close hijacked conn: %v", err)
	}
	if err := h.CloseClient(); err != nil {
		t.Fatalf("close hijacked client: %v", err)
	}
	if buf == nil {
		t.Fatal("expected buf to be non-nil")
	}
}

// --- helpers/fakes ---

type fakeArchiver struct {
	mu        sync.Mutex
	ready     bool
	feed      []news.FeedItem
	feedErr   error
	runResult news.PassResult
	runErr    error
	runOpts   []archiver.Options
}

func (f *fakeArchiver) RunPass(_ context.Context, opts archiver.Options) (news.PassResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runOpts = append(f.runOpts, opts)
	if f.runErr != nil {
		return news.PassResult{}, f.runErr
	}
	return f.runResult, nil
}

func (f *fakeArchiver) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeArchiver) NewsFeed() ([]news.FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.feedErr != nil {
		return nil, f.feedErr
	}
	return f.feed, nil
}

func (f *fakeArchiver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runOpts)
}

func (f *fakeArchiver) lastOpts() archiver.Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.runOpts) == 0 {
		return archiver.Options{}
	}
	return f.runOpts[len(f.runOpts)-1]
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func newTestServer(t *testing.T, arc Archiver) *Server {
	t.Helper()
	return NewServer(arc, t.TempDir(), nil)
}
