package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func setupStreamRouter(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	outputDir := t.TempDir()
	router := gin.New()
	SetupStreamRoutes(router, outputDir)
	return router, outputDir
}

// assertLiveHeaders verifies the cache-disabling header set that must be
// present on every playlist and segment response, including errors.
func assertLiveHeaders(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	if got := w.Header().Get("Cache-Control"); got != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q, want no-cache, no-store, must-revalidate", got)
	}
	if got := w.Header().Get("Pragma"); got != "no-cache" {
		t.Errorf("Pragma = %q, want no-cache", got)
	}
	if got := w.Header().Get("Expires"); got != "0" {
		t.Errorf("Expires = %q, want 0", got)
	}
}

func TestGetPlaylist(t *testing.T) {
	router, outputDir := setupStreamRouter(t)

	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXTINF:6.0,\nstream0.ts\n"
	if err := os.WriteFile(filepath.Join(outputDir, "stream.m3u8"), []byte(playlist), 0644); err != nil {
		t.Fatalf("Failed to write playlist: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream.m3u8", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != playlist {
		t.Error("Playlist body does not match file content")
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/vnd.apple.mpegurl") {
		t.Errorf("Content-Type = %q, want application/vnd.apple.mpegurl", ct)
	}
	assertLiveHeaders(t, w)
}

func TestGetPlaylist_NotReady(t *testing.T) {
	router, _ := setupStreamRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream.m3u8", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	// A cached 404 would outlive the playlist appearing seconds later
	assertLiveHeaders(t, w)
}

func TestGetSegment(t *testing.T) {
	router, outputDir := setupStreamRouter(t)

	payload := []byte{0x47, 0x00, 0x11} // TS sync byte
	if err := os.WriteFile(filepath.Join(outputDir, "stream42.ts"), payload, 0644); err != nil {
		t.Fatalf("Failed to write segment: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream42.ts", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Content-Type"); got != "video/MP2T" {
		t.Errorf("Content-Type = %q, want video/MP2T", got)
	}
	assertLiveHeaders(t, w)
}

func TestGetSegment_Expired(t *testing.T) {
	router, _ := setupStreamRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream7.ts", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	assertLiveHeaders(t, w)
}

// Browser players need CORS headers on failures too, or a transient 404
// surfaces as an opaque cross-origin error instead of a retryable miss.
func TestStreamRoutes_CORSOnNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(cors.Default())
	SetupStreamRoutes(router, t.TempDir())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream3.ts", nil)
	req.Header.Set("Origin", "http://player.example")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestGetSegment_RejectsForeignNames(t *testing.T) {
	router, outputDir := setupStreamRouter(t)

	// Present in the directory but outside the transcoder's naming scheme
	if err := os.WriteFile(filepath.Join(outputDir, "secret.ts"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	paths := []string{
		"/secret.ts",
		"/stream.ts",
		"/streamX.ts",
		"/stream1.mp4",
		"/..%2f..%2fetc%2fpasswd",
	}

	for _, path := range paths {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusNotFound)
		}
	}
}
