package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newLimitedRouter(t *testing.T, limit int) (*gin.Engine, *miniredis.Miniredis, *RateLimiter) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })

	rl := NewRateLimiter(rdb, "lookup", limit, time.Minute, zerolog.Nop())
	fixed := time.Date(2026, 3, 1, 9, 0, 10, 0, time.UTC)
	rl.now = func() time.Time { return fixed }

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r, mr, rl
}

func get(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	r, _, _ := newLimitedRouter(t, 2)

	for i := 0; i < 2; i++ {
		if w := get(r, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}

	w := get(r, "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "50" {
		t.Fatalf("Retry-After = %q, want 50", w.Header().Get("Retry-After"))
	}
	if !strings.Contains(w.Body.String(), "RATE_LIMIT_EXCEEDED") {
		t.Fatalf("body = %s", w.Body.String())
	}

	if w := get(r, "10.0.0.2"); w.Code != http.StatusOK {
		t.Fatalf("other client limited: %d", w.Code)
	}
}

func TestRateLimiterResetsNextWindow(t *testing.T) {
	r, _, rl := newLimitedRouter(t, 1)

	get(r, "10.0.0.1")
	if w := get(r, "10.0.0.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	later := rl.now().Add(time.Minute)
	rl.now = func() time.Time { return later }
	if w := get(r, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("next window status = %d", w.Code)
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	r, mr, _ := newLimitedRouter(t, 1)
	mr.Close()

	for i := 0; i < 3; i++ {
		if w := get(r, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("request %d with redis down: status %d", i, w.Code)
		}
	}
}

func TestBrotliCompressesLargeBodies(t *testing.T) {
	large := strings.Repeat("mockmate ", 500)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "tiny") })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("Content-Encoding = %q", w.Header().Get("Content-Encoding"))
	}
	body, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(body) != large {
		t.Fatal("decompressed body differs")
	}

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Content-Encoding") != "" || w.Body.String() != "tiny" {
		t.Fatalf("small body altered: %q %q", w.Header().Get("Content-Encoding"), w.Body.String())
	}
}

func TestBrotliSkipsClientsWithoutSupport(t *testing.T) {
	large := strings.Repeat("x", 4096)
	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })

	req := httptest.NewRequest(http.MethodGet, "/large", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Content-Encoding") != "" || w.Body.Len() != len(large) {
		t.Fatal("response compressed for client without br")
	}
}

func TestCacheControl(t *testing.T) {
	r := gin.New()
	r.GET("/live", CacheControl(0), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/static", CacheControl(60), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]string{"/live": "no-store", "/static": "public, max-age=60"}
	for path, want := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if got := w.Header().Get("Cache-Control"); got != want {
			t.Errorf("%s: Cache-Control = %q, want %q", path, got, want)
		}
	}
}
