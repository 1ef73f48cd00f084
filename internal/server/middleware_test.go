package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paradero/internal/handler"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "client="+handler.ClientID(r.Context()))
	})
}

func TestWaitForData(t *testing.T) {
	ready := make(chan struct{})
	h := waitForData(okHandler(), ready, discard)

	tests := []struct {
		path     string
		wantCode int
	}{
		{"/", http.StatusServiceUnavailable},
		{"/paradero", http.StatusServiceUnavailable},
		{"/api/stops", http.StatusServiceUnavailable},
		{"/sse/dashboard", http.StatusOK},
		{"/sse/arrivals", http.StatusOK},
		{"/static/css/main.css", http.StatusOK},
		{"/manifest.json", http.StatusOK},
		{"/healthz", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
			if rec.Code != tt.wantCode {
				t.Errorf("GET %s before ready = %d, want %d", tt.path, rec.Code, tt.wantCode)
			}
		})
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if !strings.Contains(rec.Body.String(), "Cargando") || rec.Header().Get("Retry-After") != "5" {
		t.Error("loading page not served")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/stats", nil))
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("API before ready Content-Type = %q, want application/json", ct)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) || strings.Contains(rec.Body.String(), "<html") {
		t.Errorf("API before ready body = %q, want a JSON error", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") != "5" {
		t.Error("API before ready missing Retry-After")
	}

	close(ready)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET / after ready = %d, want 200", rec.Code)
	}
}

func TestClientID(t *testing.T) {
	h := clientID(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != handler.ClientCookie {
		t.Fatalf("cookies = %v, want %s", cookies, handler.ClientCookie)
	}
	if rec.Body.String() != "client="+cookies[0].Value {
		t.Errorf("context client = %q, cookie %q", rec.Body.String(), cookies[0].Value)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/static/js/app.js", nil))
	if len(rec.Result().Cookies()) != 0 || rec.Body.String() != "client=" {
		t.Error("static asset request was given a client id")
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	securityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Referrer-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}

func TestStaticCacheHandler(t *testing.T) {
	h := staticCacheHandler(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/main.css?v=abc", nil))
	if !strings.Contains(rec.Header().Get("Cache-Control"), "immutable") {
		t.Errorf("versioned asset Cache-Control = %q", rec.Header().Get("Cache-Control"))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/main.css", nil))
	if rec.Header().Get("Cache-Control") != "" {
		t.Errorf("unversioned asset Cache-Control = %q, want empty", rec.Header().Get("Cache-Control"))
	}
}

func TestStatusWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: 200}
	var _ http.Flusher = sw
	sw.WriteHeader(http.StatusTeapot)
	sw.Flush()
	if sw.status != http.StatusTeapot || !rec.Flushed {
		t.Errorf("status = %d, flushed = %v", sw.status, rec.Flushed)
	}
}
