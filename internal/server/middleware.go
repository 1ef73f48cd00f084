package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"paradero/internal/handler"
	"paradero/internal/templates"
)

func withMiddleware(h http.Handler, logger *slog.Logger, ready <-chan struct{}) http.Handler {
	return securityHeaders(requestLogger(waitForData(clientID(h), ready, logger), logger))
}

// waitForData shows a loading page until the first stop fetch completes.
// API calls get a JSON 503 instead. SSE streams, static assets, the manifest
// and health checks pass through; streams receive the first refresh when
// it is published.
func waitForData(next http.Handler, ready <-chan struct{}, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ready:
			next.ServeHTTP(w, r)
			return
		default:
		}

		p := r.URL.Path
		switch {
		case strings.HasPrefix(p, "/static/"), strings.HasPrefix(p, "/sse/"),
			p == "/manifest.json", p == "/healthz":
			next.ServeHTTP(w, r)
			return
		case strings.HasPrefix(p, "/api/"):
			handler.NotReady(w)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := templates.LoadingPage().Render(r.Context(), w); err != nil {
			logger.Error("rendering loading page", "error", err)
		}
	})
}

// clientID attaches the anonymous browser id to the request context,
// issuing the cookie on first visit. Static assets skip it.
func clientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if strings.HasPrefix(p, "/static/") || p == "/manifest.json" || p == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		id := handler.EnsureClient(w, r)
		next.ServeHTTP(w, r.WithContext(handler.WithClientID(r.Context(), id)))
	})
}

func requestLogger(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip logging for SSE connections (they're long-lived)
		if r.Header.Get("Accept") == "text/event-stream" || strings.HasPrefix(r.URL.Path, "/sse/") {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start).Round(time.Microsecond),
		)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// staticCacheHandler sets long cache headers on versioned static assets (?v=...).
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "" {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush exposes the underlying Flusher for SSE support.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
