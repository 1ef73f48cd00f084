package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"paradero/internal/config"
	"paradero/internal/handler"
	"paradero/web"
)

// Server is the HTTP server for the paradero dashboard.
type Server struct {
	mux    *http.ServeMux
	cfg    *config.Config
	logger *slog.Logger
	ready  chan struct{} // closed after the first fetch

	mu   sync.Mutex
	http *http.Server
}

// New creates a new Server with all routes registered.
func New(cfg *config.Config, h *handler.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{mux: mux, cfg: cfg, logger: logger, ready: make(chan struct{})}

	// Static files from the embedded FS; versioned URLs get immutable caching
	staticFS, _ := fs.Sub(web.StaticFiles, "static")
	fileServer := http.FileServer(http.FS(staticFS))
	mux.Handle("GET /static/", http.StripPrefix("/static/", staticCacheHandler(fileServer)))

	// Pages
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /paradero", h.StopDetail)

	// SSE
	mux.HandleFunc("GET /sse/dashboard", h.SSEDashboard)
	mux.HandleFunc("GET /sse/arrivals/{id}", h.SSEArrivals)
	mux.HandleFunc("GET /sse/theme", h.SSETheme)

	// JSON API
	mux.Handle("/api/", apiRouter(h))

	// Misc
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /manifest.json", h.Manifest)

	return s
}

func apiRouter(h *handler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/stops", h.APIStops)
		r.Get("/stops/{id}", h.APIStop)
		r.Get("/stops/{id}/arrivals.pb", h.APIArrivalsFeed)
		r.Get("/stats", h.APIStats)
		r.Get("/theme", h.APITheme)
		r.Post("/theme/toggle", h.APIToggleTheme)
	})
	return r
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return withMiddleware(s.mux, s.logger, s.ready)
}

// SetReady signals that the first fetch has completed.
func (s *Server) SetReady() {
	select {
	case <-s.ready:
		// already closed
	default:
		close(s.ready)
	}
}

// ListenAndServe starts the HTTP server. Request contexts derive from ctx,
// so cancelling it ends open SSE streams. It returns nil after Shutdown.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.http = hs
	s.mu.Unlock()

	s.logger.Info("server starting", "addr", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.http
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	return hs.Shutdown(ctx)
}
