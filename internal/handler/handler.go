package handler

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"sort"

	"paradero/internal/arrivals"
	"paradero/internal/config"
	"paradero/internal/dashboard"
	"paradero/internal/paradero"
	"paradero/internal/prefs"
	"paradero/internal/realtime"
	"paradero/internal/templates"
	"paradero/web"
)

// Stops resolves single stops against the remote table.
type Stops interface {
	FetchOne(ctx context.Context, stopID string) (paradero.Stop, bool)
	Subscribed() bool
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	stops   Stops
	rt      *realtime.Store
	hub     *realtime.Hub
	themes  prefs.Store
	cfg     *config.Config
	logger  *slog.Logger
	version string // content hash of static assets, for cache busting
	simOpts []arrivals.Option
}

// Option configures a Handler.
type Option func(*Handler)

// WithSimulatorOptions is applied to every arrivals simulator the handler
// starts.
func WithSimulatorOptions(opts ...arrivals.Option) Option {
	return func(h *Handler) { h.simOpts = append(h.simOpts, opts...) }
}

// New creates a Handler.
func New(stops Stops, rt *realtime.Store, hub *realtime.Hub, themes prefs.Store, cfg *config.Config, logger *slog.Logger, opts ...Option) *Handler {
	v := computeAssetVersion(web.StaticFiles)
	logger.Info("asset version computed", "version", v)

	h := &Handler{stops: stops, rt: rt, hub: hub, themes: themes, cfg: cfg, logger: logger, version: v}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// computeAssetVersion hashes all CSS and JS files in the embedded static
// directory to produce a short version string.
func computeAssetVersion(fsys fs.FS) string {
	h := md5.New()
	var paths []string
	fs.WalkDir(fsys, "static", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if ext := path.Ext(p); ext == ".css" || ext == ".js" {
			paths = append(paths, p)
		}
		return nil
	})
	sort.Strings(paths) // deterministic order
	for _, p := range paths {
		f, err := fsys.Open(p)
		if err != nil {
			continue
		}
		io.Copy(h, f)
		f.Close()
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:8]
}

// page creates a templates.Page with the asset version and theme pre-filled.
func (h *Handler) page(r *http.Request, title string, scripts ...string) templates.Page {
	p := templates.Page{
		Title:        title,
		CurrentPath:  r.URL.Path,
		AssetVersion: h.version,
	}
	for _, s := range scripts {
		p.Scripts = append(p.Scripts, s+"?v="+h.version)
	}
	if client := ClientID(r.Context()); client != "" {
		if t, err := h.themes.Get(r.Context(), client); err == nil {
			p.Theme = string(t)
		} else {
			h.logger.Warn("loading theme", "error", err)
		}
	}
	return p
}

// filterFromQuery reads q, status and commune.
func filterFromQuery(r *http.Request) dashboard.Filter {
	q := r.URL.Query()
	return dashboard.Filter{
		Search:  q.Get("q"),
		Status:  q.Get("status"),
		Commune: q.Get("commune"),
	}
}

// view builds the dashboard view model from the current collection.
func (h *Handler) view(stops []paradero.Stop, f dashboard.Filter) dashboard.View {
	meta := h.rt.Meta()
	return dashboard.Build(stops, f, dashboard.NewSystem(meta.UpdatedAt, meta.ResponseTime, h.cfg.Source(), h.stops.Subscribed()))
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
