package handler

import (
	"net/http"

	"paradero/internal/paradero"
	"paradero/internal/templates"
)

// Home serves the dashboard.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	f := filterFromQuery(r)
	stops := h.rt.Snapshot()
	data := templates.DashboardData{
		Page:     h.page(r, "Dashboard", "/static/js/dashboard.js"),
		View:     h.view(stops, f),
		Stops:    f.Apply(stops),
		Statuses: paradero.Statuses,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.DashboardPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("rendering dashboard page", "error", err)
	}
}
