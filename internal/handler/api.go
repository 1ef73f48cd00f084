package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paradero/internal/arrivals"
	"paradero/internal/dashboard"
	"paradero/internal/feed"
	"paradero/internal/geo"
	"paradero/internal/paradero"
)

// StopsResponse is the JSON body for GET /api/stops.
type StopsResponse struct {
	Stops     []paradero.Stop  `json:"stops"`
	Count     int              `json:"count"`
	Filter    dashboard.Filter `json:"filter"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// APIStops handles GET /api/stops with the dashboard filters.
func (h *Handler) APIStops(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	stops := f.Apply(h.rt.Snapshot())
	writeJSON(w, http.StatusOK, StopsResponse{
		Stops:     stops,
		Count:     len(stops),
		Filter:    f,
		UpdatedAt: h.rt.Meta().UpdatedAt,
	})
}

// APIStop handles GET /api/stops/{id}.
func (h *Handler) APIStop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := paradero.ParseStopID(id); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	stop, ok := h.lookupStop(r.Context(), id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "stop not found")
		return
	}
	writeJSON(w, http.StatusOK, stop)
}

// APIStats handles GET /api/stats: the dashboard view over every stop.
func (h *Handler) APIStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view(h.rt.Snapshot(), filterFromQuery(r)))
}

// APIArrivalsFeed handles GET /api/stops/{id}/arrivals.pb. It runs a
// one-shot simulator session and returns its vehicles as GTFS-Realtime.
func (h *Handler) APIArrivalsFeed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stop, ok := h.lookupStop(r.Context(), id)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "stop not found")
		return
	}

	sim := arrivals.New(h.simOpts...)
	sim.Start(r.Context(), geo.Point{Lat: stop.Location.Lat, Lng: stop.Location.Lng}, nil)
	frame := sim.Frame()
	sim.Stop()

	body, contentType, err := feed.Encode(feed.Build(id, frame, time.Now()), r.URL.Query().Get("format"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Write(body)
}

// ThemeResponse is the JSON body for the theme endpoints.
type ThemeResponse struct {
	Theme string `json:"theme"`
}

// APITheme handles GET /api/theme.
func (h *Handler) APITheme(w http.ResponseWriter, r *http.Request) {
	client := ClientID(r.Context())
	if client == "" {
		writeJSONError(w, http.StatusBadRequest, "missing client id")
		return
	}
	t, err := h.themes.Get(r.Context(), client)
	if err != nil {
		h.logger.Error("loading theme", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "theme unavailable")
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: string(t)})
}

// APIToggleTheme handles POST /api/theme/toggle.
func (h *Handler) APIToggleTheme(w http.ResponseWriter, r *http.Request) {
	client := ClientID(r.Context())
	if client == "" {
		writeJSONError(w, http.StatusBadRequest, "missing client id")
		return
	}
	t, err := h.themes.Toggle(r.Context(), client)
	if err != nil {
		h.logger.Error("toggling theme", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "theme unavailable")
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: string(t)})
}

// NotReady answers API requests that arrive before the first fetch.
func NotReady(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "5")
	writeJSONError(w, http.StatusServiceUnavailable, "stop data not loaded yet")
}

// Healthz reports liveness plus the collection size.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	meta := h.rt.Meta()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"stops":     meta.Count,
		"updatedAt": meta.UpdatedAt,
		"live":      h.stops.Subscribed(),
		"clients":   h.hub.Clients(),
	})
}
