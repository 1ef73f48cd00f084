package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/a-h/templ"

	"paradero/internal/arrivals"
	"paradero/internal/dashboard"
	"paradero/internal/geo"
	"paradero/internal/paradero"
	"paradero/internal/templates"
)

const keepAliveInterval = 30 * time.Second

// sseStream writes named Server-Sent Events.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE sets the event-stream headers. It fails when the writer cannot
// flush.
func startSSE(w http.ResponseWriter) (*sseStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &sseStream{w: w, flusher: flusher}, true
}

// send writes one event. Each payload line gets its own "data:" prefix.
func (s *sseStream) send(event string, payload []byte) {
	fmt.Fprintf(s.w, "event: %s\n", event)
	for _, line := range bytes.Split(payload, []byte("\n")) {
		fmt.Fprintf(s.w, "data: %s\n", line)
	}
	fmt.Fprintf(s.w, "\n")
	s.flusher.Flush()
}

func (s *sseStream) sendJSON(event string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.send(event, b)
	return nil
}

func (s *sseStream) sendComponent(ctx context.Context, event string, c templ.Component) error {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return err
	}
	s.send(event, buf.Bytes())
	return nil
}

func (s *sseStream) ping() {
	fmt.Fprint(s.w, ": ping\n\n")
	s.flusher.Flush()
}

// SSEDashboard streams the dashboard view and the filtered stop list, once
// on connect and again on every published update.
func (h *Handler) SSEDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := filterFromQuery(r)

	updates, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	stream, ok := startSSE(w)
	if !ok {
		return
	}
	h.sendDashboard(ctx, stream, h.rt.Snapshot(), f)

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updates:
			h.sendDashboard(ctx, stream, u.Stops, f)
		case <-keepAlive.C:
			stream.ping()
		}
	}
}

func (h *Handler) sendDashboard(ctx context.Context, s *sseStream, stops []paradero.Stop, f dashboard.Filter) {
	if err := s.sendJSON("dashboard", h.view(stops, f)); err != nil {
		h.logger.Error("encoding SSE dashboard view", "error", err)
		return
	}
	if err := s.sendComponent(ctx, "stops", templates.StopList(f.Apply(stops))); err != nil {
		h.logger.Error("rendering SSE stop list", "error", err)
	}
}

// lookupStop prefers the live collection and falls back to the table.
func (h *Handler) lookupStop(ctx context.Context, stopID string) (paradero.Stop, bool) {
	if s, ok := h.rt.Get(stopID); ok {
		return s, true
	}
	return h.stops.FetchOne(ctx, stopID)
}

// SSEArrivals runs one simulator session for the connection. Each frame is
// sent as an HTML list ("arrivals") and as JSON vehicle positions
// ("vehicles"). The session stops when the client disconnects.
func (h *Handler) SSEArrivals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stop, ok := h.lookupStop(ctx, r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	stream, ok := startSSE(w)
	if !ok {
		return
	}

	frames := make(chan arrivals.Frame, 1)
	sim := arrivals.New(h.simOpts...)
	sim.Start(ctx, geo.Point{Lat: stop.Location.Lat, Lng: stop.Location.Lng}, func(f arrivals.Frame) {
		// Keep only the newest frame if the client falls behind.
		for {
			select {
			case frames <- f:
				return
			default:
			}
			select {
			case <-frames:
			default:
			}
		}
	})
	defer sim.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case f := <-frames:
			if err := stream.sendComponent(ctx, "arrivals", templates.ArrivalList(f)); err != nil {
				h.logger.Error("rendering SSE arrival list", "error", err)
			}
			if err := stream.sendJSON("vehicles", f); err != nil {
				h.logger.Error("encoding SSE vehicles", "error", err)
			}
		}
	}
}

// SSETheme pushes the current theme, then every change made from another
// tab of the same browser.
func (h *Handler) SSETheme(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := ClientID(ctx)
	if client == "" {
		http.Error(w, "missing client id", http.StatusBadRequest)
		return
	}

	changes, err := h.themes.Subscribe(ctx, client)
	if err != nil {
		h.logger.Error("subscribing to theme changes", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	stream, ok := startSSE(w)
	if !ok {
		return
	}
	if current, err := h.themes.Get(ctx, client); err == nil {
		stream.send("theme", []byte(current))
	}

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-changes:
			if !ok {
				return
			}
			stream.send("theme", []byte(t))
		case <-keepAlive.C:
			stream.ping()
		}
	}
}
