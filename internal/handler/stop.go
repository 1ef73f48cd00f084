package handler

import (
	"net/http"

	"paradero/internal/templates"
)

// StopDetail serves /paradero?stopId=&cameraId=. A missing parameter is a
// 400; an unknown stop or camera is a 404. Either way only the error page is
// rendered.
func (h *Handler) StopDetail(w http.ResponseWriter, r *http.Request) {
	stopID := r.URL.Query().Get("stopId")
	cameraID := r.URL.Query().Get("cameraId")
	if stopID == "" || cameraID == "" {
		h.renderError(w, r, http.StatusBadRequest, "Faltan los parámetros stopId y cameraId.")
		return
	}

	stop, ok := h.stops.FetchOne(r.Context(), stopID)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "No se encontró el paradero "+stopID+".")
		return
	}
	camera, ok := stop.Camera(cameraID)
	if !ok {
		h.renderError(w, r, http.StatusNotFound, "No se encontró la cámara "+cameraID+".")
		return
	}

	data := templates.DetailData{
		Page:   h.page(r, stop.Location.Address, "/static/js/paradero.js"),
		Stop:   stop,
		Camera: camera,
	}
	data.Frame.Stop.Lat, data.Frame.Stop.Lng = stop.Location.Lat, stop.Location.Lng

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.DetailPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("rendering stop detail page", "error", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	data := templates.ErrorData{Page: h.page(r, "Error"), Status: status, Message: msg}
	if err := templates.ErrorPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("rendering error page", "error", err)
	}
}
