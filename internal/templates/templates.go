// Package templates renders the HTML pages and SSE fragments as templ
// components. Run `templ generate` after editing a .templ file.
package templates

//go:generate templ generate

import (
	"fmt"
	"math"
	"net/url"
	"strconv"

	"paradero/internal/arrivals"
	"paradero/internal/dashboard"
	"paradero/internal/paradero"
)

// Page holds fields shared by every full page.
type Page struct {
	Title        string
	CurrentPath  string
	AssetVersion string
	Theme        string
	Scripts      []string
}

// DashboardData feeds the dashboard page.
type DashboardData struct {
	Page
	View     dashboard.View
	Stops    []paradero.Stop
	Statuses []paradero.Status
}

// DetailData feeds the stop detail page.
type DetailData struct {
	Page
	Stop   paradero.Stop
	Camera paradero.Camera
	Frame  arrivals.Frame
}

// ErrorData feeds the error page.
type ErrorData struct {
	Page
	Status  int
	Message string
}

func formatMinutes(m float64) string {
	if m < 1 {
		return "< 1 min"
	}
	return fmt.Sprintf("%.0f min", math.Round(m))
}

func formatMeters(m float64) string {
	if m >= 1000 {
		return fmt.Sprintf("%.1f km", m/1000)
	}
	return fmt.Sprintf("%.0f m", m)
}

func formatCameras(c dashboard.CameraStats) string {
	return fmt.Sprintf("%d/%d (%.1f%%)", c.Online, c.Total, c.Percentage)
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func assetURL(path, version string) string {
	if version == "" {
		return path
	}
	return path + "?v=" + url.QueryEscape(version)
}

func detailURL(stopID, cameraID string) string {
	return "/paradero?stopId=" + url.QueryEscape(stopID) + "&cameraId=" + url.QueryEscape(cameraID)
}

func feedURL(stopID string) string {
	return "/api/stops/" + url.PathEscape(stopID) + "/arrivals.pb?format=json"
}
