// Package dashboard derives the dashboard views (totals, charts, map
// markers and rankings) from a stop collection. Every function is pure.
package dashboard

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"paradero/internal/paradero"
)

// FilterAll matches every value of a status or commune filter.
const FilterAll = "all"

// CameraStats summarizes camera availability across all stops.
type CameraStats struct {
	Online     int     `json:"online"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// StatusCount is one slice of the congestion doughnut chart.
type StatusCount struct {
	Status paradero.Status `json:"status"`
	Label  string          `json:"label"`
	Color  string          `json:"color"`
	Count  int             `json:"count"`
}

// CommuneTotal is one bar of the people-by-commune chart.
type CommuneTotal struct {
	Commune string `json:"commune"`
	People  int    `json:"people"`
}

// Marker is a map pin with its popup fields.
type Marker struct {
	StopID      string          `json:"stopId"`
	Lat         float64         `json:"lat"`
	Lng         float64         `json:"lng"`
	Address     string          `json:"address"`
	Commune     string          `json:"commune"`
	Status      paradero.Status `json:"status"`
	StatusLabel string          `json:"statusLabel"`
	Color       string          `json:"color"`
	PersonCount int             `json:"personCount"`
	AvgWait     float64         `json:"avgWaitTimeMinutes"`
	CameraID    string          `json:"cameraId,omitempty"`
}

// System is the diagnostics panel.
type System struct {
	LastUpdated    time.Time `json:"lastUpdated"`
	ResponseTimeMs float64   `json:"responseTimeMs"`
	Stops          int       `json:"stops"`
	Source         string    `json:"source"`
	Live           bool      `json:"live"`
}

// Filter selects stops for the list view. Empty fields and FilterAll match
// everything.
type Filter struct {
	Search  string `json:"q"`
	Status  string `json:"status"`
	Commune string `json:"commune"`
}

// Match reports whether a stop passes the filter. Search is a
// case-insensitive substring match on address or stop id.
func (f Filter) Match(s paradero.Stop) bool {
	if term := strings.ToLower(f.Search); term != "" {
		if !strings.Contains(strings.ToLower(s.Location.Address), term) &&
			!strings.Contains(strings.ToLower(s.StopID), term) {
			return false
		}
	}
	if f.Status != "" && f.Status != FilterAll && string(s.Status) != f.Status {
		return false
	}
	if f.Commune != "" && f.Commune != FilterAll && s.Location.Commune != f.Commune {
		return false
	}
	return true
}

// Apply returns the matching stops in their original order.
func (f Filter) Apply(stops []paradero.Stop) []paradero.Stop {
	out := make([]paradero.Stop, 0, len(stops))
	for _, s := range stops {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Communes returns the sorted set of distinct communes.
func Communes(stops []paradero.Stop) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, s := range stops {
		if !seen[s.Location.Commune] {
			seen[s.Location.Commune] = true
			out = append(out, s.Location.Commune)
		}
	}
	slices.Sort(out)
	return out
}

// TotalStops returns the collection size.
func TotalStops(stops []paradero.Stop) int {
	return len(stops)
}

// TotalPeople sums person counts.
func TotalPeople(stops []paradero.Stop) int {
	total := 0
	for _, s := range stops {
		total += s.PersonCount
	}
	return total
}

// AvgWaitTime is the mean wait in minutes, or 0 for no stops.
func AvgWaitTime(stops []paradero.Stop) float64 {
	if len(stops) == 0 {
		return 0
	}
	var total float64
	for _, s := range stops {
		total += s.AvgWaitTimeMinutes
	}
	return total / float64(len(stops))
}

// Cameras counts online cameras. Percentage is 0 when there are none.
func Cameras(stops []paradero.Stop) CameraStats {
	var cs CameraStats
	for _, s := range stops {
		for _, c := range s.Cameras {
			cs.Total++
			if c.Status == paradero.CameraOnline {
				cs.Online++
			}
		}
	}
	if cs.Total > 0 {
		cs.Percentage = float64(cs.Online) / float64(cs.Total) * 100
	}
	return cs
}

const rankingSize = 3

// MostCongested returns up to three stops with the highest person count.
// Ties keep collection order.
func MostCongested(stops []paradero.Stop) []paradero.Stop {
	return ranked(stops, func(a, b paradero.Stop) int { return cmp.Compare(b.PersonCount, a.PersonCount) })
}

// LeastCongested returns up to three stops with the lowest person count.
// Ties keep collection order.
func LeastCongested(stops []paradero.Stop) []paradero.Stop {
	return ranked(stops, func(a, b paradero.Stop) int { return cmp.Compare(a.PersonCount, b.PersonCount) })
}

func ranked(stops []paradero.Stop, order func(a, b paradero.Stop) int) []paradero.Stop {
	sorted := slices.Clone(stops)
	slices.SortStableFunc(sorted, order)
	if len(sorted) > rankingSize {
		sorted = sorted[:rankingSize]
	}
	return sorted
}

// StatusDistribution counts stops per tier, low through critical.
func StatusDistribution(stops []paradero.Stop) []StatusCount {
	counts := make(map[paradero.Status]int)
	for _, s := range stops {
		counts[s.Status]++
	}
	out := make([]StatusCount, 0, len(paradero.Statuses))
	for _, st := range paradero.Statuses {
		out = append(out, StatusCount{
			Status: st,
			Label:  st.Label(),
			Color:  st.Color(),
			Count:  counts[st],
		})
	}
	return out
}

// PeopleByCommune sums person counts per commune, in order of first
// appearance.
func PeopleByCommune(stops []paradero.Stop) []CommuneTotal {
	idx := make(map[string]int)
	out := []CommuneTotal{}
	for _, s := range stops {
		i, ok := idx[s.Location.Commune]
		if !ok {
			i = len(out)
			idx[s.Location.Commune] = i
			out = append(out, CommuneTotal{Commune: s.Location.Commune})
		}
		out[i].People += s.PersonCount
	}
	return out
}

// Markers builds one map pin per stop.
func Markers(stops []paradero.Stop) []Marker {
	out := make([]Marker, 0, len(stops))
	for _, s := range stops {
		m := Marker{
			StopID:      s.StopID,
			Lat:         s.Location.Lat,
			Lng:         s.Location.Lng,
			Address:     s.Location.Address,
			Commune:     s.Location.Commune,
			Status:      s.Status,
			StatusLabel: s.Status.Label(),
			Color:       s.Status.Color(),
			PersonCount: s.PersonCount,
			AvgWait:     s.AvgWaitTimeMinutes,
		}
		if len(s.Cameras) > 0 {
			m.CameraID = s.Cameras[0].CameraID
		}
		out = append(out, m)
	}
	return out
}
