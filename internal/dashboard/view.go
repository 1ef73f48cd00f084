package dashboard

import (
	"time"

	"paradero/internal/paradero"
)

// View is everything the dashboard page renders, computed in one pass over
// a snapshot.
type View struct {
	TotalStops      int             `json:"totalStops"`
	TotalPeople     int             `json:"totalPeople"`
	AvgWaitTime     float64         `json:"avgWaitTime"`
	Cameras         CameraStats     `json:"cameraStats"`
	MostCongested   []paradero.Stop `json:"mostCongested"`
	LeastCongested  []paradero.Stop `json:"leastCongested"`
	Status          []StatusCount   `json:"statusDistribution"`
	PeopleByCommune []CommuneTotal  `json:"peopleByCommune"`
	Communes        []string        `json:"communes"`
	Markers         []Marker        `json:"markers"`
	System          System          `json:"system"`
	Filtered        int             `json:"filtered"`
	Filter          Filter          `json:"filter"`
}

// Build computes the full view. The filter only affects Filtered; charts
// and totals always cover every stop.
func Build(stops []paradero.Stop, f Filter, sys System) View {
	sys.Stops = len(stops)
	return View{
		TotalStops:      TotalStops(stops),
		TotalPeople:     TotalPeople(stops),
		AvgWaitTime:     AvgWaitTime(stops),
		Cameras:         Cameras(stops),
		MostCongested:   MostCongested(stops),
		LeastCongested:  LeastCongested(stops),
		Status:          StatusDistribution(stops),
		PeopleByCommune: PeopleByCommune(stops),
		Communes:        Communes(stops),
		Markers:         Markers(stops),
		System:          sys,
		Filtered:        len(f.Apply(stops)),
		Filter:          f,
	}
}

// NewSystem fills the diagnostics panel from the last fetch.
func NewSystem(lastUpdated time.Time, responseTime time.Duration, source string, live bool) System {
	return System{
		LastUpdated:    lastUpdated,
		ResponseTimeMs: float64(responseTime.Microseconds()) / 1000,
		Source:         source,
		Live:           live,
	}
}
