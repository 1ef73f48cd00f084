package dashboard

import (
	"math"
	"testing"
	"time"

	"paradero/internal/paradero"
)

func mkStop(id int64, count int, commune, address string, cams ...paradero.CameraStatus) paradero.Stop {
	s := paradero.Stop{
		StopID:             paradero.StopID(id),
		PersonCount:        count,
		Status:             paradero.Classify(count),
		AvgWaitTimeMinutes: float64(count) * 0.4,
		Location:           paradero.Location{Address: address, Commune: commune},
	}
	for i, c := range cams {
		s.Cameras = append(s.Cameras, paradero.Camera{CameraID: "cam-" + s.StopID + "-" + string(rune('1'+i)), Status: c})
	}
	return s
}

// sample is the three-stop collection [10, 30, 80] with 2 of 3 cameras online.
func sample() []paradero.Stop {
	return []paradero.Stop{
		mkStop(1, 10, "Santiago", "Av. Libertador 1500", paradero.CameraOnline),
		mkStop(2, 30, "Providencia", "Providencia 2124", paradero.CameraOffline),
		mkStop(3, 80, "Santiago", "Santa Rosa 789", paradero.CameraOnline),
	}
}

func TestTotals(t *testing.T) {
	stops := sample()

	if got := TotalStops(stops); got != 3 {
		t.Errorf("TotalStops() = %d, want 3", got)
	}
	if got := TotalPeople(stops); got != 120 {
		t.Errorf("TotalPeople() = %d, want 120", got)
	}
	if got := AvgWaitTime(stops); math.Abs(got-16) > 1e-9 {
		t.Errorf("AvgWaitTime() = %v, want 16", got)
	}
	if got := AvgWaitTime(nil); got != 0 {
		t.Errorf("AvgWaitTime(nil) = %v, want 0", got)
	}
}

func TestCameras(t *testing.T) {
	got := Cameras(sample())
	if got.Online != 2 || got.Total != 3 {
		t.Errorf("Cameras() = %+v, want 2/3", got)
	}
	if math.Abs(got.Percentage-66.67) > 0.01 {
		t.Errorf("Cameras().Percentage = %v, want ~66.67", got.Percentage)
	}

	if empty := Cameras(nil); empty != (CameraStats{}) {
		t.Errorf("Cameras(nil) = %+v, want zero", empty)
	}
}

func TestRankings(t *testing.T) {
	stops := []paradero.Stop{
		mkStop(1, 10, "A", "x"),
		mkStop(2, 30, "A", "x"),
		mkStop(3, 80, "A", "x"),
		mkStop(4, 30, "A", "x"),
		mkStop(5, 5, "A", "x"),
	}

	most := MostCongested(stops)
	wantMost := []string{"stop-3", "stop-2", "stop-4"}
	for i, s := range most {
		if s.StopID != wantMost[i] {
			t.Errorf("MostCongested()[%d] = %s, want %s", i, s.StopID, wantMost[i])
		}
	}

	least := LeastCongested(stops)
	wantLeast := []string{"stop-5", "stop-1", "stop-2"}
	for i, s := range least {
		if s.StopID != wantLeast[i] {
			t.Errorf("LeastCongested()[%d] = %s, want %s", i, s.StopID, wantLeast[i])
		}
	}

	if got := MostCongested(sample()); got[0].PersonCount != 80 {
		t.Errorf("MostCongested(sample)[0] = %d people, want 80", got[0].PersonCount)
	}
	if got := MostCongested(stops[:2]); len(got) != 2 {
		t.Errorf("MostCongested(2 stops) returned %d, want 2", len(got))
	}
	if stops[0].StopID != "stop-1" {
		t.Error("rankings reordered the input")
	}
}

func TestCommunes(t *testing.T) {
	got := Communes(sample())
	want := []string{"Providencia", "Santiago"}
	if len(got) != len(want) {
		t.Fatalf("Communes() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Communes()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if got := Communes(nil); got == nil || len(got) != 0 {
		t.Errorf("Communes(nil) = %#v, want empty", got)
	}
}

func TestFilter(t *testing.T) {
	stops := sample()

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty matches all", Filter{}, []string{"stop-1", "stop-2", "stop-3"}},
		{"all matches all", Filter{Status: "all", Commune: "all"}, []string{"stop-1", "stop-2", "stop-3"}},
		{"search address case-insensitive", Filter{Search: "SANTA"}, []string{"stop-3"}},
		{"search stop id", Filter{Search: "stop-2"}, []string{"stop-2"}},
		{"search keeps surrounding spaces", Filter{Search: " rosa"}, []string{"stop-3"}},
		{"blank search is a literal term", Filter{Search: "  "}, nil},
		{"status exact", Filter{Status: "critical"}, []string{"stop-3"}},
		{"commune exact", Filter{Commune: "Santiago"}, []string{"stop-1", "stop-3"}},
		{"combined", Filter{Search: "av.", Commune: "Santiago", Status: "low"}, []string{"stop-1"}},
		{"no match", Filter{Commune: "Maipú"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(stops)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() returned %d stops, want %v", len(got), tt.want)
			}
			for i := range got {
				if got[i].StopID != tt.want[i] {
					t.Errorf("Apply()[%d] = %s, want %s", i, got[i].StopID, tt.want[i])
				}
			}
		})
	}
}

func TestCharts(t *testing.T) {
	stops := sample()

	dist := StatusDistribution(stops)
	wantCounts := []int{1, 1, 0, 1}
	wantLabels := []string{"Bajo", "Medio", "Alto", "Crítico"}
	if len(dist) != 4 {
		t.Fatalf("StatusDistribution() has %d entries, want 4", len(dist))
	}
	for i, d := range dist {
		if d.Count != wantCounts[i] || d.Label != wantLabels[i] {
			t.Errorf("StatusDistribution()[%d] = %+v, want %s=%d", i, d, wantLabels[i], wantCounts[i])
		}
	}

	people := PeopleByCommune(stops)
	if len(people) != 2 || people[0] != (CommuneTotal{"Santiago", 90}) || people[1] != (CommuneTotal{"Providencia", 30}) {
		t.Errorf("PeopleByCommune() = %+v, want [Santiago 90, Providencia 30]", people)
	}
}

func TestMarkers(t *testing.T) {
	markers := Markers(sample())
	if len(markers) != 3 {
		t.Fatalf("Markers() returned %d, want 3", len(markers))
	}
	m := markers[2]
	if m.Color != "#f87171" || m.StatusLabel != "Crítico" || m.CameraID == "" {
		t.Errorf("Markers()[2] = %+v", m)
	}
}

func TestBuild(t *testing.T) {
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	v := Build(sample(), Filter{Commune: "Santiago"}, NewSystem(at, 1500*time.Microsecond, "sqlite", true))

	if v.TotalStops != 3 || v.Filtered != 2 {
		t.Errorf("TotalStops=%d Filtered=%d, want 3 and 2", v.TotalStops, v.Filtered)
	}
	if v.System.Stops != 3 || v.System.ResponseTimeMs != 1.5 || !v.System.LastUpdated.Equal(at) {
		t.Errorf("System = %+v", v.System)
	}
	if v.MostCongested[0].StopID != "stop-3" {
		t.Errorf("MostCongested[0] = %s, want stop-3", v.MostCongested[0].StopID)
	}
}
