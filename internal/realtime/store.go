package realtime

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"paradero/internal/paradero"
)

// Meta describes the last full fetch, for the system panel.
type Meta struct {
	UpdatedAt    time.Time
	ResponseTime time.Duration
	Count        int
}

// Store holds the live stop collection in a thread-safe manner. The
// collection is kept ordered by numeric stop id with unique stop ids.
type Store struct {
	mu    sync.RWMutex
	stops []paradero.Stop
	meta  Meta
	now   func() time.Time
}

// NewStore creates an empty realtime store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Replace swaps in a freshly fetched collection and returns a snapshot of it.
func (s *Store) Replace(stops []paradero.Stop, responseTime time.Duration) []paradero.Stop {
	next := dedupe(stops)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops = next
	s.meta = Meta{UpdatedAt: s.now(), ResponseTime: responseTime, Count: len(next)}
	return slices.Clone(s.stops)
}

// Apply merges one change event. It returns the resulting snapshot and
// whether the collection changed. Updates for unknown stops and deletes of
// unknown stops leave the collection untouched.
func (s *Store) Apply(ev paradero.ChangeEvent) ([]paradero.Stop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.stops, func(st paradero.Stop) bool { return st.StopID == ev.StopID })
	changed := false

	switch ev.Kind {
	case paradero.ChangeUpdate:
		if idx >= 0 && ev.Stop != nil {
			s.stops[idx] = *ev.Stop
			changed = true
		}
	case paradero.ChangeInsert:
		if ev.Stop == nil {
			break
		}
		if idx >= 0 {
			s.stops[idx] = *ev.Stop
		} else {
			s.stops = append(s.stops, *ev.Stop)
			sortStops(s.stops)
		}
		changed = true
	case paradero.ChangeDelete:
		if idx >= 0 {
			s.stops = slices.Delete(s.stops, idx, idx+1)
			changed = true
		}
	}

	if changed {
		s.meta.Count = len(s.stops)
		s.meta.UpdatedAt = s.now()
	}
	return slices.Clone(s.stops), changed
}

// Snapshot returns a copy of the current collection.
func (s *Store) Snapshot() []paradero.Stop {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.stops)
}

// Get returns one stop by id.
func (s *Store) Get(stopID string) (paradero.Stop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.stops {
		if st.StopID == stopID {
			return st, true
		}
	}
	return paradero.Stop{}, false
}

// Meta returns information about the last fetch.
func (s *Store) Meta() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

func sortStops(stops []paradero.Stop) {
	slices.SortStableFunc(stops, func(a, b paradero.Stop) int {
		return cmp.Compare(a.NumericID(), b.NumericID())
	})
}

// dedupe sorts a copy of stops and keeps the last occurrence of each id.
func dedupe(stops []paradero.Stop) []paradero.Stop {
	out := make([]paradero.Stop, 0, len(stops))
	pos := make(map[string]int, len(stops))
	for _, st := range stops {
		if i, ok := pos[st.StopID]; ok {
			out[i] = st
			continue
		}
		pos[st.StopID] = len(out)
		out = append(out, st)
	}
	sortStops(out)
	return out
}
