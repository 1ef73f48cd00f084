package realtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"paradero/internal/paradero"
)

func stop(id int64, count int) paradero.Stop {
	return paradero.Stop{
		StopID:      paradero.StopID(id),
		PersonCount: count,
		Status:      paradero.Classify(count),
	}
}

func ids(stops []paradero.Stop) []string {
	out := make([]string, len(stops))
	for i, s := range stops {
		out[i] = s.StopID
	}
	return out
}

func equalIDs(got []paradero.Stop, want ...string) bool {
	g := ids(got)
	if len(g) != len(want) {
		return false
	}
	for i := range g {
		if g[i] != want[i] {
			return false
		}
	}
	return true
}

func TestStore_ReplaceSortsAndDedupes(t *testing.T) {
	s := NewStore()
	snap := s.Replace([]paradero.Stop{stop(10, 1), stop(2, 1), stop(10, 50), stop(1, 1)}, 30*time.Millisecond)

	if !equalIDs(snap, "stop-1", "stop-2", "stop-10") {
		t.Fatalf("Replace() = %v, want [stop-1 stop-2 stop-10]", ids(snap))
	}
	if got, _ := s.Get("stop-10"); got.PersonCount != 50 {
		t.Errorf("stop-10 PersonCount = %d, want the last occurrence (50)", got.PersonCount)
	}
	meta := s.Meta()
	if meta.Count != 3 || meta.ResponseTime != 30*time.Millisecond || meta.UpdatedAt.IsZero() {
		t.Errorf("Meta() = %+v", meta)
	}
}

func TestStore_Apply(t *testing.T) {
	base := []paradero.Stop{stop(1, 10), stop(3, 30), stop(5, 50)}
	updated := stop(3, 90)
	inserted := stop(2, 5)
	unknown := stop(9, 1)

	tests := []struct {
		name        string
		ev          paradero.ChangeEvent
		wantIDs     []string
		wantChanged bool
	}{
		{
			name:        "update replaces in place",
			ev:          paradero.ChangeEvent{Kind: paradero.ChangeUpdate, StopID: "stop-3", Stop: &updated},
			wantIDs:     []string{"stop-1", "stop-3", "stop-5"},
			wantChanged: true,
		},
		{
			name:    "update of unknown stop is dropped",
			ev:      paradero.ChangeEvent{Kind: paradero.ChangeUpdate, StopID: "stop-9", Stop: &unknown},
			wantIDs: []string{"stop-1", "stop-3", "stop-5"},
		},
		{
			name:        "insert keeps id order",
			ev:          paradero.ChangeEvent{Kind: paradero.ChangeInsert, StopID: "stop-2", Stop: &inserted},
			wantIDs:     []string{"stop-1", "stop-2", "stop-3", "stop-5"},
			wantChanged: true,
		},
		{
			name:        "insert of existing id replaces",
			ev:          paradero.ChangeEvent{Kind: paradero.ChangeInsert, StopID: "stop-3", Stop: &updated},
			wantIDs:     []string{"stop-1", "stop-3", "stop-5"},
			wantChanged: true,
		},
		{
			name:        "delete removes",
			ev:          paradero.ChangeEvent{Kind: paradero.ChangeDelete, StopID: "stop-1"},
			wantIDs:     []string{"stop-3", "stop-5"},
			wantChanged: true,
		},
		{
			name:    "delete of missing id is a no-op",
			ev:      paradero.ChangeEvent{Kind: paradero.ChangeDelete, StopID: "stop-42"},
			wantIDs: []string{"stop-1", "stop-3", "stop-5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.Replace(base, 0)

			snap, changed := s.Apply(tt.ev)
			if changed != tt.wantChanged {
				t.Errorf("Apply() changed = %v, want %v", changed, tt.wantChanged)
			}
			if !equalIDs(snap, tt.wantIDs...) {
				t.Errorf("Apply() = %v, want %v", ids(snap), tt.wantIDs)
			}
			if !equalIDs(s.Snapshot(), tt.wantIDs...) {
				t.Errorf("Snapshot() = %v, want %v", ids(s.Snapshot()), tt.wantIDs)
			}
		})
	}

	s := NewStore()
	s.Replace(base, 0)
	s.Apply(paradero.ChangeEvent{Kind: paradero.ChangeUpdate, StopID: "stop-3", Stop: &updated})
	if got, _ := s.Get("stop-3"); got.PersonCount != 90 || got.Status != paradero.StatusCritical {
		t.Errorf("stop-3 after update = %+v", got)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.Replace([]paradero.Stop{stop(1, 1)}, 0)

	snap := s.Snapshot()
	snap[0].PersonCount = 999
	if got, _ := s.Get("stop-1"); got.PersonCount != 1 {
		t.Errorf("mutating snapshot changed the store: %d", got.PersonCount)
	}
}

func TestDispatcher_PublishOrder(t *testing.T) {
	var order []string
	d := NewDispatcher(SinkFunc(func(Update) { order = append(order, "a") }))
	d.Register(SinkFunc(func(u Update) {
		order = append(order, "b")
		if u.At.IsZero() {
			t.Error("Publish left At unset")
		}
	}))

	d.Publish(Update{})
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Errorf("sink order = %v, want [a b]", order)
	}
}

func TestHub_LatestWins(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	for i := 1; i <= 5; i++ {
		h.Publish(Update{Stops: []paradero.Stop{stop(int64(i), 0)}})
	}

	select {
	case u := <-ch:
		if u.Stops[0].StopID != "stop-5" {
			t.Errorf("received %s, want the newest update (stop-5)", u.Stops[0].StopID)
		}
	default:
		t.Fatal("no update pending")
	}
	select {
	case u := <-ch:
		t.Errorf("unexpected second update %+v", u)
	default:
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	_, unsubscribe := h.Subscribe()
	_, other := h.Subscribe()
	defer other()

	if h.Clients() != 2 {
		t.Fatalf("Clients() = %d, want 2", h.Clients())
	}
	unsubscribe()
	unsubscribe()
	if h.Clients() != 1 {
		t.Errorf("Clients() = %d, want 1", h.Clients())
	}
}

type fixedSource struct{ stops []paradero.Stop }

func (f *fixedSource) FetchAll(context.Context) []paradero.Stop { return f.stops }

func TestFetcher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := &fixedSource{stops: []paradero.Stop{stop(2, 10), stop(1, 80)}}
	store := NewStore()

	var published []Update
	d := NewDispatcher(SinkFunc(func(u Update) { published = append(published, u) }))
	f := NewFetcher(src, store, d, 0, logger)

	snap := f.Refresh(context.Background())
	if !equalIDs(snap, "stop-1", "stop-2") {
		t.Fatalf("Refresh() = %v", ids(snap))
	}
	if len(published) != 1 || published[0].Event != nil {
		t.Fatalf("published = %+v, want one full refresh", published)
	}

	// A failed read (empty result) keeps the existing collection.
	src.stops = nil
	if got := f.Refresh(context.Background()); len(got) != 2 {
		t.Errorf("Refresh() after empty fetch = %v, want previous collection", ids(got))
	}
	if len(published) != 1 {
		t.Errorf("empty refresh published %d updates, want none", len(published)-1)
	}

	f.HandleChange(paradero.ChangeEvent{Kind: paradero.ChangeDelete, StopID: "stop-7"})
	if len(published) != 1 {
		t.Error("no-op change was published")
	}

	f.HandleChange(paradero.ChangeEvent{Kind: paradero.ChangeDelete, StopID: "stop-2"})
	if len(published) != 2 || published[1].Event == nil || !equalIDs(published[1].Stops, "stop-1") {
		t.Errorf("delete publish = %+v", published)
	}

	// Disabled refresher returns immediately.
	done := make(chan struct{})
	go func() { f.Start(context.Background()); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start() with zero interval did not return")
	}
}

// gatedSource blocks FetchAll until release is closed.
type gatedSource struct {
	stops   []paradero.Stop
	started chan struct{}
	release chan struct{}
}

func (g *gatedSource) FetchAll(context.Context) []paradero.Stop {
	close(g.started)
	<-g.release
	return g.stops
}

func TestFetcher_ChangeDuringRefresh(t *testing.T) {
	inserted := stop(2, 40)

	tests := []struct {
		name    string
		initial []paradero.Stop
		fetched []paradero.Stop
		ev      paradero.ChangeEvent
		want    []string
	}{
		{
			name:    "insert survives refresh",
			initial: []paradero.Stop{stop(1, 10)},
			fetched: []paradero.Stop{stop(1, 10)},
			ev:      paradero.ChangeEvent{Kind: paradero.ChangeInsert, StopID: inserted.StopID, Stop: &inserted},
			want:    []string{"stop-1", "stop-2"},
		},
		{
			name:    "delete survives refresh",
			initial: []paradero.Stop{stop(1, 10), stop(2, 40)},
			fetched: []paradero.Stop{stop(1, 10), stop(2, 40)},
			ev:      paradero.ChangeEvent{Kind: paradero.ChangeDelete, StopID: "stop-2"},
			want:    []string{"stop-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			store := NewStore()
			store.Replace(tt.initial, 0)

			var (
				mu   sync.Mutex
				last Update
			)
			d := NewDispatcher(SinkFunc(func(u Update) {
				mu.Lock()
				last = u
				mu.Unlock()
			}))

			src := &gatedSource{stops: tt.fetched, started: make(chan struct{}), release: make(chan struct{})}
			f := NewFetcher(src, store, d, 0, logger)

			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				f.Refresh(context.Background())
			}()
			<-src.started

			changed := make(chan struct{})
			go func() {
				defer wg.Done()
				f.HandleChange(tt.ev)
				close(changed)
			}()

			// Give the change a chance to land while the fetch is in flight.
			select {
			case <-changed:
			case <-time.After(50 * time.Millisecond):
			}
			close(src.release)
			wg.Wait()

			if got := store.Snapshot(); !equalIDs(got, tt.want...) {
				t.Errorf("store = %v, want %v", ids(got), tt.want)
			}
			mu.Lock()
			defer mu.Unlock()
			if !equalIDs(last.Stops, tt.want...) {
				t.Errorf("last published = %v, want %v", ids(last.Stops), tt.want)
			}
		})
	}
}
