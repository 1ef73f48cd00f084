package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"paradero/internal/paradero"
)

// StopSource is the read side of the stop repository.
type StopSource interface {
	FetchAll(ctx context.Context) []paradero.Stop
}

// Fetcher keeps the store in sync with the repository: full refreshes on a
// ticker, plus change events merged as they arrive. Both paths publish the
// resulting snapshot through the dispatcher. The two paths never
// interleave, so a refresh cannot overwrite a change merged while it was
// fetching.
type Fetcher struct {
	mu sync.Mutex

	source     StopSource
	store      *Store
	dispatcher *Dispatcher
	interval   time.Duration
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher. A non-positive interval disables periodic
// refreshes.
func NewFetcher(source StopSource, store *Store, dispatcher *Dispatcher, interval time.Duration, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		source:     source,
		store:      store,
		dispatcher: dispatcher,
		interval:   interval,
		logger:     logger,
	}
}

// Refresh fetches the full collection, stores it and publishes it. An empty
// result never replaces a non-empty store.
func (f *Fetcher) Refresh(ctx context.Context) []paradero.Stop {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	stops := f.source.FetchAll(ctx)
	took := time.Since(start)

	if len(stops) == 0 && f.store.Meta().Count > 0 {
		f.logger.Warn("refresh returned no stops, keeping previous collection")
		return f.store.Snapshot()
	}

	snap := f.store.Replace(stops, took)
	f.dispatcher.Publish(Update{Stops: snap})
	f.logger.Info("paradero collection refreshed", "count", len(snap), "took", took.Round(time.Millisecond))
	return snap
}

// HandleChange merges one change event and publishes the result when the
// collection changed. It is meant to be used as the repository handler.
// Events arriving during a refresh wait for it and are merged on top of
// the new collection.
func (f *Fetcher) HandleChange(ev paradero.ChangeEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, changed := f.store.Apply(ev)
	if !changed {
		f.logger.Debug("change event ignored", "kind", ev.Kind, "stop", ev.StopID)
		return
	}
	f.dispatcher.Publish(Update{Event: &ev, Stops: snap})
	f.logger.Info("paradero changed", "kind", ev.Kind, "stop", ev.StopID)
}

// Start refreshes on every tick until ctx is cancelled. Call Refresh first
// for the initial load.
func (f *Fetcher) Start(ctx context.Context) {
	if f.interval <= 0 {
		return
	}

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Refresh(ctx)
		case <-ctx.Done():
			f.logger.Info("paradero refresher stopped")
			return
		}
	}
}
