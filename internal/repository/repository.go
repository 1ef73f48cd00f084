package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"paradero/internal/paradero"
	"paradero/internal/storage"
)

// DefaultTimeout bounds each remote read.
const DefaultTimeout = 10 * time.Second

// Table is the remote measurement table. storage.DB and pgstore.Store
// implement it.
type Table interface {
	ListMeasurements(ctx context.Context) ([]paradero.RawMeasurement, error)
	GetMeasurement(ctx context.Context, id int64) (paradero.RawMeasurement, error)
	Changes(ctx context.Context) (<-chan paradero.RawChange, error)
}

// Handler receives enriched change events, one at a time.
type Handler func(paradero.ChangeEvent)

// Callbacks is the per-kind form of Handler. Nil fields are skipped.
type Callbacks struct {
	OnInsert func(paradero.Stop)
	OnUpdate func(paradero.Stop)
	OnDelete func(stopID string)
}

// Handler dispatches each event to the matching callback.
func (c Callbacks) Handler() Handler {
	return func(ev paradero.ChangeEvent) {
		switch ev.Kind {
		case paradero.ChangeInsert:
			if c.OnInsert != nil && ev.Stop != nil {
				c.OnInsert(*ev.Stop)
			}
		case paradero.ChangeUpdate:
			if c.OnUpdate != nil && ev.Stop != nil {
				c.OnUpdate(*ev.Stop)
			}
		case paradero.ChangeDelete:
			if c.OnDelete != nil {
				c.OnDelete(ev.StopID)
			}
		}
	}
}

// Repository is the read and subscribe facade over the measurement table.
// Every row leaving it has been enriched.
type Repository struct {
	table    Table
	enricher *paradero.Enricher
	logger   *slog.Logger
	timeout  time.Duration
	rows     *Cache[int64, paradero.RawMeasurement]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Repository.
type Option func(*Repository)

// WithCacheTTL caches raw rows read by FetchOne. Zero disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Repository) { r.rows = NewCache[int64, paradero.RawMeasurement](ttl) }
}

// WithTimeout sets the per-read timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Repository) { r.timeout = d }
}

// New creates a Repository.
func New(table Table, enricher *paradero.Enricher, logger *slog.Logger, opts ...Option) *Repository {
	r := &Repository{
		table:    table,
		enricher: enricher,
		logger:   logger,
		timeout:  DefaultTimeout,
		rows:     NewCache[int64, paradero.RawMeasurement](0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchAll reads every row ordered by id and enriches it. Failures are
// logged and yield an empty slice.
func (r *Repository) FetchAll(ctx context.Context) []paradero.Stop {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.table.ListMeasurements(ctx)
	if err != nil {
		r.logger.Error("fetching paradero measurements", "error", err)
		return []paradero.Stop{}
	}

	stops := make([]paradero.Stop, 0, len(rows))
	for _, m := range rows {
		stops = append(stops, r.enricher.Enrich(m))
	}
	return stops
}

// FetchOne resolves a single stop by its "stop-N" id. It reports false for
// malformed ids, missing rows and read failures.
func (r *Repository) FetchOne(ctx context.Context, stopID string) (paradero.Stop, bool) {
	id, err := paradero.ParseStopID(stopID)
	if err != nil {
		r.logger.Warn("invalid stop id", "stop", stopID, "error", err)
		return paradero.Stop{}, false
	}

	if m, ok := r.rows.Get(id); ok {
		return r.enricher.Enrich(m), true
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	m, err := r.table.GetMeasurement(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return paradero.Stop{}, false
	}
	if err != nil {
		r.logger.Error("fetching paradero measurement", "stop", stopID, "error", err)
		return paradero.Stop{}, false
	}

	r.rows.Set(id, m)
	return r.enricher.Enrich(m), true
}

// Subscribe opens the change stream and delivers enriched events to h from
// a single goroutine. Calling it while a subscription is active does
// nothing. The stream lives until Unsubscribe or until ctx is cancelled.
func (r *Repository) Subscribe(ctx context.Context, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		return nil
	}

	subCtx, cancel := context.WithCancel(ctx)
	changes, err := r.table.Changes(subCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to measurement changes: %w", err)
	}

	done := make(chan struct{})
	r.cancel, r.done = cancel, done

	go func() {
		defer close(done)
		defer r.release(done)

		for c := range changes {
			ev, ok := r.event(c)
			if !ok {
				continue
			}
			h(ev)
		}
		if subCtx.Err() == nil {
			r.logger.Warn("measurement change stream closed")
		}
	}()

	r.logger.Info("subscribed to measurement changes")
	return nil
}

// Unsubscribe closes the change stream and waits for the delivery
// goroutine to return. It is a no-op without an active subscription.
func (r *Repository) Unsubscribe() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.logger.Info("unsubscribed from measurement changes")
}

// Subscribed reports whether a change stream is active.
func (r *Repository) Subscribed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

// release clears the subscription when the stream ends on its own.
func (r *Repository) release(done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done == done {
		r.cancel()
		r.cancel, r.done = nil, nil
	}
}

func (r *Repository) event(c paradero.RawChange) (paradero.ChangeEvent, bool) {
	switch c.Kind {
	case paradero.ChangeInsert, paradero.ChangeUpdate:
		if c.Record == nil {
			return paradero.ChangeEvent{}, false
		}
		r.rows.Delete(c.Record.ID)
		stop := r.enricher.Enrich(*c.Record)
		return paradero.ChangeEvent{Kind: c.Kind, StopID: stop.StopID, Stop: &stop}, true
	case paradero.ChangeDelete:
		r.rows.Delete(c.OldID)
		return paradero.ChangeEvent{Kind: c.Kind, StopID: paradero.StopID(c.OldID)}, true
	default:
		r.logger.Warn("unknown change kind", "kind", c.Kind)
		return paradero.ChangeEvent{}, false
	}
}
