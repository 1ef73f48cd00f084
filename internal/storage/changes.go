package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"paradero/internal/paradero"
)

// Changes polls the table and emits the difference between consecutive
// snapshots. The channel closes when ctx is cancelled. An error is returned
// only if the first snapshot cannot be read.
func (db *DB) Changes(ctx context.Context) (<-chan paradero.RawChange, error) {
	prev, err := db.ListMeasurements(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}

	interval := db.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ch := make(chan paradero.RawChange)
	go func() {
		defer close(ch)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			next, err := db.ListMeasurements(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				db.logger.Warn("poll measurements failed", "error", err)
				continue
			}

			for _, c := range Diff(prev, next) {
				select {
				case ch <- c:
				case <-ctx.Done():
					return
				}
			}
			prev = next
		}
	}()

	db.logger.Info("polling measurement changes", "interval", interval)
	return ch, nil
}

// Diff compares two id-ordered snapshots. Inserts and updates come first in
// the order of next, followed by deletes in the order of prev.
func Diff(prev, next []paradero.RawMeasurement) []paradero.RawChange {
	old := make(map[int64]string, len(prev))
	for _, m := range prev {
		old[m.ID] = fingerprint(m)
	}

	var changes []paradero.RawChange
	seen := make(map[int64]bool, len(next))
	for _, m := range next {
		seen[m.ID] = true
		fp, ok := old[m.ID]
		switch {
		case !ok:
			changes = append(changes, paradero.RawChange{Kind: paradero.ChangeInsert, Record: &m})
		case fp != fingerprint(m):
			changes = append(changes, paradero.RawChange{Kind: paradero.ChangeUpdate, Record: &m})
		}
	}
	for _, m := range prev {
		if !seen[m.ID] {
			changes = append(changes, paradero.RawChange{Kind: paradero.ChangeDelete, OldID: m.ID})
		}
	}
	return changes
}

func fingerprint(m paradero.RawMeasurement) string {
	b, _ := json.Marshal(m)
	return string(b)
}
