package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"paradero/internal/paradero"
)

// notification is the payload written by notify_paradero_mediciones_change.
type notification struct {
	Type      string                   `json:"type"`
	Table     string                   `json:"table"`
	Record    *paradero.RawMeasurement `json:"record"`
	OldRecord *struct {
		ID int64 `json:"id"`
	} `json:"old_record"`
}

// ParseNotification decodes a change payload.
func ParseNotification(payload string) (paradero.RawChange, error) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return paradero.RawChange{}, fmt.Errorf("decode notification: %w", err)
	}

	switch n.Type {
	case "INSERT", "UPDATE":
		if n.Record == nil {
			return paradero.RawChange{}, fmt.Errorf("%s notification without record", n.Type)
		}
		kind := paradero.ChangeInsert
		if n.Type == "UPDATE" {
			kind = paradero.ChangeUpdate
		}
		return paradero.RawChange{Kind: kind, Record: n.Record}, nil
	case "DELETE":
		if n.OldRecord == nil || n.OldRecord.ID == 0 {
			return paradero.RawChange{}, fmt.Errorf("DELETE notification without old_record id")
		}
		return paradero.RawChange{Kind: paradero.ChangeDelete, OldID: n.OldRecord.ID}, nil
	default:
		return paradero.RawChange{}, fmt.Errorf("unknown notification type %q", n.Type)
	}
}

// Changes holds one pooled connection in LISTEN mode and streams decoded
// changes until ctx is cancelled or the connection fails. The channel is
// closed on exit.
func (s *Store) Changes(ctx context.Context) (<-chan paradero.RawChange, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+Channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen %s: %w", Channel, err)
	}

	ch := make(chan paradero.RawChange)
	go func() {
		defer close(ch)
		defer func() {
			// A broken connection fails here and is discarded on Release.
			unlistenCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, _ = conn.Exec(unlistenCtx, "UNLISTEN *")
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("postgres change stream failed", "error", err)
				}
				return
			}

			change, err := ParseNotification(n.Payload)
			if err != nil {
				s.logger.Warn("skipping malformed notification", "error", err)
				continue
			}

			select {
			case ch <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("listening for measurement changes", "channel", Channel)
	return ch, nil
}
