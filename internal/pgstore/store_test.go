package pgstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"paradero/internal/paradero"
	"paradero/internal/storage"
)

func TestParseNotification(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantKind paradero.ChangeKind
		wantID   int64
		wantErr  bool
	}{
		{
			name:     "insert",
			payload:  `{"type":"INSERT","table":"paradero_mediciones","record":{"id":7,"person_count":30,"location":{"lat":-33.4,"lng":-70.6},"direccion":null,"timestamp":"2025-03-01T12:00:00+00:00"},"old_record":null}`,
			wantKind: paradero.ChangeInsert,
			wantID:   7,
		},
		{
			name:     "update",
			payload:  `{"type":"UPDATE","table":"paradero_mediciones","record":{"id":3,"person_count":80,"location":null,"direccion":"Alameda 1","timestamp":"2025-03-01T12:00:00+00:00"},"old_record":{"id":3}}`,
			wantKind: paradero.ChangeUpdate,
			wantID:   3,
		},
		{
			name:     "delete",
			payload:  `{"type":"DELETE","table":"paradero_mediciones","record":null,"old_record":{"id":9,"person_count":1}}`,
			wantKind: paradero.ChangeDelete,
			wantID:   9,
		},
		{name: "insert without record", payload: `{"type":"INSERT","record":null}`, wantErr: true},
		{name: "delete without old record", payload: `{"type":"DELETE"}`, wantErr: true},
		{name: "truncate", payload: `{"type":"TRUNCATE"}`, wantErr: true},
		{name: "not json", payload: `INSERT 7`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNotification(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNotification() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", got.Kind, tt.wantKind)
			}
			id := got.OldID
			if got.Record != nil {
				id = got.Record.ID
			}
			if id != tt.wantID {
				t.Errorf("id = %d, want %d", id, tt.wantID)
			}
		})
	}
}

func TestParseNotification_RecordFields(t *testing.T) {
	got, err := ParseNotification(`{"type":"INSERT","record":{"id":1,"person_count":55,"location":{"lat":-33.1},"direccion":"Av. Matta 10","timestamp":"2025-01-01T00:00:00+00:00","recommendation":"ok"}}`)
	if err != nil {
		t.Fatal(err)
	}
	r := got.Record
	if r.PersonCount != 55 {
		t.Errorf("PersonCount = %d, want 55", r.PersonCount)
	}
	if r.Location == nil || r.Location.Lat == nil || *r.Location.Lat != -33.1 || r.Location.Lng != nil {
		t.Errorf("Location = %+v, want lat only", r.Location)
	}
	if r.Direccion == nil || *r.Direccion != "Av. Matta 10" {
		t.Errorf("Direccion = %v", r.Direccion)
	}
	if r.Recommendation == nil || *r.Recommendation != "ok" {
		t.Errorf("Recommendation = %v", r.Recommendation)
	}
}

// Integration test against a real database. Skipped unless
// PARADERO_TEST_DATABASE_URL is set.
func TestStore_Integration(t *testing.T) {
	url := os.Getenv("PARADERO_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("PARADERO_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(ctx, url, logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	changes, err := s.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes() error = %v", err)
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO paradero_mediciones (person_count, location) VALUES (33, '{"lat":-33.4}') RETURNING id`,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), `DELETE FROM paradero_mediciones WHERE id = $1`, id)
	})

	select {
	case c := <-changes:
		if c.Kind != paradero.ChangeInsert || c.Record == nil || c.Record.ID != id {
			t.Errorf("change = %+v, want insert of %d", c, id)
		}
	case <-ctx.Done():
		t.Fatal("no notification received")
	}

	m, err := s.GetMeasurement(ctx, id)
	if err != nil {
		t.Fatalf("GetMeasurement(%d) error = %v", id, err)
	}
	if m.PersonCount != 33 || m.Location == nil || m.Location.Lng != nil {
		t.Errorf("GetMeasurement(%d) = %+v", id, m)
	}
	if _, err := time.Parse(time.RFC3339, m.Timestamp); err != nil {
		t.Errorf("Timestamp %q is not RFC3339: %v", m.Timestamp, err)
	}

	if _, err := s.GetMeasurement(ctx, -1); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetMeasurement(-1) error = %v, want ErrNotFound", err)
	}
}
