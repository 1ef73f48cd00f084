package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"paradero/internal/paradero"
	"paradero/internal/storage"
)

// Channel is the LISTEN/NOTIFY channel the schema trigger publishes on.
const Channel = "paradero_mediciones_changes"

//go:embed schema.sql
var Schema string

// Store reads paradero_mediciones from Postgres (Supabase or self-hosted).
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to databaseURL and verifies the connection.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("postgres connected", "channel", Channel)
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the table and the change trigger if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.logger.Info("postgres schema applied")
	return nil
}

// to_json renders timestamptz as ISO-8601, matching what the REST API returns.
const selectMeasurements = `
	SELECT id, person_count, location, direccion, to_json("timestamp") #>> '{}',
	       status, sensor1_distance, sensor2_distance, recommendation
	FROM paradero_mediciones
`

func scanMeasurement(row pgx.Row) (paradero.RawMeasurement, error) {
	var (
		m        paradero.RawMeasurement
		location []byte
	)
	err := row.Scan(
		&m.ID,
		&m.PersonCount,
		&location,
		&m.Direccion,
		&m.Timestamp,
		&m.Status,
		&m.Sensor1Distance,
		&m.Sensor2Distance,
		&m.Recommendation,
	)
	if err != nil {
		return m, err
	}
	if len(location) > 0 && string(location) != "null" {
		var p paradero.GeoPoint
		if err := json.Unmarshal(location, &p); err != nil {
			return m, fmt.Errorf("decode location of row %d: %w", m.ID, err)
		}
		m.Location = &p
	}
	return m, nil
}

// ListMeasurements returns every row ordered by ascending id.
func (s *Store) ListMeasurements(ctx context.Context) ([]paradero.RawMeasurement, error) {
	rows, err := s.pool.Query(ctx, selectMeasurements+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var out []paradero.RawMeasurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measurements: %w", err)
	}
	return out, nil
}

// GetMeasurement returns one row by id, or storage.ErrNotFound.
func (s *Store) GetMeasurement(ctx context.Context, id int64) (paradero.RawMeasurement, error) {
	m, err := scanMeasurement(s.pool.QueryRow(ctx, selectMeasurements+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return m, storage.ErrNotFound
	}
	if err != nil {
		return m, fmt.Errorf("failed to get measurement %d: %w", id, err)
	}
	return m, nil
}
