package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"paradero/internal/paradero"
)

const measurementColumns = `id, person_count, location, direccion, timestamp,
	status, sensor1_distance, sensor2_distance, recommendation`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMeasurement(row rowScanner) (paradero.RawMeasurement, error) {
	var (
		m              paradero.RawMeasurement
		location       sql.NullString
		direccion      sql.NullString
		status         sql.NullString
		s1, s2         sql.NullFloat64
		recommendation sql.NullString
	)
	if err := row.Scan(&m.ID, &m.PersonCount, &location, &direccion, &m.Timestamp,
		&status, &s1, &s2, &recommendation); err != nil {
		return m, err
	}

	if location.Valid && location.String != "" && location.String != "null" {
		var p paradero.GeoPoint
		if err := json.Unmarshal([]byte(location.String), &p); err != nil {
			return m, fmt.Errorf("decode location of row %d: %w", m.ID, err)
		}
		m.Location = &p
	}
	if direccion.Valid {
		m.Direccion = &direccion.String
	}
	if status.Valid {
		m.Status = &status.String
	}
	if s1.Valid {
		m.Sensor1Distance = &s1.Float64
	}
	if s2.Valid {
		m.Sensor2Distance = &s2.Float64
	}
	if recommendation.Valid {
		m.Recommendation = &recommendation.String
	}
	return m, nil
}

// ListMeasurements returns every row ordered by ascending id.
func (db *DB) ListMeasurements(ctx context.Context) ([]paradero.RawMeasurement, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+measurementColumns+`
		FROM paradero_mediciones
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	defer rows.Close()

	var out []paradero.RawMeasurement
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMeasurement returns one row by id, or ErrNotFound.
func (db *DB) GetMeasurement(ctx context.Context, id int64) (paradero.RawMeasurement, error) {
	row := db.QueryRowContext(ctx, `SELECT `+measurementColumns+`
		FROM paradero_mediciones
		WHERE id = ?`, id)
	m, err := scanMeasurement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return m, ErrNotFound
	}
	if err != nil {
		return m, fmt.Errorf("get measurement %d: %w", id, err)
	}
	return m, nil
}

// InsertMeasurement stores a new row and returns its id. A zero ID lets
// SQLite assign one.
func (db *DB) InsertMeasurement(ctx context.Context, m paradero.RawMeasurement) (int64, error) {
	location, err := encodeLocation(m.Location)
	if err != nil {
		return 0, err
	}

	var id any
	if m.ID > 0 {
		id = m.ID
	}
	ts := m.Timestamp
	if ts == "" {
		err = db.QueryRowContext(ctx, `SELECT strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`).Scan(&ts)
		if err != nil {
			return 0, fmt.Errorf("read clock: %w", err)
		}
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO paradero_mediciones
		  (id, person_count, location, direccion, timestamp,
		   status, sensor1_distance, sensor2_distance, recommendation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, m.PersonCount, location, m.Direccion, ts,
		m.Status, m.Sensor1Distance, m.Sensor2Distance, m.Recommendation,
	)
	if err != nil {
		return 0, fmt.Errorf("insert measurement: %w", err)
	}
	return res.LastInsertId()
}

// CountMeasurements returns the number of rows in the table.
func (db *DB) CountMeasurements(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM paradero_mediciones`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count measurements: %w", err)
	}
	return n, nil
}

func encodeLocation(p *paradero.GeoPoint) (any, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode location: %w", err)
	}
	return string(b), nil
}
