package storage

import "fmt"

// migrate creates the measurement schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("database migrations applied")
	return nil
}

var migrations = []string{
	// Occupancy measurements, one row per paradero. location is a JSON
	// object {"lat":..,"lng":..} with either key optional.
	`CREATE TABLE IF NOT EXISTS paradero_mediciones (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		person_count     INTEGER NOT NULL DEFAULT 0 CHECK (person_count >= 0),
		location         TEXT,
		direccion        TEXT,
		timestamp        TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		status           TEXT,
		sensor1_distance REAL,
		sensor2_distance REAL,
		recommendation   TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_mediciones_timestamp ON paradero_mediciones(timestamp)`,
}
