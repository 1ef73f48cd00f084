package storage

import (
	"context"
	"fmt"

	"paradero/internal/paradero"
)

func fixture(count int, lat, lng float64, direccion, recommendation string) paradero.RawMeasurement {
	m := paradero.RawMeasurement{
		PersonCount: count,
		Location:    &paradero.GeoPoint{Lat: &lat, Lng: &lng},
	}
	if direccion != "" {
		m.Direccion = &direccion
	}
	if recommendation != "" {
		m.Recommendation = &recommendation
	}
	return m
}

// fixtureMeasurements covers every congestion tier and the fallbacks for
// missing location and address.
func fixtureMeasurements() []paradero.RawMeasurement {
	return []paradero.RawMeasurement{
		fixture(12, -33.4489, -70.6693, "Alameda 1050", ""),
		fixture(34, -33.4263, -70.6170, "", ""),
		fixture(58, -33.4138, -70.5840, "Apoquindo 3478", "Refuerzo sugerido en hora punta"),
		fixture(81, -33.3980, -70.5920, "", "Desviar pasajeros a paradero cercano"),
		fixture(5, -33.4970, -70.6540, "", ""),
		fixture(47, -33.5220, -70.5980, "Vicuña Mackenna 7110", ""),
		fixture(66, -33.5110, -70.7580, "", ""),
		{PersonCount: 22},
		fixture(90, -33.4060, -70.6400, "", "Aumentar frecuencia T103"),
		fixture(18, -33.4560, -70.6480, "Santa Rosa 789", ""),
		fixture(51, -33.4400, -70.6500, "", ""),
		fixture(76, -33.4300, -70.6000, "", ""),
	}
}

// SeedFixtures fills an empty table with demo rows. It returns the number of
// rows inserted, which is zero when the table already has data.
func (db *DB) SeedFixtures(ctx context.Context) (int, error) {
	n, err := db.CountMeasurements(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	inserted := 0
	for _, m := range fixtureMeasurements() {
		if _, err := db.InsertMeasurement(ctx, m); err != nil {
			return inserted, fmt.Errorf("seed fixture %d: %w", inserted+1, err)
		}
		inserted++
	}
	db.logger.Info("seeded fixture measurements", "count", inserted)
	return inserted, nil
}
