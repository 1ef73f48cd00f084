package paradero

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidStopID is returned when a stop id is not of the form "stop-N".
var ErrInvalidStopID = errors.New("invalid stop id")

const stopIDPrefix = "stop-"

// GeoPoint is the JSON location column of a measurement row. Either
// coordinate may be missing.
type GeoPoint struct {
	Lat *float64 `json:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty"`
}

// RawMeasurement is one row of the paradero_mediciones table.
type RawMeasurement struct {
	ID              int64     `json:"id"`
	PersonCount     int       `json:"person_count"`
	Location        *GeoPoint `json:"location"`
	Direccion       *string   `json:"direccion"`
	Timestamp       string    `json:"timestamp"`
	Status          *string   `json:"status,omitempty"` // stored tier, recomputed from PersonCount
	Sensor1Distance *float64  `json:"sensor1_distance,omitempty"`
	Sensor2Distance *float64  `json:"sensor2_distance,omitempty"`
	Recommendation  *string   `json:"recommendation,omitempty"`
}

// Location is the resolved position and address of a paradero.
type Location struct {
	Address string  `json:"address"`
	Commune string  `json:"commune"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// CameraStatus is the availability of a simulated camera feed.
type CameraStatus string

const (
	CameraOnline  CameraStatus = "online"
	CameraOffline CameraStatus = "offline"
)

// Camera is a simulated camera attached to a paradero.
type Camera struct {
	CameraID string       `json:"cameraId"`
	Status   CameraStatus `json:"status"`
	URL      string       `json:"url"`
}

// Stop is the enriched presentation record of a paradero.
type Stop struct {
	StopID             string   `json:"stopId"`
	Timestamp          string   `json:"timestamp"`
	Location           Location `json:"location"`
	Status             Status   `json:"status"`
	PersonCount        int      `json:"personCount"`
	AvgWaitTimeMinutes float64  `json:"avgWaitTimeMinutes"`
	Cameras            []Camera `json:"cameras"`
	Recommendation     string   `json:"recommendation,omitempty"`
}

// Camera returns the camera with the given id.
func (s Stop) Camera(cameraID string) (Camera, bool) {
	for _, c := range s.Cameras {
		if c.CameraID == cameraID {
			return c, true
		}
	}
	return Camera{}, false
}

// NumericID returns the row id embedded in the stop id, or 0 if malformed.
func (s Stop) NumericID() int64 {
	id, err := ParseStopID(s.StopID)
	if err != nil {
		return 0
	}
	return id
}

// StopID builds the stop id for a row id.
func StopID(id int64) string {
	return stopIDPrefix + strconv.FormatInt(id, 10)
}

// ParseStopID extracts the row id from "stop-N".
func ParseStopID(stopID string) (int64, error) {
	raw, ok := strings.CutPrefix(stopID, stopIDPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStopID, stopID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStopID, stopID)
	}
	return id, nil
}

// ChangeKind discriminates a ChangeEvent.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is a single remote change, already enriched. Stop is nil for
// deletes.
type ChangeEvent struct {
	Kind   ChangeKind `json:"kind"`
	StopID string     `json:"stopId"`
	Stop   *Stop      `json:"stop,omitempty"`
}

// RawChange is an un-enriched change read from the measurement table.
// Record is nil for deletes; OldID identifies the removed row.
type RawChange struct {
	Kind   ChangeKind
	Record *RawMeasurement
	OldID  int64
}
