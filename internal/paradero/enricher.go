package paradero

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
)

// Default coordinates used when a row has no location (central Santiago).
const (
	DefaultLat = -33.45
	DefaultLng = -70.6
)

// MockAddress is a fallback address/commune pair.
type MockAddress struct {
	Address string `yaml:"address" json:"address"`
	Commune string `yaml:"commune" json:"commune"`
}

// DefaultMockAddresses is the built-in fallback list. Rows pick an entry by
// (id-1) mod len.
var DefaultMockAddresses = []MockAddress{
	{Address: "Av. Libertador 1500", Commune: "Santiago"},
	{Address: "Providencia 2124", Commune: "Providencia"},
	{Address: "Apoquindo 3478", Commune: "Las Condes"},
	{Address: "Av. Vitacura 2670", Commune: "Vitacura"},
	{Address: "Gran Avenida 5689", Commune: "San Miguel"},
	{Address: "Av. La Florida 8989", Commune: "La Florida"},
	{Address: "Pajaritos 2626", Commune: "Maipú"},
	{Address: "Av. Independencia 1234", Commune: "Independencia"},
	{Address: "Recoleta 567", Commune: "Recoleta"},
	{Address: "Santa Rosa 789", Commune: "Santiago"},
}

// Source yields uniform draws in [0,1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Enricher turns raw measurement rows into Stops. Wait time and cameras are
// drawn fresh on every call, so enriching the same row twice yields the same
// id, address, commune and status but different simulated fields.
type Enricher struct {
	addresses []MockAddress

	mu  sync.Mutex
	rng Source
}

// NewEnricher creates an Enricher. A nil rng uses an unseeded PCG source and
// an empty address list falls back to DefaultMockAddresses.
func NewEnricher(addresses []MockAddress, rng Source) *Enricher {
	if len(addresses) == 0 {
		addresses = DefaultMockAddresses
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Enricher{addresses: addresses, rng: rng}
}

// MockFor returns the mock entry assigned to a row id.
func (e *Enricher) MockFor(id int64) MockAddress {
	n := int64(len(e.addresses))
	idx := (id - 1) % n
	if idx < 0 {
		idx += n
	}
	return e.addresses[idx]
}

// Enrich builds the Stop for a raw row.
func (e *Enricher) Enrich(m RawMeasurement) Stop {
	lat, lng := DefaultLat, DefaultLng
	if m.Location != nil {
		if m.Location.Lat != nil {
			lat = *m.Location.Lat
		}
		if m.Location.Lng != nil {
			lng = *m.Location.Lng
		}
	}

	mock := e.MockFor(m.ID)
	address := mock.Address
	if m.Direccion != nil && *m.Direccion != "" {
		address = *m.Direccion
	}

	e.mu.Lock()
	wait := math.Max(1, float64(m.PersonCount)*0.4+(e.rng.Float64()*4-2))
	cameras := e.cameras(m.ID)
	e.mu.Unlock()

	stop := Stop{
		StopID:    StopID(m.ID),
		Timestamp: m.Timestamp,
		Location: Location{
			Address: address,
			Commune: mock.Commune,
			Lat:     lat,
			Lng:     lng,
		},
		Status:             Classify(m.PersonCount),
		PersonCount:        m.PersonCount,
		AvgWaitTimeMinutes: wait,
		Cameras:            cameras,
	}
	if m.Recommendation != nil {
		stop.Recommendation = *m.Recommendation
	}
	return stop
}

// CameraCount is the number of simulated cameras for a row id (1 to 3).
func CameraCount(id int64) int {
	n := id % 3
	if n < 0 {
		n += 3
	}
	return 1 + int(n)
}

// cameras must be called with e.mu held.
func (e *Enricher) cameras(id int64) []Camera {
	count := CameraCount(id)
	out := make([]Camera, 0, count)
	for i := 0; i < count; i++ {
		status := CameraOffline
		if e.rng.Float64() > 0.2 {
			status = CameraOnline
		}
		out = append(out, Camera{
			CameraID: fmt.Sprintf("cam-%d-%d", id, i+1),
			Status:   status,
			URL:      fmt.Sprintf("https://picsum.photos/640/480?random=%d", id*10+int64(i)),
		})
	}
	return out
}
