// Package arrivals simulates buses approaching a paradero. Each detail page
// connection owns one Simulator.
package arrivals

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"paradero/internal/catalog"
	"paradero/internal/geo"
)

const (
	seedVehicles = 3
	maxVehicles  = 4
	spawnChance  = 0.02
	minETA       = 60  // seconds
	etaSpread    = 300 // seconds
	startSpan    = 0.02
)

// State is the simulator lifecycle.
type State int

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Source yields uniform draws in [0,1).
type Source interface {
	Float64() float64
}

// Vehicle is one simulated bus.
type Vehicle struct {
	ID              string
	Service         string
	ETASeconds      int
	StartETASeconds int
	StartPosition   geo.Point
	Position        geo.Point
	Progress        float64
}

// VehicleView is a vehicle as rendered in a frame.
type VehicleView struct {
	ID              string    `json:"id"`
	Service         string    `json:"service"`
	ETASeconds      int       `json:"etaSeconds"`
	StartETASeconds int       `json:"startEtaSeconds"`
	Position        geo.Point `json:"position"`
	Progress        float64   `json:"progress"`
	MinutesAway     int       `json:"minutesAway"`
	DistanceMeters  float64   `json:"distanceMeters"`
	Arrived         bool      `json:"arrived,omitempty"`
}

// Frame is the simulator output after a tick. Vehicles lists the active
// buses; Arrived lists those that reached the stop during this tick and were
// removed.
type Frame struct {
	Stop     geo.Point     `json:"stop"`
	Vehicles []VehicleView `json:"vehicles"`
	Arrived  []VehicleView `json:"arrived,omitempty"`
	Tick     int64         `json:"tick"`
	At       time.Time     `json:"at"`
}

// Simulator produces a synthetic arrivals feed for one stop.
type Simulator struct {
	services []string
	interval time.Duration
	newID    func() string
	now      func() time.Time

	mu       sync.Mutex
	rng      Source
	state    State
	stop     geo.Point
	vehicles []*Vehicle
	ticks    int64
	cancel   context.CancelFunc
	done     chan struct{}
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithInterval sets the tick period. The default is one second.
func WithInterval(d time.Duration) Option {
	return func(s *Simulator) { s.interval = d }
}

// WithServices overrides the service labels.
func WithServices(services []string) Option {
	return func(s *Simulator) {
		if len(services) > 0 {
			s.services = services
		}
	}
}

// WithSource sets the random source.
func WithSource(rng Source) Option {
	return func(s *Simulator) { s.rng = rng }
}

// WithIDs sets the vehicle id generator.
func WithIDs(f func() string) Option {
	return func(s *Simulator) { s.newID = f }
}

// New creates an idle simulator.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		services: catalog.DefaultServices,
		interval: time.Second,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Start (re)starts the feed for a stop. Any previous session is stopped
// first. Three vehicles are seeded, the initial frame is emitted, then one
// frame per tick until Stop or ctx cancellation. onFrame runs on the
// simulator goroutine and may be nil.
func (s *Simulator) Start(ctx context.Context, stop geo.Point, onFrame func(Frame)) {
	s.Stop()

	s.mu.Lock()
	s.stop = stop
	s.vehicles = s.vehicles[:0]
	s.ticks = 0
	for i := 0; i < seedVehicles; i++ {
		s.spawnLocked()
	}
	s.state = Running

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	initial := s.frameLocked(nil)
	s.mu.Unlock()

	go func() {
		defer close(done)
		emit := func(f Frame) {
			if onFrame != nil && runCtx.Err() == nil {
				onFrame(f)
			}
		}
		emit(initial)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				emit(s.Tick())
			}
		}
	}()
}

// Stop cancels the ticker, waits for it to exit and clears all vehicles.
// Calling it again, or before Start, is harmless.
func (s *Simulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	if s.state == Running {
		s.state = Stopped
	}
	s.vehicles = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Tick advances every vehicle by one second. Vehicles reaching eta 0 snap to
// the stop and are removed. A new vehicle may then spawn.
func (s *Simulator) Tick() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return s.frameLocked(nil)
	}
	s.ticks++

	var arrived []*Vehicle
	active := s.vehicles[:0]
	for _, v := range s.vehicles {
		v.ETASeconds--
		if v.ETASeconds <= 0 {
			v.ETASeconds = 0
			v.Position = s.stop
			v.Progress = 1
			arrived = append(arrived, v)
			continue
		}
		v.Progress = 1 - float64(v.ETASeconds)/float64(v.StartETASeconds)
		v.Position = geo.Interpolate(v.StartPosition, s.stop, v.Progress)
		active = append(active, v)
	}
	s.vehicles = active

	if s.rng.Float64() < spawnChance && len(s.vehicles) < maxVehicles {
		s.spawnLocked()
	}
	return s.frameLocked(arrived)
}

// Frame returns the current state without advancing it.
func (s *Simulator) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked(nil)
}

// State returns the lifecycle state.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Simulator) spawnLocked() {
	service := s.services[int(s.rng.Float64()*float64(len(s.services)))%len(s.services)]
	eta := int(math.Floor(s.rng.Float64()*etaSpread)) + minETA
	start := geo.Jitter(s.stop, startSpan, s.rng.Float64)

	s.vehicles = append(s.vehicles, &Vehicle{
		ID:              s.newID(),
		Service:         service,
		ETASeconds:      eta,
		StartETASeconds: eta,
		StartPosition:   start,
		Position:        start,
	})
}

func (s *Simulator) frameLocked(arrived []*Vehicle) Frame {
	f := Frame{
		Stop:     s.stop,
		Vehicles: make([]VehicleView, 0, len(s.vehicles)),
		Tick:     s.ticks,
		At:       s.now(),
	}
	for _, v := range s.vehicles {
		f.Vehicles = append(f.Vehicles, s.view(v, false))
	}
	for _, v := range arrived {
		f.Arrived = append(f.Arrived, s.view(v, true))
	}
	return f
}

func (s *Simulator) view(v *Vehicle, arrived bool) VehicleView {
	return VehicleView{
		ID:              v.ID,
		Service:         v.Service,
		ETASeconds:      v.ETASeconds,
		StartETASeconds: v.StartETASeconds,
		Position:        v.Position,
		Progress:        v.Progress,
		MinutesAway:     int(math.Ceil(float64(v.ETASeconds) / 60)),
		DistanceMeters:  geo.Distance(v.Position, s.stop),
		Arrived:         arrived,
	}
}
