// Package fleet runs one navigation engine per vehicle. Each vehicle gets
// its own fix queue, an engine goroutine draining it, and a loop publishing
// its snapshot whenever it changes.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"route-navigator/internal/logging"
	mmetrics "route-navigator/internal/metrics"
	"route-navigator/internal/nav"
	"route-navigator/internal/profile"
	"route-navigator/internal/route"
)

var (
	ErrUnknownVehicle = errors.New("unknown vehicle")
	ErrNoRouteStore   = errors.New("no route store configured")
	ErrStopped        = errors.New("fleet manager stopped")
)

// Publisher sends vehicle state to consumers.
type Publisher interface {
	PublishSnapshot(vehicle string, s nav.Snapshot) error
	PublishRoute(vehicle string, r *route.Route) error
}

// RouteSource looks up stored routes and profiles.
type RouteSource interface {
	Route(ctx context.Context, id string) (*route.Route, error)
	Profile(ctx context.Context, name string) (*profile.Profile, error)
}

type Options struct {
	Config nav.Config
	Router nav.Router
	// Routes may be nil; starting navigation on a stored route then fails.
	Routes          RouteSource
	Publisher       Publisher
	PublishInterval time.Duration
	QueueSize       int
	Metrics         *mmetrics.Collector
	Log             *logging.Logger
}

type vehicle struct {
	id     string
	engine *nav.Engine
	queue  *nav.FixQueue
	cancel context.CancelFunc
	log    *logging.Logger

	// Owned by the publishing goroutine.
	lastSeq   uint64
	lastRoute *route.Route
}

type Manager struct {
	opts Options

	base    context.Context
	stopAll context.CancelFunc

	mu       sync.Mutex
	vehicles map[string]*vehicle
	stopped  bool
	wg       sync.WaitGroup
}

func NewManager(opts Options) *Manager {
	if opts.PublishInterval <= 0 {
		opts.PublishInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:     opts,
		base:     ctx,
		stopAll:  cancel,
		vehicles: make(map[string]*vehicle),
	}
}

// Run blocks until ctx is done, then stops every vehicle.
func (m *Manager) Run(ctx context.Context) error {
	<-ctx.Done()
	m.Stop()
	return nil
}

// SubmitFix queues a fix for a vehicle, starting an engine for vehicles
// not seen before.
func (m *Manager) SubmitFix(id string, f nav.Fix) error {
	v, err := m.vehicle(id, true)
	if err != nil {
		return err
	}
	if dropped := v.queue.Push(f); dropped > 0 {
		v.log.Debug("fix queue full", "dropped", dropped)
		if m.opts.Metrics != nil {
			m.opts.Metrics.FixesDropped.Add(float64(dropped))
		}
	}
	return nil
}

// Snapshot returns the current state of a vehicle.
func (m *Manager) Snapshot(id string) (nav.Snapshot, error) {
	v, err := m.vehicle(id, false)
	if err != nil {
		return nav.Snapshot{}, err
	}
	return v.engine.Snapshot(), nil
}

func (m *Manager) vehicle(id string, create bool) (*vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrStopped
	}
	if v, ok := m.vehicles[id]; ok {
		return v, nil
	}
	if !create {
		return nil, fmt.Errorf("%w %q: %w", ErrUnknownVehicle, id, nav.ErrNotNavigating)
	}

	log := m.opts.Log.With("vehicle", id)
	engine, err := nav.New(m.opts.Config,
		nav.WithRouter(m.opts.Router),
		nav.WithLogger(log),
		nav.WithMetrics(m.opts.Metrics.Navigator()),
	)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(m.base)
	v := &vehicle{
		id:     id,
		engine: engine,
		queue:  nav.NewFixQueue(m.opts.QueueSize),
		cancel: cancel,
		log:    log,
	}
	m.vehicles[id] = v
	if m.opts.Metrics != nil {
		m.opts.Metrics.SessionsStarted.Inc()
		m.opts.Metrics.ActiveSessions.Set(float64(len(m.vehicles)))
	}

	log.Info("vehicle session started")
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		if err := engine.Run(ctx, v.queue); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("engine stopped", "error", err)
		}
		engine.Wait()
	}()
	go func() {
		defer m.wg.Done()
		m.publishLoop(ctx, v)
	}()
	return v, nil
}

func (m *Manager) publishLoop(ctx context.Context, v *vehicle) {
	tick := time.NewTicker(m.opts.PublishInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.publish(v)
		}
	}
}

// publish sends the snapshot if it changed since the last call, preceded
// by the route geometry whenever the route changed.
func (m *Manager) publish(v *vehicle) {
	if m.opts.Publisher == nil {
		return
	}
	if r := v.engine.Route(); r != v.lastRoute {
		v.lastRoute = r
		if r != nil {
			if err := m.opts.Publisher.PublishRoute(v.id, r); err != nil {
				v.log.Warn("publish route failed", "error", err)
			}
		}
	}
	s := v.engine.Snapshot()
	if s.Seq == v.lastSeq {
		return
	}
	v.lastSeq = s.Seq
	if err := m.opts.Publisher.PublishSnapshot(v.id, s); err != nil {
		v.log.Warn("publish snapshot failed", "error", err)
	}
}

// Remove stops a vehicle's engine and forgets it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	v, ok := m.vehicles[id]
	if ok {
		delete(m.vehicles, id)
		if m.opts.Metrics != nil {
			m.opts.Metrics.SessionsEnded.Inc()
			m.opts.Metrics.ActiveSessions.Set(float64(len(m.vehicles)))
		}
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownVehicle, id)
	}
	v.engine.Close()
	v.cancel()
	v.log.Info("vehicle session removed")
	return nil
}

// Stop ends every vehicle session, cancelling route calculations in
// progress, and waits for their goroutines.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	vehicles := m.vehicles
	m.vehicles = make(map[string]*vehicle)
	if m.opts.Metrics != nil {
		m.opts.Metrics.SessionsEnded.Add(float64(len(vehicles)))
		m.opts.Metrics.ActiveSessions.Set(0)
	}
	m.mu.Unlock()
	for _, v := range vehicles {
		v.engine.Close()
	}
	m.stopAll()
	m.wg.Wait()
}
