// Package nav is the turn-by-turn navigation engine. An Engine follows a
// route through a stream of position fixes: it tracks progress, decides
// when the vehicle has left the route and needs a new one, and reports the
// turns ahead.
package nav

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"route-navigator/internal/guidance"
	"route-navigator/internal/logging"
	"route-navigator/internal/profile"
	"route-navigator/internal/route"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Metrics receives engine events. Implementations must be safe for
// concurrent use.
type Metrics interface {
	FixAccepted()
	FixRejected(reason string)
	StateChanged(from, to State)
	ReRouted(result string, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) FixAccepted()                   {}
func (nopMetrics) FixRejected(string)             {}
func (nopMetrics) StateChanged(State, State)      {}
func (nopMetrics) ReRouted(string, time.Duration) {}

// Option configures an Engine.
type Option func(*Engine)

func WithRouter(r Router) Option            { return func(e *Engine) { e.router = r } }
func WithLogger(l *logging.Logger) Option   { return func(e *Engine) { e.log = l } }
func WithMetrics(m Metrics) Option          { return func(e *Engine) { e.metrics = m } }
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// session is the state of following one route.
type session struct {
	route   *route.Route
	profile *profile.Profile

	state   State
	at      route.NearestSegmentInfo
	section int
	turns   guidance.Turns
	// projected is set once a fix has been matched to the route.
	projected bool
	// maxAlong is the furthest distance along the route reached.
	maxAlong float64

	offRouteSince  time.Time
	reRoutePending bool
	reRouting      bool
	reRoutes       int
	lastErr        error
}

// Engine is safe for concurrent use. Fixes are processed one at a time in
// the order SubmitFix is called; Snapshot may be called at any time.
type Engine struct {
	router  Router
	log     *logging.Logger
	metrics Metrics
	now     func() time.Time

	mu       sync.Mutex
	cfg      Config
	enabled  bool
	lastFix  *Fix
	sess     *session
	closed   bool
	gen      uint64
	cancelRR context.CancelFunc
	seq      uint64

	snap    atomic.Pointer[Snapshot]
	workers sync.WaitGroup
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Projection == nil {
		cfg.Projection = DefaultConfig().Projection
	}
	e := &Engine{
		cfg:     cfg,
		enabled: true,
		metrics: nopMetrics{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.mu.Lock()
	e.publishLocked()
	e.mu.Unlock()
	return e, nil
}

// Snapshot returns the latest consistent navigation state.
func (e *Engine) Snapshot() Snapshot { return *e.snap.Load() }

// Route returns the route being followed, or nil.
func (e *Engine) Route() *route.Route {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil
	}
	return e.sess.route
}

func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// StartNavigation follows r, replacing any route being followed. p is the
// profile used for re-routing; nil selects the car profile.
func (e *Engine) StartNavigation(r *route.Route, p *profile.Profile) error {
	if r == nil || r.SegmentCount() == 0 {
		return fmt.Errorf("route has no segments: %w", route.ErrInvalidArgument)
	}
	if p == nil {
		p = profile.New(profile.CarProfile)
	} else {
		p = p.Clone()
	}
	p.Normalize()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.stopLocked()
	e.sess = &session{route: r, profile: p}
	e.log.Info("navigation started",
		"distance", r.Distance(), "time", r.Time(), "segments", r.SegmentCount(), "profile", p.Name)
	e.publishLocked()
	return nil
}

// StartNavigationTo computes a route from the current position through the
// given destinations (longitude, latitude) and follows it. Routing failures
// are returned and navigation does not start.
func (e *Engine) StartNavigationTo(ctx context.Context, p *profile.Profile, destinations ...orb.Point) error {
	if e.router == nil {
		return ErrNoRouter
	}
	if len(destinations) == 0 {
		return fmt.Errorf("no destination: %w", ErrNoPosition)
	}
	if p == nil {
		p = profile.New(profile.CarProfile)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.lastFix == nil {
		e.mu.Unlock()
		return fmt.Errorf("no fix: %w", ErrNoPosition)
	}
	proj := e.cfg.Projection
	waypoints := []orb.Point{proj(e.lastFix.Position)}
	opts := RouteOptions{}
	if e.lastFix.Has(ValidCourse) {
		opts.Heading, opts.HasHeading = e.lastFix.Course, true
	}
	e.mu.Unlock()

	for _, d := range destinations {
		waypoints = append(waypoints, proj(d))
	}
	r, err := e.router.ComputeRoute(ctx, p, waypoints, opts)
	if err != nil {
		return fmt.Errorf("compute route: %w", err)
	}
	return e.StartNavigation(r, p)
}

// EndNavigation stops following the route. A route calculation still in
// progress is discarded when it completes.
func (e *Engine) EndNavigation() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return ErrNotNavigating
	}
	e.stopLocked()
	e.log.Info("navigation ended")
	e.publishLocked()
	return nil
}

// Close ends navigation and cancels any route calculation in progress, so
// Wait returns promptly. The engine cannot navigate again; fixes still
// update its position.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.sess != nil {
		e.log.Info("navigation ended", "reason", "closed")
	}
	e.stopLocked()
	e.publishLocked()
}

func (e *Engine) stopLocked() {
	e.gen++
	if e.cancelRR != nil {
		e.cancelRR()
		e.cancelRR = nil
	}
	if e.sess != nil && e.sess.state != StateNone {
		e.metrics.StateChanged(e.sess.state, StateNone)
	}
	e.sess = nil
}

func (e *Engine) SetMinimumFixDistance(m float64) error {
	return e.update(func(c *Config) { c.MinimumFixDistance = m })
}

func (e *Engine) SetDistanceTolerance(m float64) error {
	return e.update(func(c *Config) { c.DistanceTolerance = m })
}

func (e *Engine) SetTimeTolerance(d time.Duration) error {
	return e.update(func(c *Config) { c.TimeTolerance = d })
}

func (e *Engine) SetAutoReRoute(on bool) error {
	return e.update(func(c *Config) { c.AutoReRoute = on })
}

func (e *Engine) update(f func(*Config)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.cfg
	f(&c)
	if err := c.Validate(); err != nil {
		return err
	}
	e.cfg = c
	return nil
}

// SetNavigationEnabled turns route following on or off. While disabled,
// fixes still update the position but the route is not consulted.
func (e *Engine) SetNavigationEnabled(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled == on {
		return
	}
	e.enabled = on
	e.publishLocked()
}

// SubmitFix processes a position fix and returns the resulting state.
// Fixes without a time are stamped with the current time. A fix without a
// position is extrapolated from the previous one using its speed and
// course; with no previous fix it is ignored.
func (e *Engine) SubmitFix(f Fix) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !f.Has(ValidTime) || f.Time.IsZero() {
		f.Time = e.now()
	}
	measured := f.Has(ValidPosition)
	if !measured {
		if e.lastFix == nil {
			e.metrics.FixRejected("no_position")
			return *e.snap.Load(), nil
		}
		f.Position = e.extrapolate(f)
	}
	p, err := e.mapPoint(f.Position)
	if err != nil {
		e.metrics.FixRejected("invalid")
		return *e.snap.Load(), err
	}

	s := e.sess
	if e.lastFix != nil && (s == nil || !e.enabled || s.projected) {
		if geo.Distance(e.lastFix.Position, f.Position) < e.cfg.MinimumFixDistance {
			e.metrics.FixRejected("too_close")
			return *e.snap.Load(), nil
		}
	}
	e.lastFix = &f
	e.metrics.FixAccepted()

	if s != nil && e.enabled {
		if s.reRoutePending && measured {
			s.reRoutePending = false
			e.startReRouteLocked(s, f)
		}
		e.followLocked(s, f, p)
	}
	e.publishLocked()
	return *e.snap.Load(), nil
}

// mapPoint checks a fix position is a valid longitude, latitude and
// converts it to map coordinates.
func (e *Engine) mapPoint(pos orb.Point) (orb.Point, error) {
	lon, lat := pos[0], pos[1]
	if !finite(lon) || !finite(lat) || lon < -180 || lon > 180 || lat <= -90 || lat >= 90 {
		return orb.Point{}, fmt.Errorf("fix position %v: %w", pos, route.ErrInvalidArgument)
	}
	p := e.cfg.Projection(pos)
	if !finite(p[0]) || !finite(p[1]) {
		return orb.Point{}, fmt.Errorf("fix position %v projects to %v: %w", pos, p, route.ErrInvalidArgument)
	}
	return p, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// extrapolate dead-reckons the position at f.Time from the last fix.
func (e *Engine) extrapolate(f Fix) orb.Point {
	last := e.lastFix
	speed, course := 0.0, 0.0
	switch {
	case f.Has(ValidSpeed):
		speed = f.Speed
	case last.Has(ValidSpeed):
		speed = last.Speed
	}
	switch {
	case f.Has(ValidCourse):
		course = f.Course
	case last.Has(ValidCourse):
		course = last.Course
	default:
		speed = 0
	}
	dt := f.Time.Sub(last.Time).Seconds()
	if dt <= 0 || speed <= 0 {
		return last.Position
	}
	return geo.PointAtBearingAndDistance(last.Position, course, speed/3.6*dt)
}

// followLocked matches f, at map point p, to the route and works out the
// new state.
func (e *Engine) followLocked(s *session, f Fix, p orb.Point) {
	cfg := e.cfg
	hint := 0.0
	if s.projected {
		hint = s.at.DistanceAlongRoute
	}
	at := s.route.NearestSegment(p, s.section, hint)
	if at.SegmentIndex < 0 || !finite(at.DistanceToRoute) || !finite(at.DistanceAlongRoute) {
		return
	}

	state := StateNone
	offRoute := at.DistanceToRoute >= cfg.DistanceTolerance
	if offRoute {
		if s.offRouteSince.IsZero() {
			s.offRouteSince = f.Time
			e.log.Debug("off route timer started", "distance", at.DistanceToRoute)
		}
		if f.Time.Sub(s.offRouteSince) >= cfg.TimeTolerance {
			switch {
			case s.reRouting:
				state = StateOffRoute
			case s.reRoutePending:
				state = StateReRouteNeeded
			case cfg.AutoReRoute:
				state = StateOffRoute
				e.startReRouteLocked(s, f)
			default:
				state = StateReRouteNeeded
				s.reRoutePending = true
			}
		}
	} else if !s.offRouteSince.IsZero() {
		s.offRouteSince = time.Time{}
		e.log.Debug("back on route", "distance", at.DistanceToRoute)
	}

	seg, _ := s.route.Segment(at.SegmentIndex)
	s.at = at
	s.section = seg.Section
	s.turns = guidance.Extract(s.route, at)

	if state == StateNone {
		state = e.classifyLocked(s, f, offRoute)
	}
	s.projected = true
	s.maxAlong = max(s.maxAlong, at.DistanceAlongRoute)
	e.setStateLocked(s, state)
}

// classifyLocked works out the state of a vehicle that is not (yet) off
// route.
func (e *Engine) classifyLocked(s *session, f Fix, offRoute bool) State {
	cfg := e.cfg
	if !offRoute && e.wrongWay(s, f) {
		return StateTurnRound
	}
	remaining := s.route.Distance() - s.at.DistanceAlongRoute
	if remaining < cfg.ArrivalDistance && s.turns.First.Type == route.TurnNone {
		return StateArrival
	}
	if first := s.turns.First; first.Type != route.TurnNone {
		if cfg.TurnAlertDistance <= 0 || first.Distance <= cfg.TurnAlertDistance {
			return StateTurn
		}
	}
	return StateNone
}

// wrongWay reports whether the vehicle is heading against the route: its
// course differs from the route heading by more than WrongWayAngle or,
// without a course, it has moved back along the route by more than the
// distance tolerance.
func (e *Engine) wrongWay(s *session, f Fix) bool {
	limit := e.cfg.WrongWayAngle
	if limit <= 0 || !s.projected && !f.Has(ValidCourse) {
		return false
	}
	if f.Has(ValidCourse) {
		if f.Has(ValidSpeed) && f.Speed < 1 {
			return false
		}
		routeCourse := 90 - s.at.Heading
		return angleDiff(f.Course, routeCourse) > limit
	}
	return s.at.DistanceAlongRoute < s.maxAlong-e.cfg.DistanceTolerance
}

// angleDiff returns the absolute difference between two bearings in
// degrees, in [0, 180].
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func (e *Engine) setStateLocked(s *session, state State) {
	if state == s.state {
		return
	}
	e.log.Info("navigation state changed", "from", s.state.String(), "to", state.String(),
		"along", s.at.DistanceAlongRoute, "to_route", s.at.DistanceToRoute)
	e.metrics.StateChanged(s.state, state)
	s.state = state
}

// startReRouteLocked requests a route from the position of f to the
// remaining waypoints. The result is applied by applyReRoute.
func (e *Engine) startReRouteLocked(s *session, f Fix) {
	if e.router == nil {
		if s.lastErr != ErrNoRouter {
			e.log.Warn("off route but no router configured")
		}
		s.lastErr = ErrNoRouter
		return
	}
	s.reRouting = true
	wps := s.route.Waypoints()
	waypoints := []orb.Point{e.cfg.Projection(f.Position)}
	if s.section+1 < len(wps) {
		waypoints = append(waypoints, wps[s.section+1:]...)
	} else {
		waypoints = append(waypoints, wps[len(wps)-1])
	}
	opts := RouteOptions{ReRoute: true}
	if f.Has(ValidCourse) {
		opts.Heading, opts.HasHeading = f.Course, true
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if e.cfg.ReRouteTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), e.cfg.ReRouteTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	e.cancelRR = cancel
	gen := e.gen
	prof := s.profile
	e.log.Info("re-routing", "waypoints", len(waypoints), "section", s.section)

	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		defer cancel()
		start := time.Now()
		r, err := e.router.ComputeRoute(ctx, prof, waypoints, opts)
		e.applyReRoute(gen, r, err, time.Since(start))
	}()
}

// applyReRoute installs the result of a route calculation, unless
// navigation has ended or restarted since it was requested.
func (e *Engine) applyReRoute(gen uint64, r *route.Route, err error, elapsed time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.sess
	if gen != e.gen || s == nil {
		e.log.Debug("discarding route calculated for ended navigation")
		e.metrics.ReRouted("discarded", elapsed)
		return
	}
	s.reRouting = false
	e.cancelRR = nil
	if err == nil && (r == nil || r.SegmentCount() == 0) {
		err = ErrNoRoute
	}
	if err != nil {
		// Try again once the vehicle has been off route for another
		// TimeTolerance.
		s.lastErr = err
		s.offRouteSince = time.Time{}
		e.log.Warn("re-route failed", "error", err, "code", Code(err))
		e.metrics.ReRouted("failed", elapsed)
		e.publishLocked()
		return
	}

	s.route = r
	s.section = 0
	s.projected = false
	s.maxAlong = 0
	s.offRouteSince = time.Time{}
	s.reRoutePending = false
	s.reRoutes++
	s.lastErr = nil
	s.at = route.NoSegment
	s.turns = guidance.NoTurns
	if e.lastFix != nil {
		s.at = r.NearestSegment(e.cfg.Projection(e.lastFix.Position), 0, 0)
		s.turns = guidance.Extract(r, s.at)
		s.projected = s.at.SegmentIndex >= 0
	}
	e.setStateLocked(s, StateNewRoute)
	e.log.Info("new route", "distance", r.Distance(), "time", r.Time(), "elapsed", elapsed)
	e.metrics.ReRouted("ok", elapsed)
	e.publishLocked()
}

// Wait blocks until route calculations in progress have finished.
func (e *Engine) Wait() { e.workers.Wait() }

// Run processes fixes from q until ctx is done.
func (e *Engine) Run(ctx context.Context, q *FixQueue) error {
	for {
		f, ok := q.Pop(ctx)
		if !ok {
			return ctx.Err()
		}
		if _, err := e.SubmitFix(f); err != nil {
			e.log.Warn("fix rejected", "error", err)
		}
	}
}

func (e *Engine) publishLocked() {
	e.seq++
	snap := &Snapshot{
		Seq:                   e.seq,
		UpdatedAt:             e.now(),
		Enabled:               e.enabled,
		Section:               -1,
		OnRoute:               route.NoSegment,
		Turns:                 guidance.NoTurns,
		DistanceToDestination: Unknown,
		TimeToDestination:     Unknown,
	}
	if e.lastFix != nil {
		snap.PositionKnown = true
		snap.Fix = *e.lastFix
	}
	if s := e.sess; s != nil {
		snap.Navigating = true
		snap.State = s.state
		snap.RouteDistance = s.route.Distance()
		snap.RouteTime = s.route.Time()
		snap.ReRoutes = s.reRoutes
		if s.lastErr != nil {
			snap.LastError = s.lastErr.Error()
			snap.ErrorCode = Code(s.lastErr)
		}
		if s.projected {
			snap.OnRoute = s.at
			snap.Section = s.section
			snap.Turns = s.turns
			snap.DistanceToDestination = max(s.route.Distance()-s.at.DistanceAlongRoute, 0)
			snap.TimeToDestination = max(s.route.Time()-s.at.TimeAlongRoute, 0)
		}
	}
	e.snap.Store(snap)
}
