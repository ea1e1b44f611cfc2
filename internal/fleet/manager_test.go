package fleet

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"route-navigator/internal/nav"
	"route-navigator/internal/profile"
	"route-navigator/internal/route"
	"route-navigator/internal/transport"

	"github.com/paulmach/orb"
)

type fakePublisher struct {
	mu        sync.Mutex
	snapshots map[string][]nav.Snapshot
	routes    map[string]int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{snapshots: map[string][]nav.Snapshot{}, routes: map[string]int{}}
}

func (p *fakePublisher) PublishSnapshot(vehicle string, s nav.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[vehicle] = append(p.snapshots[vehicle], s)
	return nil
}

func (p *fakePublisher) PublishRoute(vehicle string, _ *route.Route) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[vehicle]++
	return nil
}

func (p *fakePublisher) last(vehicle string) (nav.Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snapshots[vehicle]
	if len(s) == 0 {
		return nav.Snapshot{}, false
	}
	return s[len(s)-1], true
}

func (p *fakePublisher) routeCount(vehicle string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.routes[vehicle]
}

type fakeRoutes struct{}

func (fakeRoutes) Route(_ context.Context, id string) (*route.Route, error) {
	if id != "depot-loop" {
		return nil, errors.New("route not found")
	}
	return route.New([]route.Section{{Segments: []route.Segment{
		{Name: "Depot Rd", Distance: 1000, Time: 100, Path: []route.Point{route.Pt(0, 0), route.Pt(1000, 0)}},
	}}})
}

func (fakeRoutes) Profile(_ context.Context, name string) (*profile.Profile, error) {
	return profile.ByName(name)
}

// mapScale converts fix degrees to map meters exactly.
const mapScale = 128

func testConfig() nav.Config {
	cfg := nav.DefaultConfig()
	cfg.Projection = func(p orb.Point) orb.Point { return orb.Point{p[0] * mapScale, p[1] * mapScale} }
	cfg.MinimumFixDistance = 0
	cfg.ArrivalDistance = 100
	return cfg
}

func newManager(t *testing.T, pub Publisher) *Manager {
	t.Helper()
	return newManagerWith(t, Options{Config: testConfig(), Publisher: pub})
}

func newManagerWith(t *testing.T, opts Options) *Manager {
	t.Helper()
	opts.Routes = fakeRoutes{}
	opts.PublishInterval = 2 * time.Millisecond
	opts.QueueSize = 4
	m := NewManager(opts)
	t.Cleanup(m.Stop)
	return m
}

// waitFor polls cond until it holds or a few seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// fix is a fix at map point x, y.
func fix(x, y float64) nav.Fix {
	return nav.Fix{Validity: nav.ValidTime | nav.ValidPosition, Time: time.Now(), Position: orb.Point{x / mapScale, y / mapScale}}
}

func TestSubmitFixStartsVehicle(t *testing.T) {
	pub := newFakePublisher()
	m := newManager(t, pub)

	if _, err := m.Snapshot("van-1"); !errors.Is(err, ErrUnknownVehicle) {
		t.Errorf("unknown vehicle: got %v, expected ErrUnknownVehicle", err)
	}
	if err := m.SubmitFix("van-1", fix(10, 0)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "published position", func() bool {
		s, ok := pub.last("van-1")
		return ok && s.PositionKnown
	})
	if s, _ := pub.last("van-1"); s.Navigating {
		t.Errorf("vehicle navigating without a route")
	}
}

func TestControlStoredRoute(t *testing.T) {
	pub := newFakePublisher()
	m := newManager(t, pub)
	ctx := context.Background()

	if err := m.Control(ctx, "van-2", transport.ControlRequest{Action: transport.ActionStart, RouteID: "depot-loop", Profile: "bicycle"}); err != nil {
		t.Fatal(err)
	}
	if err := m.SubmitFix("van-2", fix(250, 0)); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "distance to destination", func() bool {
		s, ok := pub.last("van-2")
		return ok && math.Abs(s.DistanceToDestination-750) < 1e-6
	})
	if n := pub.routeCount("van-2"); n != 1 {
		t.Errorf("route published %d times, expected 1", n)
	}

	if err := m.Control(ctx, "van-2", transport.ControlRequest{Action: transport.ActionEnd}); err != nil {
		t.Fatal(err)
	}
	err := m.Control(ctx, "van-2", transport.ControlRequest{Action: transport.ActionEnd})
	if nav.Code(err) != nav.CodeNotNavigating {
		t.Errorf("second end: got %v (code %d)", err, nav.Code(err))
	}
}

func TestControlErrors(t *testing.T) {
	m := newManager(t, newFakePublisher())
	ctx := context.Background()

	err := m.Control(ctx, "ghost", transport.ControlRequest{Action: transport.ActionDisable})
	if !errors.Is(err, ErrUnknownVehicle) || nav.Code(err) != nav.CodeNotNavigating {
		t.Errorf("unknown vehicle: got %v (code %d)", err, nav.Code(err))
	}
	if err := m.Control(ctx, "van-3", transport.ControlRequest{Action: "teleport"}); nav.Code(err) != nav.CodeInvalidArgument {
		t.Errorf("unknown action: got %v", err)
	}
	if err := m.Control(ctx, "van-3", transport.ControlRequest{Action: transport.ActionStart}); nav.Code(err) != nav.CodeInvalidArgument {
		t.Errorf("start without route or destination: got %v", err)
	}
	// No router and no position yet.
	err = m.Control(ctx, "van-3", transport.ControlRequest{Action: transport.ActionStart, Destinations: []orb.Point{{5, 5}}})
	if !errors.Is(err, nav.ErrNoRouter) {
		t.Errorf("start without router: got %v", err)
	}
}

func TestControlConfigure(t *testing.T) {
	m := newManager(t, newFakePublisher())
	ctx := context.Background()
	if err := m.SubmitFix("van-4", fix(0, 0)); err != nil {
		t.Fatal(err)
	}

	tol, neg, off := 42.0, -1.0, false
	if err := m.Control(ctx, "van-4", transport.ControlRequest{Action: transport.ActionConfigure, DistanceTolerance: &tol, AutoReRoute: &off}); err != nil {
		t.Fatal(err)
	}
	v, err := m.vehicle("van-4", false)
	if err != nil {
		t.Fatal(err)
	}
	if c := v.engine.Config(); c.DistanceTolerance != 42 || c.AutoReRoute {
		t.Errorf("config: got %+v", c)
	}
	err = m.Control(ctx, "van-4", transport.ControlRequest{Action: transport.ActionConfigure, MinimumFixDistance: &neg})
	if !errors.Is(err, route.ErrInvalidArgument) {
		t.Errorf("negative distance: got %v", err)
	}
}

func TestStop(t *testing.T) {
	m := newManager(t, newFakePublisher())
	if err := m.SubmitFix("van-5", fix(0, 0)); err != nil {
		t.Fatal(err)
	}
	m.Stop()
	if err := m.SubmitFix("van-5", fix(1, 0)); !errors.Is(err, ErrStopped) {
		t.Errorf("after stop: got %v, expected ErrStopped", err)
	}
}

func TestRemove(t *testing.T) {
	m := newManager(t, newFakePublisher())
	if err := m.SubmitFix("van-6", fix(0, 0)); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove("van-6"); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove("van-6"); !errors.Is(err, ErrUnknownVehicle) {
		t.Errorf("second remove: got %v", err)
	}
}

// blockingRouter answers only when its context is done.
type blockingRouter struct {
	started chan struct{}
	once    sync.Once
}

func (r *blockingRouter) ComputeRoute(ctx context.Context, _ *profile.Profile, _ []orb.Point, _ nav.RouteOptions) (*route.Route, error) {
	r.once.Do(func() { close(r.started) })
	<-ctx.Done()
	return nil, ctx.Err()
}

// startReRoute puts vehicle id off route so that it starts a route
// calculation on router.
func startReRoute(t *testing.T, m *Manager, id string, router *blockingRouter) {
	t.Helper()
	ctx := context.Background()
	if err := m.Control(ctx, id, transport.ControlRequest{Action: transport.ActionStart, RouteID: "depot-loop"}); err != nil {
		t.Fatal(err)
	}
	if err := m.SubmitFix(id, fix(250, 50)); err != nil {
		t.Fatal(err)
	}
	select {
	case <-router.started:
	case <-time.After(5 * time.Second):
		t.Fatal("re-route not started")
	}
}

func TestStopCancelsReRoute(t *testing.T) {
	cfg := testConfig()
	cfg.TimeTolerance = 0
	cfg.ReRouteTimeout = time.Hour
	router := &blockingRouter{started: make(chan struct{})}
	m := newManagerWith(t, Options{Config: cfg, Router: router})
	startReRoute(t, m, "van-7", router)

	start := time.Now()
	m.Stop()
	if d := time.Since(start); d > 5*time.Second {
		t.Errorf("Stop took %v", d)
	}
}

func TestRemoveCancelsReRoute(t *testing.T) {
	cfg := testConfig()
	cfg.TimeTolerance = 0
	cfg.ReRouteTimeout = time.Hour
	router := &blockingRouter{started: make(chan struct{})}
	m := newManagerWith(t, Options{Config: cfg, Router: router})
	startReRoute(t, m, "van-8", router)

	v, err := m.vehicle("van-8", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Remove("van-8"); err != nil {
		t.Fatal(err)
	}
	done := make(chan struct{})
	go func() {
		v.engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("route calculation still running after Remove")
	}
	if s := v.engine.Snapshot(); s.Navigating {
		t.Errorf("removed vehicle still navigating")
	}
}
