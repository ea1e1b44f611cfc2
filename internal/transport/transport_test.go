package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"route-navigator/internal/nav"
	"route-navigator/internal/route"

	"github.com/paulmach/orb"
)

func TestFixMessageValidity(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		validity nav.Validity
	}{
		{"full", `{"time":"2024-05-01T12:00:00Z","lon":2.35,"lat":48.85,"speed":40,"course":90,"height":35}`,
			nav.ValidTime | nav.ValidPosition | nav.ValidSpeed | nav.ValidCourse | nav.ValidHeight},
		{"position only", `{"lon":2.35,"lat":48.85}`, nav.ValidPosition},
		{"half a position", `{"lon":2.35,"speed":0}`, nav.ValidSpeed},
		{"empty", `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m FixMessage
			if err := json.Unmarshal([]byte(tt.json), &m); err != nil {
				t.Fatal(err)
			}
			f := m.Fix()
			if f.Validity != tt.validity {
				t.Errorf("validity: got %b, expected %b", f.Validity, tt.validity)
			}
			if f.Has(nav.ValidPosition) && f.Position != (orb.Point{2.35, 48.85}) {
				t.Errorf("position: got %v", f.Position)
			}
		})
	}
}

type fakeController struct {
	vehicle string
	req     ControlRequest
	err     error
}

func (c *fakeController) Control(_ context.Context, vehicle string, req ControlRequest) error {
	c.vehicle, c.req = vehicle, req
	return c.err
}

func TestHandleControl(t *testing.T) {
	ctrl := &fakeController{}
	reply := handleControl(context.Background(), ctrl, "bus-7", []byte(`{"action":"start","destinations":[[2.3,48.8]],"profile":"car"}`))
	if reply.Code != nav.CodeSuccess || reply.Error != "" {
		t.Errorf("reply: got %+v, expected success", reply)
	}
	if ctrl.vehicle != "bus-7" || ctrl.req.Action != ActionStart || len(ctrl.req.Destinations) != 1 {
		t.Errorf("request: got %q %+v", ctrl.vehicle, ctrl.req)
	}
	if ctrl.req.Destinations[0] != (orb.Point{2.3, 48.8}) {
		t.Errorf("destination: got %v", ctrl.req.Destinations[0])
	}

	ctrl.err = nav.ErrNotNavigating
	if reply := handleControl(context.Background(), ctrl, "bus-7", []byte(`{"action":"end"}`)); reply.Code != nav.CodeNotNavigating {
		t.Errorf("end while idle: got code %d, expected %d", reply.Code, nav.CodeNotNavigating)
	}
	if reply := handleControl(context.Background(), ctrl, "bus-7", []byte(`{"action":`)); reply.Code != nav.CodeInvalidArgument {
		t.Errorf("malformed request: got code %d, expected %d", reply.Code, nav.CodeInvalidArgument)
	}
}

func TestDecodeReply(t *testing.T) {
	r, err := route.New([]route.Section{{Segments: []route.Segment{
		{Name: "Quay St", Distance: 120, Time: 12, Path: []route.Point{route.Pt(0, 0), route.Pt(100, 0)}},
		{Name: "Bridge Rd", Distance: 80, Time: 9, Path: []route.Point{route.Pt(100, 0), route.Pt(100, 80)},
			Junction: route.Junction{Angle: -90}},
	}}})
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(ReplyFor(r, nil))
	if err != nil {
		t.Fatal(err)
	}
	got, err := decodeReply(b)
	if err != nil {
		t.Fatal(err)
	}
	if got.Distance() != 200 || got.Time() != 21 || got.SegmentCount() != 2 {
		t.Errorf("decoded route: distance %v time %v segments %d", got.Distance(), got.Time(), got.SegmentCount())
	}
	if s, _ := got.Segment(1); s.Junction.Angle != -90 || s.Name != "Bridge Rd" {
		t.Errorf("second segment: got %+v", s)
	}

	tests := []struct {
		name string
		data string
		err  error
	}{
		{"no roads near start", `{"code":59,"error":"no roads near start of route"}`, nav.ErrNoRoadsNearStart},
		{"disconnected", `{"code":61}`, nav.ErrNoRouteConnectivity},
		{"success without route", `{"code":0}`, nav.ErrNoRoute},
		{"garbage", `<html>`, route.ErrCorrupt},
		{"empty", ``, errEmptyReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeReply([]byte(tt.data)); !errors.Is(err, tt.err) {
				t.Errorf("got %v, expected %v", err, tt.err)
			}
		})
	}
}

func TestReplyForError(t *testing.T) {
	reply := ReplyFor(nil, nav.ErrNoRoadsNearEnd)
	if reply.Code != nav.CodeNoRoadsNearEnd {
		t.Errorf("code: got %d, expected %d", reply.Code, nav.CodeNoRoadsNearEnd)
	}
	if _, err := reply.Route(); !errors.Is(err, nav.ErrNoRoadsNearEnd) {
		t.Errorf("got %v, expected ErrNoRoadsNearEnd", err)
	}
}

func TestRouteFeatures(t *testing.T) {
	r, err := route.New([]route.Section{{Segments: []route.Segment{
		{Name: "A", Distance: 10, Path: []route.Point{route.Pt(0, 0), {X: 5, Y: 5, Kind: route.Quadratic}, route.Pt(10, 0)}},
		{Ref: "B1", Distance: 10, RoadType: route.TollFlag, Path: []route.Point{route.Pt(10, 0), route.Pt(10, 10)},
			Junction: route.Junction{Angle: 90}},
	}}})
	if err != nil {
		t.Fatal(err)
	}
	scale := func(p orb.Point) orb.Point { return orb.Point{p[0] / 10, p[1] / 10} }
	fc := RouteFeatures(r, scale)
	if len(fc.Features) != 2 {
		t.Fatalf("features: got %d, expected 2", len(fc.Features))
	}
	ls, ok := fc.Features[0].Geometry.(orb.LineString)
	if !ok || len(ls) != 2 || ls[1] != (orb.Point{1, 0}) {
		t.Errorf("first geometry: got %v", fc.Features[0].Geometry)
	}
	props := fc.Features[1].Properties
	if props["turn"] != route.TurnRight.String() || props["ref"] != "B1" || props["toll"] != true {
		t.Errorf("second feature properties: got %v", props)
	}
	if _, err := json.Marshal(fc); err != nil {
		t.Errorf("marshal: %v", err)
	}
}

func TestSubjects(t *testing.T) {
	c := &Conn{prefix: "nav"}
	if got := c.subject("state", "van 12.a"); got != "nav.state.van_12_a" {
		t.Errorf("subject: got %q", got)
	}
	if got := lastToken("nav.fix.van_12"); got != "van_12" {
		t.Errorf("lastToken: got %q", got)
	}
	if got := subjectToken("  "); got != "_" {
		t.Errorf("subjectToken of blank: got %q", got)
	}
}
