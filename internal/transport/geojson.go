package transport

import (
	"route-navigator/internal/guidance"
	"route-navigator/internal/route"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RouteFeatures renders r as one LineString feature per segment, with
// coordinates converted by unproject.
func RouteFeatures(r *route.Route, unproject orb.Projection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := 0; i < r.SegmentCount(); i++ {
		s, err := r.Segment(i)
		if err != nil {
			break
		}
		var ls orb.LineString
		for _, p := range s.Path {
			if p.Kind == route.OnCurve {
				ls = append(ls, unproject(p.Orb()))
			}
		}
		f := geojson.NewFeature(ls)
		f.Properties["segment"] = i
		f.Properties["section"] = s.Section
		f.Properties["distance"] = s.Distance
		f.Properties["time"] = s.Time
		f.Properties["turn"] = guidance.ClassifyJunction(s.Junction).String()
		if s.Name != "" {
			f.Properties["name"] = s.Name
		}
		if s.Ref != "" {
			f.Properties["ref"] = s.Ref
		}
		if s.RoadType.Toll() {
			f.Properties["toll"] = true
		}
		fc.Append(f)
	}
	return fc
}
