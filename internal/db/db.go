package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"route-navigator/internal/profile"
	"route-navigator/internal/route"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	ErrRouteNotFound   = errors.New("route not found")
	ErrProfileNotFound = errors.New("profile not found")
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// segmentRow is one row of route_segments. Path and junction are JSON
// columns.
type segmentRow struct {
	Section    int
	RoadType   int64
	MaxSpeed   float64
	Name       string
	Ref        string
	Distance   float64
	Time       float64
	TurnTime   float64
	Path       []byte
	Junction   []byte
	Restricted bool
}

// FetchRoute loads a stored route. Segments are ordered by section and
// sequence; section numbers need not be contiguous.
func FetchRoute(ctx context.Context, db *sql.DB, routeID string) (*route.Route, error) {
	q := `
SELECT section, road_type, COALESCE(max_speed, 0), COALESCE(name, ''), COALESCE(ref, ''),
       distance, time, COALESCE(turn_time, 0), path, junction, COALESCE(restricted, false)
FROM route_segments
WHERE route_id = $1
ORDER BY section, seq`

	rows, err := db.QueryContext(ctx, q, routeID)
	if err != nil {
		return nil, fmt.Errorf("query route_segments: %w", err)
	}
	defer rows.Close()

	var segs []segmentRow
	for rows.Next() {
		var r segmentRow
		if err := rows.Scan(&r.Section, &r.RoadType, &r.MaxSpeed, &r.Name, &r.Ref,
			&r.Distance, &r.Time, &r.TurnTime, &r.Path, &r.Junction, &r.Restricted); err != nil {
			return nil, err
		}
		segs = append(segs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("route %q: %w", routeID, ErrRouteNotFound)
	}
	r, err := buildRoute(segs)
	if err != nil {
		return nil, fmt.Errorf("route %q: %w", routeID, err)
	}
	return r, nil
}

func buildRoute(rows []segmentRow) (*route.Route, error) {
	var sections []route.Section
	current := 0
	for i, row := range rows {
		if i == 0 || row.Section != current {
			sections = append(sections, route.Section{})
			current = row.Section
		}
		s := route.Segment{
			RoadType:   route.RoadType(row.RoadType),
			MaxSpeed:   row.MaxSpeed,
			Name:       row.Name,
			Ref:        row.Ref,
			Distance:   row.Distance,
			Time:       row.Time,
			TurnTime:   row.TurnTime,
			Restricted: row.Restricted,
		}
		if err := json.Unmarshal(row.Path, &s.Path); err != nil {
			return nil, fmt.Errorf("segment %d path: %v: %w", i, err, route.ErrCorrupt)
		}
		if len(row.Junction) > 0 {
			if err := json.Unmarshal(row.Junction, &s.Junction); err != nil {
				return nil, fmt.Errorf("segment %d junction: %v: %w", i, err, route.ErrCorrupt)
			}
		}
		last := &sections[len(sections)-1]
		last.Segments = append(last.Segments, s)
	}
	return route.New(sections)
}

// FetchProfile loads a stored route profile. The stored JSON overrides the
// preset of the same name (or the car preset); a name with no row falls
// back to the preset alone.
func FetchProfile(ctx context.Context, db *sql.DB, name string) (*profile.Profile, error) {
	q := `SELECT profile FROM route_profiles WHERE name = $1`
	var raw []byte
	err := db.QueryRowContext(ctx, q, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		p, perr := profile.ByName(name)
		if perr != nil {
			return nil, fmt.Errorf("profile %q: %w", name, ErrProfileNotFound)
		}
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query route_profiles: %w", err)
	}
	return parseProfile(name, raw)
}

func parseProfile(name string, raw []byte) (*profile.Profile, error) {
	p, err := profile.ByName(name)
	if err != nil {
		p = profile.New(profile.CarProfile)
		p.Name = name
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("profile %q: %w", name, err)
	}
	p.Normalize()
	return p, nil
}
