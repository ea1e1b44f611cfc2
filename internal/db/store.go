package db

import (
	"context"
	"database/sql"
	"errors"

	"route-navigator/internal/profile"
	"route-navigator/internal/route"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LookupMetrics counts store lookups by result: hit, miss or error.
type LookupMetrics interface {
	RouteLookup(result string)
}

// Store serves stored routes and profiles through LRU caches. Routes are
// immutable and shared; profiles are cloned on every lookup.
type Store struct {
	routes   *lru.Cache[string, *route.Route]
	profiles *lru.Cache[string, *profile.Profile]
	metrics  LookupMetrics

	fetchRoute   func(ctx context.Context, id string) (*route.Route, error)
	fetchProfile func(ctx context.Context, name string) (*profile.Profile, error)
}

func NewStore(conn *sql.DB, size int, m LookupMetrics) (*Store, error) {
	s, err := newStore(size, m)
	if err != nil {
		return nil, err
	}
	s.fetchRoute = func(ctx context.Context, id string) (*route.Route, error) {
		return FetchRoute(ctx, conn, id)
	}
	s.fetchProfile = func(ctx context.Context, name string) (*profile.Profile, error) {
		return FetchProfile(ctx, conn, name)
	}
	return s, nil
}

func newStore(size int, m LookupMetrics) (*Store, error) {
	routes, err := lru.New[string, *route.Route](size)
	if err != nil {
		return nil, err
	}
	profiles, err := lru.New[string, *profile.Profile](size)
	if err != nil {
		return nil, err
	}
	return &Store{routes: routes, profiles: profiles, metrics: m}, nil
}

// Route returns the stored route with the given id.
func (s *Store) Route(ctx context.Context, id string) (*route.Route, error) {
	if r, ok := s.routes.Get(id); ok {
		s.count("hit")
		return r, nil
	}
	r, err := s.fetchRoute(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRouteNotFound) {
			s.count("miss")
		} else {
			s.count("error")
		}
		return nil, err
	}
	s.count("miss")
	s.routes.Add(id, r)
	return r, nil
}

// Profile returns the named profile, from route_profiles or the presets.
func (s *Store) Profile(ctx context.Context, name string) (*profile.Profile, error) {
	if p, ok := s.profiles.Get(name); ok {
		return p.Clone(), nil
	}
	p, err := s.fetchProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	s.profiles.Add(name, p)
	return p.Clone(), nil
}

func (s *Store) count(result string) {
	if s.metrics != nil {
		s.metrics.RouteLookup(result)
	}
}
