package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"highway_monitor/internal/model"
)

// RoutingProvider returns driving routes between two points
type RoutingProvider interface {
	Directions(ctx context.Context, start, end model.LatLng) ([]model.Route, error)
}

// GeocodingProvider resolves a free-text address to its bounds, nil when unknown
type GeocodingProvider interface {
	Geocode(ctx context.Context, address string) (*model.Bounds, error)
}

// RouteService plans routes and resolves highway names for the engineer dashboard
type RouteService interface {
	PlanRoutes(ctx context.Context, start, end model.LatLng) (*model.RoutePlan, error)
	SearchHighway(ctx context.Context, name string) (*model.HighwaySpan, error)
}

type routeService struct {
	routing  RoutingProvider
	geocoder GeocodingProvider
}

// NewRouteService creates a new RouteService
func NewRouteService(routing RoutingProvider, geocoder GeocodingProvider) RouteService {
	return &routeService{routing: routing, geocoder: geocoder}
}

func (s *routeService) PlanRoutes(ctx context.Context, start, end model.LatLng) (*model.RoutePlan, error) {
	if !start.Valid() || !end.Valid() {
		return nil, ErrInvalidCoordinates
	}
	routes, err := s.routing.Directions(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}
	return &model.RoutePlan{Routes: routes, Analysis: AnalyzeRoutes(routes)}, nil
}

// highwayQueries are tried in order until one geocodes
var highwayQueries = []string{
	"%s, India",
	"National Highway %s, India",
	"NH %s, India",
	"%s highway, India",
}

func (s *routeService) SearchHighway(ctx context.Context, name string) (*model.HighwaySpan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrHighwayNotFound
	}

	var lastErr error
	for _, pattern := range highwayQueries {
		query := fmt.Sprintf(pattern, name)
		bounds, err := s.geocoder.Geocode(ctx, query)
		if err != nil {
			log.Printf("Geocoding %q failed: %v", query, err)
			lastErr = err
			continue
		}
		if bounds != nil {
			return &model.HighwaySpan{Query: query, Start: bounds.Southwest, End: bounds.Northeast}, nil
		}
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, lastErr)
	}
	return nil, ErrHighwayNotFound
}

// AnalyzeRoutes picks the fastest route by duration, the first one winning ties,
// and labels every other route relative to it.
func AnalyzeRoutes(routes []model.Route) model.RouteAnalysis {
	if len(routes) == 0 {
		return model.RouteAnalysis{FastestIndex: -1, Alternatives: []model.RouteAlternative{}}
	}

	fastest := 0
	for i, r := range routes {
		if r.DurationSeconds < routes[fastest].DurationSeconds {
			fastest = i
		}
	}
	best := routes[fastest]

	analysis := model.RouteAnalysis{
		FastestIndex: fastest,
		Fastest:      fmt.Sprintf("Fastest: %s (%s, %s)", routeName(best, fastest), best.DistanceText, best.DurationText),
		Alternatives: make([]model.RouteAlternative, 0, len(routes)-1),
	}

	n := 0
	for i, r := range routes {
		if i == fastest {
			continue
		}
		n++
		alt := model.RouteAlternative{
			Index:  i,
			Slower: r.DurationSeconds > best.DurationSeconds,
			Longer: r.DistanceMeters > best.DistanceMeters,
		}
		label := fmt.Sprintf("Alt %d: %s (%s, %s)", n, routeName(r, i), r.DistanceText, r.DurationText)
		var reasons []string
		if alt.Slower {
			reasons = append(reasons, "Slower")
		}
		if alt.Longer {
			reasons = append(reasons, "Longer")
		}
		if len(reasons) > 0 {
			label += " - " + strings.Join(reasons, ", ")
		}
		alt.Label = label
		analysis.Alternatives = append(analysis.Alternatives, alt)
	}
	return analysis
}

func routeName(r model.Route, i int) string {
	if r.Summary != "" {
		return r.Summary
	}
	return fmt.Sprintf("Route %d", i+1)
}
