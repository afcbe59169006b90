package service

import (
	"context"
	"errors"
	"testing"

	"highway_monitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouting struct {
	routes []model.Route
	err    error
}

func (f *fakeRouting) Directions(context.Context, model.LatLng, model.LatLng) ([]model.Route, error) {
	return f.routes, f.err
}

type fakeGeocoder struct {
	results map[string]*model.Bounds
	err     error
	queries []string
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*model.Bounds, error) {
	f.queries = append(f.queries, address)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[address], nil
}

func routeAB() []model.Route {
	return []model.Route{
		{Summary: "A", DistanceMeters: 10000, DurationSeconds: 900, DistanceText: "10 km", DurationText: "15 mins",
			Path: []model.LatLng{{Lat: 28.6, Lng: 77.2}, {Lat: 28.7, Lng: 77.1}}},
		{Summary: "B", DistanceMeters: 12000, DurationSeconds: 720, DistanceText: "12 km", DurationText: "12 mins",
			Path: []model.LatLng{{Lat: 28.6, Lng: 77.2}, {Lat: 28.65, Lng: 77.0}, {Lat: 28.7, Lng: 77.1}}},
	}
}

func TestAnalyzeRoutes(t *testing.T) {
	a := AnalyzeRoutes(routeAB())

	assert.Equal(t, 1, a.FastestIndex)
	assert.Equal(t, "Fastest: B (12 km, 12 mins)", a.Fastest)
	require.Len(t, a.Alternatives, 1)
	assert.Equal(t, 0, a.Alternatives[0].Index)
	assert.True(t, a.Alternatives[0].Slower)
	assert.False(t, a.Alternatives[0].Longer)
	assert.Equal(t, "Alt 1: A (10 km, 15 mins) - Slower", a.Alternatives[0].Label)
}

func TestAnalyzeRoutes_SlowerAndLonger(t *testing.T) {
	routes := []model.Route{
		{Summary: "NH48", DistanceMeters: 5000, DurationSeconds: 600, DistanceText: "5 km", DurationText: "10 mins"},
		{Summary: "Ring Rd", DistanceMeters: 8000, DurationSeconds: 900, DistanceText: "8 km", DurationText: "15 mins"},
		{DistanceMeters: 5000, DurationSeconds: 600, DistanceText: "5 km", DurationText: "10 mins"},
	}
	a := AnalyzeRoutes(routes)

	assert.Equal(t, 0, a.FastestIndex, "ties keep provider order")
	require.Len(t, a.Alternatives, 2)
	assert.Equal(t, "Alt 1: Ring Rd (8 km, 15 mins) - Slower, Longer", a.Alternatives[0].Label)
	assert.Equal(t, "Alt 2: Route 3 (5 km, 10 mins)", a.Alternatives[1].Label)
}

func TestAnalyzeRoutes_Empty(t *testing.T) {
	a := AnalyzeRoutes(nil)
	assert.Equal(t, -1, a.FastestIndex)
	assert.Empty(t, a.Alternatives)
}

func TestRouteService_PlanRoutes(t *testing.T) {
	svc := NewRouteService(&fakeRouting{routes: routeAB()}, &fakeGeocoder{})
	start, end := model.LatLng{Lat: 28.6, Lng: 77.2}, model.LatLng{Lat: 28.7, Lng: 77.1}

	plan, err := svc.PlanRoutes(context.Background(), start, end)
	require.NoError(t, err)
	assert.Len(t, plan.Routes, 2)
	assert.Equal(t, 1, plan.Analysis.FastestIndex)

	_, err = svc.PlanRoutes(context.Background(), model.LatLng{Lat: 100}, end)
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	_, err = NewRouteService(&fakeRouting{}, nil).PlanRoutes(context.Background(), start, end)
	assert.ErrorIs(t, err, ErrNoRoutes)

	_, err = NewRouteService(&fakeRouting{err: errors.New("OVER_QUERY_LIMIT")}, nil).PlanRoutes(context.Background(), start, end)
	assert.ErrorIs(t, err, ErrProviderFailure)
}

func TestRouteService_SearchHighway(t *testing.T) {
	geocoder := &fakeGeocoder{results: map[string]*model.Bounds{
		"NH 48, India": {Southwest: model.LatLng{Lat: 12.9, Lng: 72.8}, Northeast: model.LatLng{Lat: 28.6, Lng: 77.2}},
	}}
	svc := NewRouteService(&fakeRouting{}, geocoder)

	span, err := svc.SearchHighway(context.Background(), " 48 ")
	require.NoError(t, err)
	assert.Equal(t, "NH 48, India", span.Query)
	assert.Equal(t, model.LatLng{Lat: 12.9, Lng: 72.8}, span.Start)
	assert.Equal(t, model.LatLng{Lat: 28.6, Lng: 77.2}, span.End)
	assert.Equal(t, []string{"48, India", "National Highway 48, India", "NH 48, India"}, geocoder.queries)
}

func TestRouteService_SearchHighway_NotFound(t *testing.T) {
	svc := NewRouteService(&fakeRouting{}, &fakeGeocoder{})
	_, err := svc.SearchHighway(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrHighwayNotFound)

	_, err = svc.SearchHighway(context.Background(), "")
	assert.ErrorIs(t, err, ErrHighwayNotFound)

	failing := NewRouteService(&fakeRouting{}, &fakeGeocoder{err: errors.New("REQUEST_DENIED")})
	_, err = failing.SearchHighway(context.Background(), "48")
	assert.ErrorIs(t, err, ErrProviderFailure)
}
