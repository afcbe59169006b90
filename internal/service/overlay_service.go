package service

import (
	"context"
	"log"

	"highway_monitor/internal/model"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

const (
	colorUnknown = "#6b7280"

	colorPrimaryRoute   = "#2563eb"
	colorAlternateRoute = "#9ca3af"
)

// Layer names carried in every feature's "layer" property
const (
	LayerIssue   = "issue"
	LayerRoute   = "route"
	LayerTraffic = "traffic"
	LayerWeather = "weather"
)

// TrafficProvider estimates congestion at a point
type TrafficProvider interface {
	TrafficAt(ctx context.Context, loc model.LatLng) (model.TrafficData, error)
}

// OverlayService composes the map layers into a single GeoJSON document
type OverlayService interface {
	Compose(ctx context.Context, req model.OverlayRequest) (*geojson.FeatureCollection, error)
	TrafficSegments(ctx context.Context, path []model.LatLng) []model.TrafficSegment
}

type overlayService struct {
	issues  IssueService
	routes  RouteService
	weather WeatherService
	traffic TrafficProvider
}

// NewOverlayService creates a new OverlayService
func NewOverlayService(issues IssueService, routes RouteService, weather WeatherService, traffic TrafficProvider) OverlayService {
	return &overlayService{issues: issues, routes: routes, weather: weather, traffic: traffic}
}

func (s *overlayService) Compose(ctx context.Context, req model.OverlayRequest) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}

	issues, err := s.issues.ListIssues(ctx, model.IssueFilters{Status: optional(req.Status)})
	if err != nil {
		return nil, err
	}
	for i := range issues {
		fc.Features = append(fc.Features, issueFeature(&issues[i]))
	}

	if req.Start != nil && req.End != nil {
		plan, err := s.routes.PlanRoutes(ctx, *req.Start, *req.End)
		if err != nil {
			return nil, err
		}
		for i, r := range plan.Routes {
			if f := routeFeature(r, i, i == plan.Analysis.FastestIndex); f != nil {
				fc.Features = append(fc.Features, f)
			}
		}
		if req.Traffic {
			primary := plan.Routes[plan.Analysis.FastestIndex]
			for _, seg := range s.TrafficSegments(ctx, primary.Path) {
				fc.Features = append(fc.Features, trafficFeature(seg))
			}
		}
	}

	if req.WeatherCenter != nil {
		for _, w := range s.weather.Grid(ctx, *req.WeatherCenter) {
			fc.Features = append(fc.Features, weatherFeature(w))
		}
	}

	return fc, nil
}

// TrafficSegments samples traffic at the midpoint of each consecutive pair of path points
func (s *overlayService) TrafficSegments(ctx context.Context, path []model.LatLng) []model.TrafficSegment {
	segments := make([]model.TrafficSegment, 0, max(len(path)-1, 0))
	for i := 0; i+1 < len(path); i++ {
		start, end := path[i], path[i+1]
		mid := model.LatLng{Lat: (start.Lat + end.Lat) / 2, Lng: (start.Lng + end.Lng) / 2}
		data, err := s.traffic.TrafficAt(ctx, mid)
		if err != nil {
			log.Printf("Error estimating traffic at %.4f,%.4f: %v", mid.Lat, mid.Lng, err)
			continue
		}
		segments = append(segments, model.TrafficSegment{Start: start, End: end, TrafficData: data})
	}
	return segments
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GeoJSON orders coordinates as lng, lat
func point(loc model.LatLng) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{loc.Lng, loc.Lat})
}

func lineString(path []model.LatLng) *geom.LineString {
	flat := make([]float64, 0, 2*len(path))
	for _, p := range path {
		flat = append(flat, p.Lng, p.Lat)
	}
	return geom.NewLineStringFlat(geom.XY, flat)
}

func issueFeature(issue *model.HighwayIssue) *geojson.Feature {
	props := map[string]interface{}{
		"layer":       LayerIssue,
		"severity":    issue.Severity,
		"status":      issue.Status,
		"description": issue.Description,
		"color":       SeverityColor(issue.Severity),
		"created_at":  issue.CreatedAt,
	}
	if issue.ImageURL != nil {
		props["image_url"] = *issue.ImageURL
	}
	return &geojson.Feature{ID: issue.ID, Geometry: point(issue.Location), Properties: props}
}

// routeFeature returns nil for routes without a drawable path
func routeFeature(r model.Route, index int, primary bool) *geojson.Feature {
	if len(r.Path) < 2 {
		return nil
	}
	color, weight, opacity := colorAlternateRoute, 4, 0.5
	if primary {
		color, weight, opacity = colorPrimaryRoute, 6, 0.9
	}
	return &geojson.Feature{
		Geometry: lineString(r.Path),
		Properties: map[string]interface{}{
			"layer":         LayerRoute,
			"index":         index,
			"primary":       primary,
			"summary":       r.Summary,
			"distance_text": r.DistanceText,
			"duration_text": r.DurationText,
			"color":         color,
			"weight":        weight,
			"opacity":       opacity,
		},
	}
}

func trafficFeature(seg model.TrafficSegment) *geojson.Feature {
	level := seg.TrafficData.CongestionLevel
	return &geojson.Feature{
		Geometry: lineString([]model.LatLng{seg.Start, seg.End}),
		Properties: map[string]interface{}{
			"layer":            LayerTraffic,
			"congestion_level": level,
			"severity":         TrafficSeverity(level),
			"color":            TrafficColor(level),
			"speed":            seg.TrafficData.Speed,
			"delay":            seg.TrafficData.Delay,
		},
	}
}

func weatherFeature(w model.WeatherData) *geojson.Feature {
	return &geojson.Feature{
		Geometry: point(model.LatLng{Lat: w.Lat, Lng: w.Lon}),
		Properties: map[string]interface{}{
			"layer":        LayerWeather,
			"temp":         w.Temp,
			"weather_main": w.WeatherMain,
			"description":  w.WeatherDescription,
			"icon":         w.WeatherIcon,
			"color":        WeatherColor(w.WeatherMain),
			"severity":     WeatherSeverity(w.WeatherMain, w.Rain1h),
		},
	}
}

// SeverityColor maps an issue severity to its marker color
func SeverityColor(severity string) string {
	switch severity {
	case model.SeverityLow:
		return "#10b981"
	case model.SeverityMedium:
		return "#f59e0b"
	case model.SeverityHigh:
		return "#f97316"
	case model.SeverityCritical:
		return "#ef4444"
	}
	return colorUnknown
}

func TrafficColor(level string) string {
	switch level {
	case model.CongestionLow:
		return "#10b981"
	case model.CongestionMedium:
		return "#f59e0b"
	case model.CongestionHigh:
		return "#f97316"
	case model.CongestionSevere:
		return "#ef4444"
	}
	return colorUnknown
}

// TrafficSeverity puts congestion on the issue severity scale
func TrafficSeverity(level string) string {
	switch level {
	case model.CongestionMedium:
		return model.SeverityMedium
	case model.CongestionHigh:
		return model.SeverityHigh
	case model.CongestionSevere:
		return model.SeverityCritical
	}
	return model.SeverityLow
}
