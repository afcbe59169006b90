package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"highway_monitor/internal/model"

	"github.com/twpayne/go-polyline"
)

// GoogleMapsClient wraps the Directions, Geocoding, Roads and Street View APIs
type GoogleMapsClient struct {
	apiKey   string
	mapsURL  string
	roadsURL string
	http     *http.Client
}

func NewGoogleMapsClient(apiKey, mapsURL, roadsURL string, client *http.Client) *GoogleMapsClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &GoogleMapsClient{apiKey: apiKey, mapsURL: mapsURL, roadsURL: roadsURL, http: client}
}

type gmValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Summary string `json:"summary"`
		Legs    []struct {
			Distance gmValue `json:"distance"`
			Duration gmValue `json:"duration"`
		} `json:"legs"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
	} `json:"routes"`
}

// Directions returns the driving routes between start and end, alternatives included,
// in provider order.
func (c *GoogleMapsClient) Directions(ctx context.Context, start, end model.LatLng) ([]model.Route, error) {
	q := url.Values{}
	q.Set("origin", formatLatLng(start))
	q.Set("destination", formatLatLng(end))
	q.Set("mode", "driving")
	q.Set("alternatives", "true")
	q.Set("key", c.apiKey)

	var resp directionsResponse
	if err := getJSON(ctx, c.http, "directions", c.mapsURL+"/maps/api/directions/json?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []model.Route{}, nil
	default:
		return nil, fmt.Errorf("%w: directions: status %s: %s", ErrUpstream, resp.Status, resp.ErrorMessage)
	}

	routes := make([]model.Route, 0, len(resp.Routes))
	for _, r := range resp.Routes {
		route := model.Route{Summary: r.Summary}
		texts := make([]string, 0, 2)
		for i, leg := range r.Legs {
			route.DistanceMeters += leg.Distance.Value
			route.DurationSeconds += leg.Duration.Value
			if i == 0 {
				texts = append(texts, leg.Distance.Text, leg.Duration.Text)
			}
		}
		if len(r.Legs) == 1 {
			route.DistanceText, route.DurationText = texts[0], texts[1]
		} else {
			route.DistanceText = fmt.Sprintf("%.1f km", float64(route.DistanceMeters)/1000)
			route.DurationText = fmt.Sprintf("%d mins", (route.DurationSeconds+59)/60)
		}
		path, err := decodePath(r.OverviewPolyline.Points)
		if err != nil {
			return nil, fmt.Errorf("%w: directions: %v", ErrUpstream, err)
		}
		route.Path = path
		routes = append(routes, route)
	}
	return routes, nil
}

func decodePath(encoded string) ([]model.LatLng, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode polyline: %w", err)
	}
	path := make([]model.LatLng, 0, len(coords))
	for _, c := range coords {
		path = append(path, model.LatLng{Lat: c[0], Lng: c[1]})
	}
	return path, nil
}

type geocodeBox struct {
	Northeast struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"northeast"`
	Southwest struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"southwest"`
}

// Geocode returns the bounds of the best match for address, or nil when nothing matched.
// Viewport is used when the match has no bounds.
func (c *GoogleMapsClient) Geocode(ctx context.Context, address string) (*model.Bounds, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.apiKey)

	var resp struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
		Results      []struct {
			Geometry struct {
				Bounds   *geocodeBox `json:"bounds"`
				Viewport *geocodeBox `json:"viewport"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := getJSON(ctx, c.http, "geocode", c.mapsURL+"/maps/api/geocode/json?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if resp.Status == "ZERO_RESULTS" || len(resp.Results) == 0 {
		return nil, nil
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("%w: geocode: status %s: %s", ErrUpstream, resp.Status, resp.ErrorMessage)
	}

	box := resp.Results[0].Geometry.Bounds
	if box == nil {
		box = resp.Results[0].Geometry.Viewport
	}
	if box == nil {
		return nil, nil
	}
	return &model.Bounds{
		Southwest: model.LatLng{Lat: box.Southwest.Lat, Lng: box.Southwest.Lng},
		Northeast: model.LatLng{Lat: box.Northeast.Lat, Lng: box.Northeast.Lng},
	}, nil
}

// SnapToRoads aligns a GPS trace to the road network, interpolating between points
func (c *GoogleMapsClient) SnapToRoads(ctx context.Context, path []model.LatLng) ([]model.LatLng, error) {
	if len(path) == 0 {
		return nil, nil
	}
	points := make([]string, len(path))
	for i, p := range path {
		points[i] = formatLatLng(p)
	}
	q := url.Values{}
	q.Set("path", strings.Join(points, "|"))
	q.Set("interpolate", "true")
	q.Set("key", c.apiKey)

	var resp struct {
		SnappedPoints []struct {
			Location struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"location"`
		} `json:"snappedPoints"`
	}
	if err := getJSON(ctx, c.http, "roads", c.roadsURL+"/v1/snapToRoads?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	snapped := make([]model.LatLng, 0, len(resp.SnappedPoints))
	for _, p := range resp.SnappedPoints {
		snapped = append(snapped, model.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude})
	}
	return snapped, nil
}

// StreetViewURL is the static Street View image looking along the road at loc
func (c *GoogleMapsClient) StreetViewURL(loc model.LatLng) string {
	return fmt.Sprintf("%s/maps/api/streetview?size=640x640&location=%s&fov=80&heading=70&pitch=0&key=%s",
		c.mapsURL, formatLatLng(loc), url.QueryEscape(c.apiKey))
}
