package provider

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"highway_monitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenWeather_CurrentWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		assert.Equal(t, "k", r.URL.Query().Get("appid"))
		w.Write([]byte(`{
			"coord": {"lat": 28.7, "lon": 77.1},
			"weather": [{"main": "Rain", "description": "heavy rain", "icon": "10d"}],
			"main": {"temp": 24.5, "feels_like": 25, "humidity": 90, "pressure": 1002},
			"wind": {"speed": 5.1, "deg": 200},
			"rain": {"1h": 12.5},
			"visibility": 4000,
			"clouds": {"all": 100},
			"dt": 1700000000
		}`))
	}))
	defer srv.Close()

	c := NewOpenWeatherClient("k", srv.URL, srv.Client())
	w, err := c.CurrentWeather(context.Background(), 28.7, 77.1)
	require.NoError(t, err)
	assert.Equal(t, "Rain", w.WeatherMain)
	assert.Equal(t, 24.5, w.Temp)
	require.NotNil(t, w.Rain1h)
	assert.Equal(t, 12.5, *w.Rain1h)
	assert.Nil(t, w.Rain3h)
	assert.Equal(t, 100, w.Clouds)
}

func TestOpenWeather_Forecast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/forecast", r.URL.Path)
		w.Write([]byte(`{
			"list": [
				{"dt": 1, "main": {"temp": 20}, "weather": [{"main": "Clear"}]},
				{"dt": 2, "main": {"temp": 18}, "weather": [{"main": "Clouds"}]}
			],
			"city": {"name": "Delhi", "coord": {"lat": 28.7, "lon": 77.1}}
		}`))
	}))
	defer srv.Close()

	f, err := NewOpenWeatherClient("k", srv.URL, srv.Client()).Forecast(context.Background(), 28.7, 77.1)
	require.NoError(t, err)
	assert.Equal(t, "Delhi", f.City.Name)
	require.Len(t, f.List, 2)
	assert.Equal(t, "Clouds", f.List[1].WeatherMain)
	assert.Equal(t, 28.7, f.List[0].Lat)
}

func TestOpenWeather_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewOpenWeatherClient("bad", srv.URL, srv.Client()).CurrentWeather(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrUpstream)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestOpenWeather_MissingKey(t *testing.T) {
	_, err := NewOpenWeatherClient("", "http://unused", nil).CurrentWeather(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestGoogleMaps_Directions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/directions/json", r.URL.Path)
		assert.Equal(t, "28.6,77.2", r.URL.Query().Get("origin"))
		assert.Equal(t, "true", r.URL.Query().Get("alternatives"))
		w.Write([]byte(`{
			"status": "OK",
			"routes": [
				{"summary": "NH48", "legs": [{"distance": {"text": "10 km", "value": 10000}, "duration": {"text": "15 mins", "value": 900}}],
				 "overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC_mqNvxq` + "`" + `@"}},
				{"summary": "NH44", "legs": [{"distance": {"text": "12 km", "value": 12000}, "duration": {"text": "12 mins", "value": 720}}],
				 "overview_polyline": {"points": ""}}
			]
		}`))
	}))
	defer srv.Close()

	c := NewGoogleMapsClient("k", srv.URL, srv.URL, srv.Client())
	routes, err := c.Directions(context.Background(), model.LatLng{Lat: 28.6, Lng: 77.2}, model.LatLng{Lat: 28.9, Lng: 77.5})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "NH48", routes[0].Summary)
	assert.Equal(t, 900, routes[0].DurationSeconds)
	assert.Equal(t, "15 mins", routes[0].DurationText)
	require.Len(t, routes[0].Path, 3)
	assert.InDelta(t, 38.5, routes[0].Path[0].Lat, 1e-6)
	assert.InDelta(t, -120.2, routes[0].Path[0].Lng, 1e-6)
	assert.Empty(t, routes[1].Path)
}

func TestGoogleMaps_DirectionsDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "REQUEST_DENIED", "error_message": "bad key", "routes": []}`))
	}))
	defer srv.Close()

	_, err := NewGoogleMapsClient("k", srv.URL, srv.URL, srv.Client()).
		Directions(context.Background(), model.LatLng{}, model.LatLng{Lat: 1, Lng: 1})
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "REQUEST_DENIED")
}

func TestGoogleMaps_Geocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("address") {
		case "NH48, India":
			w.Write([]byte(`{"status": "OK", "results": [{"geometry": {
				"viewport": {"northeast": {"lat": 28.9, "lng": 77.4}, "southwest": {"lat": 12.9, "lng": 72.8}}
			}}]}`))
		default:
			w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
		}
	}))
	defer srv.Close()

	c := NewGoogleMapsClient("k", srv.URL, srv.URL, srv.Client())
	b, err := c.Geocode(context.Background(), "NH48, India")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, model.LatLng{Lat: 12.9, Lng: 72.8}, b.Southwest)
	assert.Equal(t, model.LatLng{Lat: 28.9, Lng: 77.4}, b.Northeast)

	b, err = c.Geocode(context.Background(), "nowhere")
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestGoogleMaps_SnapToRoads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/snapToRoads", r.URL.Path)
		assert.Equal(t, "1,2|3,4", r.URL.Query().Get("path"))
		assert.Equal(t, "true", r.URL.Query().Get("interpolate"))
		w.Write([]byte(`{"snappedPoints": [{"location": {"latitude": 1.1, "longitude": 2.1}}]}`))
	}))
	defer srv.Close()

	c := NewGoogleMapsClient("k", srv.URL, srv.URL, srv.Client())
	pts, err := c.SnapToRoads(context.Background(), []model.LatLng{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}})
	require.NoError(t, err)
	assert.Equal(t, []model.LatLng{{Lat: 1.1, Lng: 2.1}}, pts)
}

func TestGoogleMaps_StreetViewURL(t *testing.T) {
	c := NewGoogleMapsClient("k", "https://maps.googleapis.com", "", nil)
	assert.Equal(t,
		"https://maps.googleapis.com/maps/api/streetview?size=640x640&location=19.08,72.88&fov=80&heading=70&pitch=0&key=k",
		c.StreetViewURL(model.LatLng{Lat: 19.08, Lng: 72.88}))
}

func fixedRand(v float64) *rand.Rand {
	return rand.New(constSource(v))
}

// constSource makes Float64 return roughly v every time
type constSource float64

func (s constSource) Int63() int64 { return int64(float64(s) * (1 << 63)) }
func (s constSource) Seed(int64)   {}

func TestSimulatedTraffic_Bands(t *testing.T) {
	monday8am := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	saturdayNoon := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	tuesday2pm := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		at       time.Time
		roll     float64
		level    string
		speedLo  float64
		speedHi  float64
		volumeLo float64
	}{
		{"rush hour heavy roll", monday8am, 0.9, model.CongestionSevere, 15, 40, 800},
		{"rush hour light roll", monday8am, 0.5, model.CongestionHigh, 15, 40, 800},
		{"weekend heavy roll", saturdayNoon, 0.9, model.CongestionMedium, 40, 70, 200},
		{"weekend light roll", saturdayNoon, 0.5, model.CongestionLow, 40, 70, 200},
		{"off peak heavy roll", tuesday2pm, 0.7, model.CongestionMedium, 30, 70, 400},
		{"off peak light roll", tuesday2pm, 0.3, model.CongestionLow, 30, 70, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			s := NewSimulatedTraffic(func() time.Time { return at }, fixedRand(tt.roll))
			d, err := s.TrafficAt(context.Background(), model.LatLng{Lat: 28.7, Lng: 77.1})
			require.NoError(t, err)
			assert.Equal(t, tt.level, d.CongestionLevel)
			assert.GreaterOrEqual(t, d.Speed, tt.speedLo)
			assert.LessOrEqual(t, d.Speed, tt.speedHi)
			assert.GreaterOrEqual(t, d.Volume, tt.volumeLo)
			assert.Equal(t, at.UnixMilli(), d.Timestamp)
		})
	}
}

func TestPavementClient_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "segment_0.jpg", files[0].Filename)
		f, _ := files[1].Open()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "two", string(data))
		w.Write([]byte(`{"predictions": ["good", "poor"]}`))
	}))
	defer srv.Close()

	c := NewPavementClient(srv.URL, srv.Client())
	out, err := c.Predict(context.Background(), []PavementImage{
		{Data: strings.NewReader("one")},
		{Name: "km15.jpg", Data: strings.NewReader("two")},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"predictions": ["good", "poor"]}`, string(out))
}
