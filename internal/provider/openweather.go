package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"highway_monitor/internal/model"
)

// OpenWeatherClient reads current conditions and 5-day forecasts in metric units
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewOpenWeatherClient(apiKey, baseURL string, client *http.Client) *OpenWeatherClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenWeatherClient{apiKey: apiKey, baseURL: baseURL, http: client}
}

type owCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owObservation struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []owCondition `json:"weather"`
	Main    struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Rain *struct {
		OneHour   *float64 `json:"1h"`
		ThreeHour *float64 `json:"3h"`
	} `json:"rain"`
	Visibility int `json:"visibility"`
	Clouds     struct {
		All int `json:"all"`
	} `json:"clouds"`
	Dt int64 `json:"dt"`
}

func (o owObservation) toModel(lat, lon float64) model.WeatherData {
	w := model.WeatherData{
		Lat:        lat,
		Lon:        lon,
		Temp:       o.Main.Temp,
		FeelsLike:  o.Main.FeelsLike,
		Humidity:   o.Main.Humidity,
		Pressure:   o.Main.Pressure,
		WindSpeed:  o.Wind.Speed,
		WindDeg:    o.Wind.Deg,
		Visibility: o.Visibility,
		Clouds:     o.Clouds.All,
		Dt:         o.Dt,
	}
	if len(o.Weather) > 0 {
		w.WeatherMain = o.Weather[0].Main
		w.WeatherDescription = o.Weather[0].Description
		w.WeatherIcon = o.Weather[0].Icon
	}
	if o.Rain != nil {
		w.Rain1h = o.Rain.OneHour
		w.Rain3h = o.Rain.ThreeHour
	}
	return w
}

func (c *OpenWeatherClient) endpoint(path string, lat, lon float64) string {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	return c.baseURL + path + "?" + q.Encode()
}

// CurrentWeather returns the observation nearest to lat, lon
func (c *OpenWeatherClient) CurrentWeather(ctx context.Context, lat, lon float64) (*model.WeatherData, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather: API key not configured", ErrUpstream)
	}
	var obs owObservation
	if err := getJSON(ctx, c.http, "openweather", c.endpoint("/data/2.5/weather", lat, lon), &obs); err != nil {
		return nil, err
	}
	w := obs.toModel(obs.Coord.Lat, obs.Coord.Lon)
	return &w, nil
}

// Forecast returns the 3-hourly forecast for lat, lon
func (c *OpenWeatherClient) Forecast(ctx context.Context, lat, lon float64) (*model.WeatherForecast, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather: API key not configured", ErrUpstream)
	}
	var resp struct {
		List []owObservation    `json:"list"`
		City model.ForecastCity `json:"city"`
	}
	if err := getJSON(ctx, c.http, "openweather", c.endpoint("/data/2.5/forecast", lat, lon), &resp); err != nil {
		return nil, err
	}

	f := &model.WeatherForecast{City: resp.City, List: make([]model.WeatherData, 0, len(resp.List))}
	for _, item := range resp.List {
		f.List = append(f.List, item.toModel(resp.City.Coord.Lat, resp.City.Coord.Lon))
	}
	return f, nil
}
