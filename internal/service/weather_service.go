package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"highway_monitor/internal/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultGridRadiusKm  = 50.0
	DefaultGridSpacingKm = 25.0

	// Grids not requested again within DefaultCenterTTL drop out of the refresh set
	DefaultMaxCenters = 64
	DefaultCenterTTL  = 20 * time.Minute

	kmPerDegree        = 111.0
	maxParallelFetches = 8
)

// WeatherProvider fetches observations from the weather API
type WeatherProvider interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (*model.WeatherData, error)
	Forecast(ctx context.Context, lat, lon float64) (*model.WeatherForecast, error)
}

// WeatherService serves cached weather observations and keeps registered grids fresh
type WeatherService interface {
	Current(ctx context.Context, loc model.LatLng) (*model.WeatherData, error)
	Forecast(ctx context.Context, loc model.LatLng) (*model.WeatherForecast, error)
	// Grid returns the observations around center and registers it for periodic refresh
	Grid(ctx context.Context, center model.LatLng) []model.WeatherData
	Refresh(ctx context.Context)
	Run(ctx context.Context, interval time.Duration)
}

type weatherService struct {
	provider WeatherProvider
	cache    *expirable.LRU[string, *model.WeatherData]
	centers  *expirable.LRU[string, model.LatLng]
}

// WeatherOption tunes a WeatherService
type WeatherOption func(*weatherOptions)

type weatherOptions struct {
	maxCenters int
	centerTTL  time.Duration
}

// WithRefreshCenters bounds the grids kept fresh by Refresh to the max most
// recently requested ones, each dropped ttl after its last Grid call.
func WithRefreshCenters(max int, ttl time.Duration) WeatherOption {
	return func(o *weatherOptions) {
		if max > 0 {
			o.maxCenters = max
		}
		if ttl > 0 {
			o.centerTTL = ttl
		}
	}
}

// NewWeatherService creates a WeatherService caching up to cacheSize observations for ttl
func NewWeatherService(provider WeatherProvider, cacheSize int, ttl time.Duration, opts ...WeatherOption) WeatherService {
	o := weatherOptions{maxCenters: DefaultMaxCenters, centerTTL: DefaultCenterTTL}
	for _, opt := range opts {
		opt(&o)
	}
	return &weatherService{
		provider: provider,
		cache:    expirable.NewLRU[string, *model.WeatherData](cacheSize, nil, ttl),
		centers:  expirable.NewLRU[string, model.LatLng](o.maxCenters, nil, o.centerTTL),
	}
}

func cacheKey(loc model.LatLng) string {
	return fmt.Sprintf("%.3f,%.3f", loc.Lat, loc.Lng)
}

func (s *weatherService) Current(ctx context.Context, loc model.LatLng) (*model.WeatherData, error) {
	if !loc.Valid() {
		return nil, ErrInvalidCoordinates
	}
	if data, ok := s.cache.Get(cacheKey(loc)); ok {
		weatherCacheHits.Inc()
		return data, nil
	}
	weatherCacheMisses.Inc()
	return s.fetch(ctx, loc)
}

func (s *weatherService) fetch(ctx context.Context, loc model.LatLng) (*model.WeatherData, error) {
	data, err := s.provider.CurrentWeather(ctx, loc.Lat, loc.Lng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	s.cache.Add(cacheKey(loc), data)
	return data, nil
}

func (s *weatherService) Forecast(ctx context.Context, loc model.LatLng) (*model.WeatherForecast, error) {
	if !loc.Valid() {
		return nil, ErrInvalidCoordinates
	}
	forecast, err := s.provider.Forecast(ctx, loc.Lat, loc.Lng)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return forecast, nil
}

func (s *weatherService) Grid(ctx context.Context, center model.LatLng) []model.WeatherData {
	s.centers.Add(cacheKey(center), center)

	return s.collect(ctx, WeatherGrid(center, DefaultGridRadiusKm, DefaultGridSpacingKm), s.Current)
}

// collect fetches every point concurrently, keeping grid order and dropping failed points
func (s *weatherService) collect(ctx context.Context, points []model.LatLng, get func(context.Context, model.LatLng) (*model.WeatherData, error)) []model.WeatherData {
	results := make([]*model.WeatherData, len(points))
	sem := make(chan struct{}, maxParallelFetches)
	var wg sync.WaitGroup
	for i, p := range points {
		wg.Add(1)
		go func(i int, p model.LatLng) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := get(ctx, p)
			if err != nil {
				log.Printf("Error fetching weather at %.4f,%.4f: %v", p.Lat, p.Lng, err)
				return
			}
			results[i] = data
		}(i, p)
	}
	wg.Wait()

	observations := make([]model.WeatherData, 0, len(points))
	for _, r := range results {
		if r != nil {
			observations = append(observations, *r)
		}
	}
	return observations
}

// Refresh re-fetches the grid of every live registered center, bypassing the cache
func (s *weatherService) Refresh(ctx context.Context) {
	centers := s.centers.Values()
	if len(centers) == 0 {
		return
	}

	start := time.Now()
	for _, c := range centers {
		if ctx.Err() != nil {
			return
		}
		s.collect(ctx, WeatherGrid(c, DefaultGridRadiusKm, DefaultGridSpacingKm), s.fetch)
	}
	weatherRefreshDuration.Observe(time.Since(start).Seconds())
	log.Printf("Refreshed weather for %d centers in %v", len(centers), time.Since(start))
}

// Run refreshes registered grids every interval until ctx is done
func (s *weatherService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// WeatherGrid lays out sample points every spacingKm around center, keeping those
// within radiusKm. Longitude steps widen with latitude.
func WeatherGrid(center model.LatLng, radiusKm, spacingKm float64) []model.LatLng {
	if spacingKm <= 0 || radiusKm < 0 {
		return []model.LatLng{center}
	}
	steps := int(math.Ceil(radiusKm / spacingKm))
	lngScale := kmPerDegree * math.Cos(center.Lat*math.Pi/180)

	var points []model.LatLng
	for i := -steps; i <= steps; i++ {
		for j := -steps; j <= steps; j++ {
			if math.Sqrt(float64(i*i+j*j))*spacingKm > radiusKm {
				continue
			}
			p := model.LatLng{Lat: center.Lat + float64(i)*spacingKm/kmPerDegree, Lng: center.Lng}
			if lngScale > 0 {
				p.Lng += float64(j) * spacingKm / lngScale
			}
			points = append(points, p)
		}
	}
	return points
}

// WeatherColor maps an observation's main condition to its marker color
func WeatherColor(weatherMain string) string {
	switch strings.ToLower(weatherMain) {
	case "rain", "drizzle":
		return "#3b82f6"
	case "snow":
		return "#e2e8f0"
	case "thunderstorm":
		return "#7c3aed"
	case "clear":
		return "#fbbf24"
	case "clouds":
		return "#94a3b8"
	case "fog", "mist":
		return "#cbd5e1"
	}
	return colorUnknown
}

// WeatherSeverity rates how much an observation threatens road conditions.
// rainMM is the last hour's rainfall, nil when not reported.
func WeatherSeverity(weatherMain string, rainMM *float64) string {
	switch strings.ToLower(weatherMain) {
	case "thunderstorm":
		return model.SeverityCritical
	case "rain":
		if rainMM != nil && *rainMM > 10 {
			return model.SeverityHigh
		}
		return model.SeverityMedium
	case "snow":
		return model.SeverityHigh
	}
	return model.SeverityLow
}
