package provider

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"highway_monitor/internal/model"
)

// SimulatedTraffic estimates congestion from the time of day. There is no live
// traffic feed, so speeds and volumes are drawn from per-period ranges.
type SimulatedTraffic struct {
	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSimulatedTraffic uses the wall clock and a time-seeded source when now or rnd are nil
func NewSimulatedTraffic(now func() time.Time, rnd *rand.Rand) *SimulatedTraffic {
	if now == nil {
		now = time.Now
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &SimulatedTraffic{now: now, rnd: rnd}
}

type trafficBand struct {
	speedMin, speedMax   float64
	volumeMin, volumeMax float64
	delayMin, delayMax   float64
}

var (
	rushHourBand = trafficBand{15, 40, 800, 1200, 5, 20}
	weekendBand  = trafficBand{40, 70, 200, 500, 0, 5}
	offPeakBand  = trafficBand{30, 70, 400, 800, 0, 8}
)

func isRushHour(t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	h := t.Hour()
	return (h >= 7 && h <= 9) || (h >= 17 && h <= 19)
}

// TrafficAt estimates traffic at loc for the current time
func (s *SimulatedTraffic) TrafficAt(_ context.Context, loc model.LatLng) (model.TrafficData, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var level string
	var band trafficBand
	roll := s.rnd.Float64()
	switch {
	case isRushHour(now):
		band = rushHourBand
		level = model.CongestionHigh
		if roll > 0.7 {
			level = model.CongestionSevere
		}
	case now.Weekday() == time.Saturday || now.Weekday() == time.Sunday:
		band = weekendBand
		level = model.CongestionLow
		if roll > 0.8 {
			level = model.CongestionMedium
		}
	default:
		band = offPeakBand
		level = model.CongestionLow
		if roll > 0.6 {
			level = model.CongestionMedium
		}
	}

	between := func(lo, hi float64) float64 { return lo + s.rnd.Float64()*(hi-lo) }
	return model.TrafficData{
		Lat:             loc.Lat,
		Lon:             loc.Lng,
		CongestionLevel: level,
		Speed:           between(band.speedMin, band.speedMax),
		Volume:          between(band.volumeMin, band.volumeMax),
		Delay:           between(band.delayMin, band.delayMax),
		RoadType:        "highway",
		Timestamp:       now.UnixMilli(),
	}, nil
}
