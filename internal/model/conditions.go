package model

const (
	CongestionLow    = "low"
	CongestionMedium = "medium"
	CongestionHigh   = "high"
	CongestionSevere = "severe"
)

// WeatherData is a single observation at a point, in metric units
type WeatherData struct {
	Lat                float64  `json:"lat"`
	Lon                float64  `json:"lon"`
	Temp               float64  `json:"temp"`
	FeelsLike          float64  `json:"feels_like"`
	Humidity           int      `json:"humidity"`
	Pressure           int      `json:"pressure"`
	WindSpeed          float64  `json:"wind_speed"`
	WindDeg            int      `json:"wind_deg"`
	WeatherMain        string   `json:"weather_main"`
	WeatherDescription string   `json:"weather_description"`
	WeatherIcon        string   `json:"weather_icon"`
	Rain1h             *float64 `json:"rain_1h,omitempty"`
	Rain3h             *float64 `json:"rain_3h,omitempty"`
	Visibility         int      `json:"visibility"`
	Clouds             int      `json:"clouds"`
	Dt                 int64    `json:"dt"`
}

type ForecastCity struct {
	Name  string `json:"name"`
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
}

type WeatherForecast struct {
	List []WeatherData `json:"list"`
	City ForecastCity  `json:"city"`
}

// TrafficData is the congestion estimate at a point
type TrafficData struct {
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	CongestionLevel string  `json:"congestion_level"`
	Speed           float64 `json:"speed"`  // km/h
	Volume          float64 `json:"volume"` // vehicles per hour
	Delay           float64 `json:"delay"`  // minutes
	RoadType        string  `json:"road_type"`
	Timestamp       int64   `json:"timestamp"` // unix millis
}

// TrafficSegment is the congestion between two consecutive route points
type TrafficSegment struct {
	Start       LatLng      `json:"start"`
	End         LatLng      `json:"end"`
	TrafficData TrafficData `json:"traffic_data"`
}
