package model

// Route is one driving path returned by the directions provider
type Route struct {
	Summary         string   `json:"summary"`
	DistanceMeters  int      `json:"distance_m"`
	DurationSeconds int      `json:"duration_s"`
	DistanceText    string   `json:"distance_text"`
	DurationText    string   `json:"duration_text"`
	Path            []LatLng `json:"path"`
}

// RouteAlternative describes a non-fastest route relative to the fastest one
type RouteAlternative struct {
	Index  int    `json:"index"` // Position in the provider's route list
	Label  string `json:"label"`
	Slower bool   `json:"slower"`
	Longer bool   `json:"longer"`
}

// RouteAnalysis is the textual comparison shown next to the planned routes
type RouteAnalysis struct {
	FastestIndex int                `json:"fastest_index"`
	Fastest      string             `json:"fastest"`
	Alternatives []RouteAlternative `json:"alternatives"`
}

type PlanRouteRequest struct {
	Start *LatLng `json:"start" binding:"required"`
	End   *LatLng `json:"end" binding:"required"`
}

type RoutePlan struct {
	Routes   []Route       `json:"routes"`
	Analysis RouteAnalysis `json:"analysis"`
}

// Bounds is a geocoded rectangle
type Bounds struct {
	Southwest LatLng `json:"southwest"`
	Northeast LatLng `json:"northeast"`
}

// HighwaySpan is the start/end pair derived from a highway name search
type HighwaySpan struct {
	Query string `json:"query"`
	Start LatLng `json:"start"`
	End   LatLng `json:"end"`
}
