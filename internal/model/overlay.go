package model

// OverlayRequest selects the layers composed onto the map
type OverlayRequest struct {
	Status        string  // Issue status filter, empty for all
	Start         *LatLng // Route endpoints, both required for route layers
	End           *LatLng
	WeatherCenter *LatLng
	Traffic       bool
}
