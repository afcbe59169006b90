package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"highway_monitor/internal/model"
	"highway_monitor/internal/provider"
	"highway_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const maxPavementImages = 10

// RoadSnapper snaps a path onto the road network
type RoadSnapper interface {
	SnapToRoads(ctx context.Context, path []model.LatLng) ([]model.LatLng, error)
}

// StreetViewer builds street-level imagery URLs
type StreetViewer interface {
	StreetViewURL(loc model.LatLng) string
}

// PavementPredictor classifies road surface photos
type PavementPredictor interface {
	Predict(ctx context.Context, images []provider.PavementImage) (json.RawMessage, error)
}

// MapHandlerDeps groups the collaborators of MapHandler
type MapHandlerDeps struct {
	Overlay    service.OverlayService
	Routes     service.RouteService
	Weather    service.WeatherService
	Roads      RoadSnapper
	StreetView StreetViewer
	Pavement   PavementPredictor
}

// MapHandler serves the map layers and the provider-backed tools around them
type MapHandler struct {
	MapHandlerDeps
}

// NewMapHandler creates a new MapHandler
func NewMapHandler(deps MapHandlerDeps) *MapHandler {
	return &MapHandler{MapHandlerDeps: deps}
}

// queryLatLng reads "<prefix>lat" and "<prefix>lng". It returns nil when both are absent.
func queryLatLng(c *gin.Context, prefix string) (*model.LatLng, error) {
	latStr, lngStr := c.Query(prefix+"lat"), c.Query(prefix+"lng")
	if latStr == "" && lngStr == "" {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %slat: %q", prefix, latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %slng: %q", prefix, lngStr)
	}
	loc := &model.LatLng{Lat: lat, Lng: lng}
	if !loc.Valid() {
		return nil, service.ErrInvalidCoordinates
	}
	return loc, nil
}

func requiredLatLng(c *gin.Context) (model.LatLng, bool) {
	loc, err := queryLatLng(c, "")
	if err == nil && loc == nil {
		err = fmt.Errorf("lat and lng are required")
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return model.LatLng{}, false
	}
	return *loc, true
}

// GetOverlay composes the requested layers as GeoJSON
func (h *MapHandler) GetOverlay(c *gin.Context) {
	req := model.OverlayRequest{Status: c.Query("status"), Traffic: c.Query("traffic") == "true"}
	if req.Status != "" && !model.IsValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid status %q", req.Status)})
		return
	}

	var err error
	for _, p := range []struct {
		prefix string
		dst    **model.LatLng
	}{
		{"start_", &req.Start},
		{"end_", &req.End},
		{"weather_", &req.WeatherCenter},
	} {
		if *p.dst, err = queryLatLng(c, p.prefix); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if (req.Start == nil) != (req.End == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Both route endpoints are required"})
		return
	}

	fc, err := h.Overlay.Compose(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to compose overlay")
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (h *MapHandler) PlanRoute(c *gin.Context) {
	var req model.PlanRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	plan, err := h.Routes.PlanRoutes(c.Request.Context(), *req.Start, *req.End)
	if err != nil {
		respondError(c, err, "Failed to plan route")
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *MapHandler) SearchHighway(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	span, err := h.Routes.SearchHighway(c.Request.Context(), name)
	if err != nil {
		respondError(c, err, "Failed to search highway")
		return
	}
	c.JSON(http.StatusOK, span)
}

func (h *MapHandler) CurrentWeather(c *gin.Context) {
	loc, ok := requiredLatLng(c)
	if !ok {
		return
	}
	data, err := h.Weather.Current(c.Request.Context(), loc)
	if err != nil {
		respondError(c, err, "Failed to fetch weather")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"weather":  data,
		"color":    service.WeatherColor(data.WeatherMain),
		"severity": service.WeatherSeverity(data.WeatherMain, data.Rain1h),
	})
}

func (h *MapHandler) Forecast(c *gin.Context) {
	loc, ok := requiredLatLng(c)
	if !ok {
		return
	}
	forecast, err := h.Weather.Forecast(c.Request.Context(), loc)
	if err != nil {
		respondError(c, err, "Failed to fetch forecast")
		return
	}
	c.JSON(http.StatusOK, forecast)
}

func (h *MapHandler) SnapToRoads(c *gin.Context) {
	var req struct {
		Path []model.LatLng `json:"path" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	snapped, err := h.Roads.SnapToRoads(c.Request.Context(), req.Path)
	if err != nil {
		log.Printf("Error snapping path to roads: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to snap path to roads"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": snapped})
}

func (h *MapHandler) GetStreetView(c *gin.Context) {
	loc, ok := requiredLatLng(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.StreetView.StreetViewURL(loc)})
}

// PredictPavement forwards the uploaded "files" to the pavement model
func (h *MapHandler) PredictPavement(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 || len(headers) > maxPavementImages {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Between 1 and %d images are required", maxPavementImages)})
		return
	}

	images := make([]provider.PavementImage, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > service.MaxUploadSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": service.ErrFileSizeExceeded.Error()})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read " + fh.Filename})
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(f)
		images = append(images, provider.PavementImage{Name: fh.Filename, Data: f})
	}

	result, err := h.Pavement.Predict(c.Request.Context(), images)
	if err != nil {
		log.Printf("Error predicting pavement condition: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Pavement prediction failed"})
		return
	}
	c.Data(http.StatusOK, "application/json", result)
}

// RegisterMapRoutes registers map, routing, weather and pavement routes
func (h *MapHandler) RegisterMapRoutes(rg *gin.RouterGroup, authMW []gin.HandlerFunc, inspectorMW gin.HandlerFunc) {
	g := rg.Group("")
	g.Use(authMW...)
	{
		g.GET("/map/overlay", h.GetOverlay)
		g.POST("/routes/plan", h.PlanRoute)
		g.GET("/highways/search", h.SearchHighway)
		g.POST("/roads/snap", h.SnapToRoads)
		g.GET("/weather/current", h.CurrentWeather)
		g.GET("/weather/forecast", h.Forecast)
		g.GET("/streetview", h.GetStreetView)
		g.POST("/pavement/predict", inspectorMW, h.PredictPavement)
	}
}
