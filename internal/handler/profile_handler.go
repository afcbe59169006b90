package handler

import (
	"net/http"

	"highway_monitor/internal/middleware"
	"highway_monitor/internal/model"
	"highway_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// ProfileHandler exposes the viewer's own profile
type ProfileHandler struct {
	profiles service.ProfileService
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(p service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: p}
}

func (h *ProfileHandler) GetMe(c *gin.Context) {
	viewer, ok := middleware.GetViewer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Viewer not resolved"})
		return
	}
	if viewer.Profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrProfileNotFound.Error(), "onboarding": service.OnboardingPath})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":      viewer.Session.UserID,
		"email":        viewer.Session.Email,
		"role":         viewer.Role(),
		"dashboard":    model.DashboardPath(viewer.Role()),
		"features":     service.DashboardFeatures(viewer.Role()),
		"click_action": service.ClickActionFor(viewer.Role()),
		"profile":      viewer.Profile,
	})
}

func (h *ProfileHandler) SetRole(c *gin.Context) {
	viewer, ok := middleware.GetViewer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Viewer not resolved"})
		return
	}

	var req model.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	profile, err := h.profiles.SetRole(c.Request.Context(), viewer.Session.UserID, viewer.Session.Email, req.Role)
	if err != nil {
		respondError(c, err, "Failed to update role")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// RegisterProfileRoutes registers profile routes. authMW resolves the session and the viewer.
func (h *ProfileHandler) RegisterProfileRoutes(rg *gin.RouterGroup, authMW ...gin.HandlerFunc) {
	me := rg.Group("/me")
	me.Use(authMW...)
	{
		me.GET("", h.GetMe)
		me.PUT("/role", h.SetRole)
	}
}
