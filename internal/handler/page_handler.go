package handler

import (
	"log"
	"net/http"

	"highway_monitor/internal/middleware"
	"highway_monitor/internal/model"
	"highway_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// FeedView tells the dashboard which realtime stream to open
type FeedView struct {
	Table  string `json:"table"`
	Event  string `json:"event"`
	Filter string `json:"filter,omitempty"`
}

// DashboardView is everything a role's dashboard page renders from
type DashboardView struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Features    []string `json:"features"`
	ClickAction string   `json:"click_action"`
	Feed        FeedView `json:"feed"`
}

// PageHandler routes browsers between onboarding and the role dashboards
type PageHandler struct {
	profiles service.ProfileService
}

// NewPageHandler creates a new PageHandler
func NewPageHandler(p service.ProfileService) *PageHandler {
	return &PageHandler{profiles: p}
}

func viewerOrRedirect(c *gin.Context) (model.Viewer, bool) {
	viewer, ok := middleware.GetViewer(c)
	if !ok {
		c.Redirect(http.StatusFound, service.AuthPath)
		return model.Viewer{}, false
	}
	return viewer, true
}

// Home sends the viewer to their dashboard, or to onboarding
func (h *PageHandler) Home(c *gin.Context) {
	viewer, ok := viewerOrRedirect(c)
	if !ok {
		return
	}
	d := service.RouteDashboard(viewer.Session, viewer.Profile, "")
	c.Redirect(http.StatusFound, d.Redirect)
}

func (h *PageHandler) Dashboard(c *gin.Context) {
	viewer, ok := viewerOrRedirect(c)
	if !ok {
		return
	}
	d := service.RouteDashboard(viewer.Session, viewer.Profile, c.Param("role"))
	if d.Redirect != "" {
		c.Redirect(http.StatusFound, d.Redirect)
		return
	}

	role := d.Viewer.Role()
	feed := service.IssueFeedFilter(role)
	view := DashboardView{
		UserID:      d.Viewer.Session.UserID,
		Email:       d.Viewer.Session.Email,
		Role:        role,
		Features:    service.DashboardFeatures(role),
		ClickAction: service.ClickActionFor(role),
		Feed:        FeedView{Table: feed.Table, Event: feed.Event},
	}
	if feed.Column != "" {
		view.Feed.Filter = feed.Column + "=eq." + feed.Value
	}
	c.JSON(http.StatusOK, view)
}

// Onboarding offers the role choice to viewers without one
func (h *PageHandler) Onboarding(c *gin.Context) {
	viewer, ok := viewerOrRedirect(c)
	if !ok {
		return
	}
	if role := viewer.Role(); role != "" {
		c.Redirect(http.StatusFound, model.DashboardPath(role))
		return
	}
	c.JSON(http.StatusOK, gin.H{"email": viewer.Session.Email, "roles": model.Roles})
}

func (h *PageHandler) CompleteOnboarding(c *gin.Context) {
	viewer, ok := viewerOrRedirect(c)
	if !ok {
		return
	}

	var req model.SetRoleRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	profile, err := h.profiles.SetRole(c.Request.Context(), viewer.Session.UserID, viewer.Session.Email, req.Role)
	if err != nil {
		log.Printf("Error saving role for %s: %v", viewer.Session.UserID, err)
		respondError(c, err, "Failed to save role")
		return
	}
	c.Redirect(http.StatusFound, model.DashboardPath(profile.Role))
}

// NotFound is the catch-all for unknown pages
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
}

// RegisterPageRoutes registers the browser pages. sessionMW and profileMW must run in page mode.
func (h *PageHandler) RegisterPageRoutes(r gin.IRouter, sessionMW, profileMW gin.HandlerFunc) {
	pages := r.Group("")
	pages.Use(sessionMW, profileMW)
	{
		pages.GET("/", h.Home)
		pages.GET("/dashboard/:role", h.Dashboard)
		pages.GET("/onboarding", h.Onboarding)
		pages.POST("/onboarding", h.CompleteOnboarding)
	}
}
