package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"highway_monitor/internal/middleware"
	"highway_monitor/internal/model"
	"highway_monitor/internal/realtime"
	"highway_monitor/internal/service"
	"highway_monitor/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// StreamMessage is one frame on the issue change stream
type StreamMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// IssueHandler handles highway issue requests
type IssueHandler struct {
	service service.IssueService
}

// NewIssueHandler creates a new IssueHandler
func NewIssueHandler(s service.IssueService) *IssueHandler {
	return &IssueHandler{service: s}
}

func (h *IssueHandler) ListIssues(c *gin.Context) {
	var filters model.IssueFilters
	if status := c.Query("status"); status != "" {
		if !model.IsValidStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid status %q", status)})
			return
		}
		filters.Status = &status
	}
	if c.Query("mine") == "true" {
		if session, ok := middleware.GetSession(c); ok {
			filters.UserID = &session.UserID
		}
	}

	issues, err := h.service.ListIssues(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err, "Failed to retrieve issues")
		return
	}
	c.JSON(http.StatusOK, issues)
}

func (h *IssueHandler) GetIssue(c *gin.Context) {
	issue, err := h.service.GetIssue(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve issue")
		return
	}
	c.JSON(http.StatusOK, issue)
}

// ReportIssue files a user's photo report. The photo goes in the "image" part.
func (h *IssueHandler) ReportIssue(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	var req model.ReportIssueRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image file is required: " + err.Error()})
		return
	}

	issue, err := h.service.ReportIssue(c.Request.Context(), session.UserID, req, file)
	if err != nil {
		log.Printf("Error creating issue report: %v", err)
		respondError(c, err, "Failed to report issue")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Issue reported successfully! Inspectors will be notified.",
		"issue":   issue,
	})
}

func (h *IssueHandler) PlacePin(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	var req model.CreatePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	issue, err := h.service.PlacePin(c.Request.Context(), session.UserID, req)
	if err != nil {
		log.Printf("Error placing inspection pin: %v", err)
		respondError(c, err, "Failed to place pin")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Pin placed successfully! Engineers will be notified.",
		"issue":   issue,
	})
}

func (h *IssueHandler) UpdateStatus(c *gin.Context) {
	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	issue, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err, "Failed to update issue status")
		return
	}
	c.JSON(http.StatusOK, issue)
}

// UploadFile stores a file under the viewer's own prefix. The optional "path"
// form field names the object; otherwise one is generated.
func (h *IssueHandler) UploadFile(c *gin.Context) {
	session, _ := middleware.GetSession(c)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required: " + err.Error()})
		return
	}

	name := c.PostForm("path")
	if name == "" {
		name = fmt.Sprintf("%d%s", time.Now().UnixMilli(), path.Ext(file.Filename))
	}
	objectPath, err := storage.CleanObjectPath(session.UserID + "/" + name)
	if err != nil || !strings.HasPrefix(objectPath, session.UserID+"/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": storage.ErrInvalidObjectPath.Error()})
		return
	}

	url, err := h.service.UploadFile(c.Request.Context(), file, objectPath)
	if err != nil {
		log.Printf("Error uploading file for %s: %v", session.UserID, err)
		respondError(c, err, "Failed to upload file")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url, "path": objectPath})
}

// streamFilter reads the subscription from the query, defaulting to the role's feed
func streamFilter(c *gin.Context, role string) (realtime.Filter, error) {
	event, expr := c.Query("event"), c.Query("filter")
	if event == "" && expr == "" {
		return service.IssueFeedFilter(role), nil
	}
	return realtime.ParseFilter(realtime.TableHighwayIssues, event, expr)
}

// Stream upgrades to a WebSocket and forwards matching issue changes until the
// client leaves or the viewer signs out.
func (h *IssueHandler) Stream(c *gin.Context) {
	viewer, ok := middleware.GetViewer(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Viewer not resolved"})
		return
	}
	filter, err := streamFilter(c, viewer.Role())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Error upgrading issue stream: %v", err)
		return
	}
	defer conn.Close()

	changes := h.service.Subscribe(filter)
	defer changes.Unsubscribe()
	sessionEvents := h.service.Subscribe(realtime.Filter{
		Table:  realtime.TableAuth,
		Event:  realtime.EventAll,
		Column: "user_id",
		Value:  viewer.Session.UserID,
	})
	defer sessionEvents.Unsubscribe()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		// Drain client frames so close and pong control messages are processed
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	write := func(msg StreamMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(msg)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes.C:
			if !ok {
				return
			}
			if err := write(StreamMessage{Event: "change", Data: change}); err != nil {
				return
			}
		case ev, ok := <-sessionEvents.C:
			if !ok {
				return
			}
			if ev.Event != model.SessionSignedOut {
				continue
			}
			_ = write(StreamMessage{Event: "signed_out"})
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"),
				time.Now().Add(streamWriteTimeout))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// RegisterIssueRoutes registers issue routes. authMW resolves the session and the viewer.
func (h *IssueHandler) RegisterIssueRoutes(rg *gin.RouterGroup, authMW []gin.HandlerFunc, reporterMW, inspectorMW, statusMW gin.HandlerFunc) {
	issues := rg.Group("/issues")
	issues.Use(authMW...)
	issues.Use(middleware.OnboardedMiddleware())
	{
		issues.GET("", h.ListIssues)
		issues.GET("/stream", h.Stream)
		issues.GET("/:id", h.GetIssue)
		issues.POST("/reports", reporterMW, h.ReportIssue)
		issues.POST("/pins", inspectorMW, h.PlacePin)
		issues.PATCH("/:id/status", statusMW, h.UpdateStatus)
	}

	uploads := rg.Group("/uploads")
	uploads.Use(authMW...)
	uploads.Use(middleware.OnboardedMiddleware())
	uploads.POST("", h.UploadFile)
}
