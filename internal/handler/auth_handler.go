package handler

import (
	"errors"
	"log"
	"net/http"

	"highway_monitor/internal/identity"
	"highway_monitor/internal/middleware"
	"highway_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// DefaultOAuthProvider is the only sign-in method offered on the auth page
const DefaultOAuthProvider = "google"

// AuthorizeURLBuilder starts an OAuth sign-in at the identity provider
type AuthorizeURLBuilder interface {
	AuthorizeURL(provider, redirectTo string) string
}

// AuthHandler handles sign-in, the OAuth callback and sign-out
type AuthHandler struct {
	sessions      service.SessionService
	authorize     AuthorizeURLBuilder
	redirectURI   string
	secureCookies bool
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(s service.SessionService, authorize AuthorizeURLBuilder, redirectURI string, secureCookies bool) *AuthHandler {
	return &AuthHandler{sessions: s, authorize: authorize, redirectURI: redirectURI, secureCookies: secureCookies}
}

// AuthPage describes the sign-in entry point. error carries the reason of a failed attempt.
func (h *AuthHandler) AuthPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": []string{DefaultOAuthProvider},
		"login_url": "/login",
		"error":     c.Query("error"),
	})
}

// Login sends the browser to the identity provider
func (h *AuthHandler) Login(c *gin.Context) {
	provider := c.DefaultQuery("provider", DefaultOAuthProvider)
	c.Redirect(http.StatusFound, h.authorize.AuthorizeURL(provider, h.redirectURI))
}

// Callback exchanges the OAuth code for a session
func (h *AuthHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing code parameter"})
		return
	}

	session, err := h.sessions.ExchangeCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrTokenExchange) {
			var details any = err.Error()
			var apiErr *identity.APIError
			if errors.As(err, &apiErr) && apiErr.Details != nil {
				details = apiErr.Details
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Failed to exchange code for session", "details": details})
			return
		}
		log.Printf("Error exchanging auth code: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	middleware.SetSessionCookies(c, session, h.secureCookies)
	c.Redirect(http.StatusFound, "/")
}

// InstallSession accepts the tokens the provider put in the redirect URL fragment,
// posted back by the auth page.
func (h *AuthHandler) InstallSession(c *gin.Context) {
	var req struct {
		Fragment string `json:"fragment" form:"fragment"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.Redirect(http.StatusFound, service.AuthPath+"?error=missing_tokens")
		return
	}

	session, err := h.sessions.ResolveFragment(c.Request.Context(), req.Fragment)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, service.ErrMissingTokens) {
			reason = "missing_tokens"
		}
		log.Printf("Rejected session fragment: %v", err)
		c.Redirect(http.StatusFound, service.AuthPath+"?error="+reason)
		return
	}

	middleware.SetSessionCookies(c, session, h.secureCookies)
	c.Redirect(http.StatusFound, "/")
}

// SignOut revokes the session when there is one and always clears the cookies
func (h *AuthHandler) SignOut(c *gin.Context) {
	accessToken, _ := c.Cookie(middleware.AccessTokenCookie)
	refreshToken, _ := c.Cookie(middleware.RefreshTokenCookie)
	if session, err := h.sessions.ResolveTokens(c.Request.Context(), accessToken, refreshToken); err == nil {
		h.sessions.SignOut(c.Request.Context(), session)
	}

	middleware.ClearSessionCookies(c, h.secureCookies)
	c.Redirect(http.StatusFound, service.AuthPath)
}

// RegisterAuthRoutes registers auth routes
func (h *AuthHandler) RegisterAuthRoutes(r gin.IRouter) {
	r.GET("/login", h.Login)
	authGroup := r.Group("/auth")
	{
		authGroup.GET("", h.AuthPage)
		authGroup.GET("/callback", h.Callback)
		authGroup.POST("/session", h.InstallSession)
		authGroup.POST("/signout", h.SignOut)
	}
}
