package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"highway_monitor/internal/model"
	"highway_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	SessionKey = "session"
	ViewerKey  = "viewer"
)

// Mode picks how an unauthenticated request is turned away
type Mode int

const (
	// ModeAPI answers with a JSON error
	ModeAPI Mode = iota
	// ModePage redirects the browser to the sign-in page
	ModePage
)

func bearerToken(c *gin.Context) string {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

// SessionMiddleware resolves the session from the cookie pair, or from a bearer
// token for API clients. Rotated tokens are written back as cookies.
func SessionMiddleware(sessions service.SessionService, secureCookies bool, mode Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken, _ := c.Cookie(AccessTokenCookie)
		refreshToken, _ := c.Cookie(RefreshTokenCookie)
		if accessToken == "" && mode == ModeAPI {
			accessToken = bearerToken(c)
		}

		session, err := sessions.ResolveTokens(c.Request.Context(), accessToken, refreshToken)
		if err != nil {
			if !errors.Is(err, service.ErrUnauthenticated) {
				log.Printf("Rejected session on %s: %v", c.Request.URL.Path, err)
			}
			// Only a rejected token clears the cookie pair
			if errors.Is(err, service.ErrInvalidToken) {
				ClearSessionCookies(c, secureCookies)
			}
			abortUnauthenticated(c, mode, err)
			return
		}
		if session.Refreshed {
			SetSessionCookies(c, session, secureCookies)
		}

		c.Set(SessionKey, session)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context, mode Mode, err error) {
	if mode == ModePage {
		c.Redirect(http.StatusFound, service.AuthPath)
		c.Abort()
		return
	}
	if errors.Is(err, service.ErrProviderFailure) {
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Identity provider unavailable"})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
}

// ProfileMiddleware resolves the viewer's profile once per request. An identity
// without a profile gets a Viewer with a nil Profile.
func ProfileMiddleware(profiles service.ProfileService, mode Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := GetSession(c)
		if !ok {
			abortUnauthenticated(c, mode, service.ErrUnauthenticated)
			return
		}

		profile, err := profiles.GetProfile(c.Request.Context(), session.UserID, session.Email)
		if err != nil && !errors.Is(err, service.ErrProfileNotFound) {
			log.Printf("Error loading profile for %s: %v", session.UserID, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
			return
		}

		c.Set(ViewerKey, model.Viewer{Session: *session, Profile: profile})
		c.Next()
	}
}

// GetSession returns the session resolved by SessionMiddleware
func GetSession(c *gin.Context) (*model.Session, bool) {
	v, exists := c.Get(SessionKey)
	if !exists {
		return nil, false
	}
	session, ok := v.(*model.Session)
	return session, ok
}

// GetViewer returns the viewer resolved by ProfileMiddleware
func GetViewer(c *gin.Context) (model.Viewer, bool) {
	v, exists := c.Get(ViewerKey)
	if !exists {
		return model.Viewer{}, false
	}
	viewer, ok := v.(model.Viewer)
	return viewer, ok
}
