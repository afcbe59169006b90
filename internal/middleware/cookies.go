package middleware

import (
	"net/http"

	"highway_monitor/internal/model"

	"github.com/gin-gonic/gin"
)

const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"

	accessTokenMaxAge  = 3600   // 1 hour
	refreshTokenMaxAge = 604800 // 7 days
)

// SetSessionCookies installs the session's token pair in the browser
func SetSessionCookies(c *gin.Context, session *model.Session, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, session.AccessToken, accessTokenMaxAge, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, session.RefreshToken, refreshTokenMaxAge, "/", "", secure, true)
}

// ClearSessionCookies expires both session cookies
func ClearSessionCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", secure, true)
}
