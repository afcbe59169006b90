package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"highway_monitor/internal/identity"
	"highway_monitor/internal/middleware"
	"highway_monitor/internal/model"
	"highway_monitor/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSessions struct {
	session   *model.Session
	err       error
	signedOut []*model.Session
}

func (s *stubSessions) ResolveFragment(_ context.Context, fragment string) (*model.Session, error) {
	if !strings.Contains(fragment, "access_token") || !strings.Contains(fragment, "refresh_token") {
		return nil, service.ErrMissingTokens
	}
	return s.session, s.err
}

func (s *stubSessions) ResolveTokens(_ context.Context, accessToken, refreshToken string) (*model.Session, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, service.ErrUnauthenticated
	}
	return s.session, s.err
}

func (s *stubSessions) ExchangeCode(context.Context, string) (*model.Session, error) {
	return s.session, s.err
}

func (s *stubSessions) SignOut(_ context.Context, session *model.Session) {
	s.signedOut = append(s.signedOut, session)
}

type stubAuthorize struct{}

func (stubAuthorize) AuthorizeURL(provider, redirectTo string) string {
	return "https://idp.test/auth/v1/authorize?provider=" + provider + "&redirect_to=" + url.QueryEscape(redirectTo)
}

func newAuthRouter(sessions *stubSessions) *gin.Engine {
	r := gin.New()
	NewAuthHandler(sessions, stubAuthorize{}, "http://app.test/auth/callback", true).RegisterAuthRoutes(r)
	return r
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestAuthCallback_MissingCode(t *testing.T) {
	rec := httptest.NewRecorder()
	newAuthRouter(&stubSessions{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing code parameter"}`, rec.Body.String())
}

func TestAuthCallback_ExchangeRejected(t *testing.T) {
	apiErr := &identity.APIError{StatusCode: 400, Details: map[string]any{"error": "invalid_grant"}}
	sessions := &stubSessions{err: fmt.Errorf("%w: %w", service.ErrTokenExchange, apiErr)}

	rec := httptest.NewRecorder()
	newAuthRouter(sessions).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=stale", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to exchange code for session","details":{"error":"invalid_grant"}}`, rec.Body.String())
	assert.Nil(t, responseCookie(rec, middleware.AccessTokenCookie))
}

func TestAuthCallback_ProviderUnreachable(t *testing.T) {
	sessions := &stubSessions{err: fmt.Errorf("%w: %w", service.ErrProviderFailure, identity.ErrTransport)}

	rec := httptest.NewRecorder()
	newAuthRouter(sessions).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestAuthCallback_Success(t *testing.T) {
	sessions := &stubSessions{session: &model.Session{UserID: "user-1", AccessToken: "a1", RefreshToken: "r1"}}

	rec := httptest.NewRecorder()
	newAuthRouter(sessions).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	access := responseCookie(rec, middleware.AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, "a1", access.Value)
	assert.Equal(t, 3600, access.MaxAge)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)

	refresh := responseCookie(rec, middleware.RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, "r1", refresh.Value)
	assert.Equal(t, 604800, refresh.MaxAge)
}

func postForm(r http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestInstallSession(t *testing.T) {
	sessions := &stubSessions{session: &model.Session{UserID: "user-1", AccessToken: "a1", RefreshToken: "r1"}}
	r := newAuthRouter(sessions)

	rec := postForm(r, "/auth/session", url.Values{"fragment": {"#access_token=a1&refresh_token=r1"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.NotNil(t, responseCookie(rec, middleware.AccessTokenCookie))

	rec = postForm(r, "/auth/session", url.Values{"fragment": {"#access_token=a1"}})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth?error=missing_tokens", rec.Header().Get("Location"))

	sessions.err = service.ErrInvalidToken
	rec = postForm(r, "/auth/session", url.Values{"fragment": {"#access_token=bad&refresh_token=r1"}})
	assert.Equal(t, "/auth?error=invalid_token", rec.Header().Get("Location"))
}

func TestSignOut(t *testing.T) {
	sessions := &stubSessions{session: &model.Session{UserID: "user-1", AccessToken: "a1"}}
	r := newAuthRouter(sessions)

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: "a1"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth", rec.Header().Get("Location"))
	assert.Len(t, sessions.signedOut, 1)
	cleared := responseCookie(rec, middleware.AccessTokenCookie)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	// Without cookies there is nothing to revoke but the redirect still happens
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))
	assert.Equal(t, "/auth", rec.Header().Get("Location"))
	assert.Len(t, sessions.signedOut, 1)
}

func TestLoginAndAuthPage(t *testing.T) {
	r := newAuthRouter(&stubSessions{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "provider=google")
	assert.Contains(t, rec.Header().Get("Location"), url.QueryEscape("http://app.test/auth/callback"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth?error=missing_tokens", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"missing_tokens"`)
}
