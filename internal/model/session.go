package model

import "time"

// Session lifecycle events, named after the identity provider's auth events
const (
	SessionSignedIn       = "SIGNED_IN"
	SessionSignedOut      = "SIGNED_OUT"
	SessionTokenRefreshed = "TOKEN_REFRESHED"
)

// TokenPair is what the identity provider hands out on code exchange or refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Session is a verified identity together with its token pair
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expires_at"`
	Refreshed    bool      `json:"-"` // Tokens were rotated while resolving; cookies must be rewritten
}

// Viewer is the resolved per-request context handed to every protected page.
// Profile is nil when the identity has not been onboarded yet.
type Viewer struct {
	Session Session
	Profile *UserProfile
}

// Role returns the viewer's role, or "" when onboarding is pending
func (v Viewer) Role() string {
	if v.Profile == nil {
		return ""
	}
	return v.Profile.Role
}
