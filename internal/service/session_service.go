package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"highway_monitor/internal/identity"
	"highway_monitor/internal/model"
	"highway_monitor/internal/realtime"
	"highway_monitor/internal/utils"

	"github.com/golang-jwt/jwt/v5"
)

// SessionProvider is the identity provider's token API
type SessionProvider interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*model.TokenPair, error)
	RefreshSession(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	SignOut(ctx context.Context, accessToken string) error
}

// TokenVerifier checks access token signatures and expiry
type TokenVerifier interface {
	ValidateToken(token string) (*utils.JWTClaims, error)
}

// ChangePublisher fans a change out to realtime subscribers
type ChangePublisher interface {
	Publish(ctx context.Context, c realtime.Change) error
}

// SessionService turns the various forms of credentials into a verified Session
type SessionService interface {
	// ResolveFragment installs the tokens carried in a redirect URL fragment
	ResolveFragment(ctx context.Context, fragment string) (*model.Session, error)
	// ResolveTokens verifies an access token, rotating it through the refresh token once expired
	ResolveTokens(ctx context.Context, accessToken, refreshToken string) (*model.Session, error)
	// ExchangeCode trades an OAuth authorization code for a session
	ExchangeCode(ctx context.Context, code string) (*model.Session, error)
	SignOut(ctx context.Context, session *model.Session)
}

type sessionService struct {
	provider    SessionProvider
	verifier    TokenVerifier
	events      ChangePublisher
	redirectURI string
}

// NewSessionService creates a new SessionService
func NewSessionService(provider SessionProvider, verifier TokenVerifier, events ChangePublisher, redirectURI string) SessionService {
	return &sessionService{provider: provider, verifier: verifier, events: events, redirectURI: redirectURI}
}

func (s *sessionService) sessionFromTokens(accessToken, refreshToken string) (*model.Session, error) {
	claims, err := s.verifier.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	session := &model.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       claims.UserID(),
		Email:        claims.Email,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

func (s *sessionService) ResolveFragment(ctx context.Context, fragment string) (*model.Session, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		return nil, ErrMissingTokens
	}
	accessToken, refreshToken := values.Get("access_token"), values.Get("refresh_token")
	if accessToken == "" || refreshToken == "" {
		return nil, ErrMissingTokens
	}

	session, err := s.sessionFromTokens(accessToken, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	s.emit(ctx, model.SessionSignedIn, session)
	return session, nil
}

func (s *sessionService) ResolveTokens(ctx context.Context, accessToken, refreshToken string) (*model.Session, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, ErrUnauthenticated
	}

	if accessToken != "" {
		session, err := s.sessionFromTokens(accessToken, refreshToken)
		if err == nil {
			return session, nil
		}
		if refreshToken == "" || !errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
	}

	pair, err := s.provider.RefreshSession(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrTransport) {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
		}
		return nil, fmt.Errorf("%w: refresh rejected: %v", ErrInvalidToken, err)
	}
	session, err := s.sessionFromTokens(pair.AccessToken, pair.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: refreshed token rejected: %v", ErrInvalidToken, err)
	}
	session.Refreshed = true
	s.emit(ctx, model.SessionTokenRefreshed, session)
	return session, nil
}

func (s *sessionService) ExchangeCode(ctx context.Context, code string) (*model.Session, error) {
	if code == "" {
		return nil, ErrMissingCode
	}

	flow := NewAuthFlow()
	if err := flow.Advance(AuthExchanging); err != nil {
		return nil, err
	}

	pair, err := s.provider.ExchangeCode(ctx, code, s.redirectURI)
	if err != nil {
		flow.Fail()
		log.Printf("Sign-in failed after %v: %v", flow.History(), err)
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	session, err := s.sessionFromTokens(pair.AccessToken, pair.RefreshToken)
	if err != nil {
		flow.Fail()
		log.Printf("Sign-in failed after %v: %v", flow.History(), err)
		return nil, fmt.Errorf("%w: %w", ErrTokenExchange, err)
	}
	if err := flow.Advance(AuthAuthenticated); err != nil {
		return nil, err
	}

	s.emit(ctx, model.SessionSignedIn, session)
	return session, nil
}

func (s *sessionService) SignOut(ctx context.Context, session *model.Session) {
	if session == nil {
		return
	}
	if err := s.provider.SignOut(ctx, session.AccessToken); err != nil {
		log.Printf("Error revoking session for user %s: %v", session.UserID, err)
	}
	s.emit(ctx, model.SessionSignedOut, session)
}

func (s *sessionService) emit(ctx context.Context, event string, session *model.Session) {
	if s.events == nil {
		return
	}
	c, err := realtime.NewChange(realtime.TableAuth, event, map[string]any{
		"user_id": session.UserID,
		"email":   session.Email,
	}, nil)
	if err == nil {
		err = s.events.Publish(ctx, c)
	}
	if err != nil {
		log.Printf("Error publishing %s event for user %s: %v", event, session.UserID, err)
	}
}

// AuthState is a stage of a single sign-in attempt
type AuthState string

const (
	AuthUnauthenticated AuthState = "unauthenticated"
	AuthExchanging      AuthState = "exchanging"
	AuthAuthenticated   AuthState = "authenticated"
	AuthFailed          AuthState = "failed"
)

var authTransitions = map[AuthState][]AuthState{
	AuthUnauthenticated: {AuthExchanging},
	AuthExchanging:      {AuthAuthenticated, AuthFailed},
	AuthAuthenticated:   {AuthUnauthenticated}, // sign-out
	AuthFailed:          {AuthUnauthenticated}, // retry from the auth page
}

// AuthFlow tracks one sign-in attempt. Transitions outside authTransitions are rejected.
type AuthFlow struct {
	mu      sync.Mutex
	state   AuthState
	history []AuthState
}

func NewAuthFlow() *AuthFlow {
	return &AuthFlow{state: AuthUnauthenticated, history: []AuthState{AuthUnauthenticated}}
}

func (f *AuthFlow) State() AuthState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// History lists every state the flow has been in, oldest first
func (f *AuthFlow) History() []AuthState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]AuthState(nil), f.history...)
}

func (f *AuthFlow) Advance(to AuthState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, allowed := range authTransitions[f.state] {
		if allowed == to {
			f.state = to
			f.history = append(f.history, to)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalAuthState, f.state, to)
}

// Fail records a failed attempt and returns the flow to AuthUnauthenticated so
// the viewer can start over from the auth page.
func (f *AuthFlow) Fail() {
	if err := f.Advance(AuthFailed); err != nil {
		return
	}
	_ = f.Advance(AuthUnauthenticated)
}
