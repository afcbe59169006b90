package utils

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims are the claims the identity provider puts into access tokens
type JWTClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"` // Provider audience role such as "authenticated", not the dashboard role
	jwt.RegisteredClaims
}

// UserID is the identity id carried in the subject claim
func (c *JWTClaims) UserID() string {
	return c.Subject
}

// JWTUtil provides JWT generation and validation. HS256 tokens are checked against
// the shared secret; asymmetric tokens require a JWKS keyfunc.
type JWTUtil struct {
	secretKey       string
	expirationHours int64
	jwks            keyfunc.Keyfunc
}

// NewJWTUtil creates a new JWTUtil
func NewJWTUtil(secretKey string, expirationHours int64) *JWTUtil {
	return &JWTUtil{secretKey: secretKey, expirationHours: expirationHours}
}

// WithJWKS enables verification of asymmetric tokens through kf
func (ju *JWTUtil) WithJWKS(kf keyfunc.Keyfunc) *JWTUtil {
	ju.jwks = kf
	return ju
}

// NewJWKSKeyfunc builds a keyfunc backed by a JWKS endpoint that refreshes in the background
func NewJWKSKeyfunc(ctx context.Context, jwksURL string, refresh time.Duration) (keyfunc.Keyfunc, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		Ctx:                       ctx,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(_ context.Context, err error) {
			slog.Error("JWKS refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Ctx: ctx, Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("failed to create keyfunc: %w", err)
	}
	return k, nil
}

// GenerateToken signs an HS256 access token for userID
func (ju *JWTUtil) GenerateToken(userID, email string) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		Email: email,
		Role:  "authenticated",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour * time.Duration(ju.expirationHours))),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(ju.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken validates the JWT token
func (ju *JWTUtil) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, ju.keyFor)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("invalid token: missing subject")
	}
	return claims, nil
}

func (ju *JWTUtil) keyFor(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); ok {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() || ju.secretKey == "" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(ju.secretKey), nil
	}
	if ju.jwks == nil {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return ju.jwks.Keyfunc(token)
}
