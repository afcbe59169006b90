package service

import "errors"

var (
	ErrUnauthenticated  = errors.New("no active session")
	ErrMissingTokens    = errors.New("missing access or refresh token")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrMissingCode      = errors.New("missing code parameter")
	ErrTokenExchange    = errors.New("failed to exchange code for session")
	ErrIllegalAuthState = errors.New("illegal auth state transition")

	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidRole     = errors.New("invalid role")
	ErrForbidden       = errors.New("role not allowed")

	ErrIssueNotFound      = errors.New("issue not found")
	ErrInvalidTransition  = errors.New("status transition not allowed")
	ErrInvalidIssue       = errors.New("invalid issue")
	ErrInvalidFileFormat  = errors.New("invalid file format. only images and videos are allowed")
	ErrFileSizeExceeded   = errors.New("file size exceeds limit")
	ErrUploadFailed       = errors.New("file upload failed")
	ErrHighwayNotFound    = errors.New("highway not found")
	ErrProviderFailure    = errors.New("upstream provider failure")
	ErrNoRoutes           = errors.New("no routes found")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// MaxUploadSize bounds issue photos and videos
const MaxUploadSize = 10 * 1024 * 1024 // 10MB
