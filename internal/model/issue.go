package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	StatusReported  = "reported"
	StatusInspected = "inspected"
	StatusResolved  = "resolved"
)

// IsValidSeverity reports whether s is one of the four severity levels
func IsValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// IsValidStatus reports whether s is a lifecycle status
func IsValidStatus(s string) bool {
	switch s {
	case StatusReported, StatusInspected, StatusResolved:
		return true
	}
	return false
}

// LatLng is a WGS84 coordinate. It travels over JSON as [lat, lng].
type LatLng struct {
	Lat float64
	Lng float64
}

func (l LatLng) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{l.Lat, l.Lng})
}

func (l *LatLng) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("location must be a [lat, lng] pair: %w", err)
	}
	l.Lat, l.Lng = pair[0], pair[1]
	return nil
}

// Valid reports whether the coordinate lies within WGS84 bounds
func (l LatLng) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// HighwayIssue is a reported pavement defect
type HighwayIssue struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"` // Reporter
	Location    LatLng    `json:"location"`
	Description string    `json:"description"`
	Severity    string    `json:"severity"`
	Status      string    `json:"status"`
	ImageURL    *string   `json:"image_url,omitempty"`
	RequestID   *string   `json:"request_id,omitempty"` // Client-generated idempotency key
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewIssue carries everything needed to persist an issue
type NewIssue struct {
	UserID      string
	Location    LatLng
	Description string
	Severity    string
	Status      string
	ImageURL    *string
	RequestID   *string
}

// CreatePinRequest is an inspector's pin placement
type CreatePinRequest struct {
	Location    *LatLng `json:"location" binding:"required"`
	Severity    string  `json:"severity" binding:"required,oneof=low medium high critical"`
	Description *string `json:"description"`
	RequestID   *string `json:"request_id"`
}

// ReportIssueRequest holds the non-file fields of a user's photo report
type ReportIssueRequest struct {
	Description string   `form:"description"`
	Severity    string   `form:"severity" binding:"required,oneof=low medium high critical"`
	Lat         *float64 `form:"lat" binding:"required"`
	Lng         *float64 `form:"lng" binding:"required"`
	RequestID   *string  `form:"request_id"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=reported inspected resolved"`
}

// IssueFilters narrows an issue listing
type IssueFilters struct {
	Status *string
	UserID *string
}
