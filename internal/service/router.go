package service

import (
	"highway_monitor/internal/model"
	"highway_monitor/internal/realtime"
)

const (
	OnboardingPath = "/onboarding"
	AuthPath       = "/auth"
)

// Dashboard features, as exposed to the page
const (
	FeatureIssueMap      = "issue_map"
	FeatureUploadReport  = "upload_report"
	FeaturePlacePin      = "place_pin"
	FeatureUpdateStatus  = "update_status"
	FeatureRoutePlanning = "route_planning"
	FeatureWeather       = "weather_overlay"
	FeatureTraffic       = "traffic_overlay"
	FeatureStreetView    = "street_view"
	FeaturePavement      = "pavement_analysis"
)

// What a click on the map does for a role
const (
	ClickSetRouteEndpoint = "set_route_endpoint"
	ClickDropPin          = "drop_pin"
	ClickNone             = "none"
)

// DashboardDecision is the outcome of routing a viewer to a dashboard.
// Exactly one of Redirect and Viewer is set.
type DashboardDecision struct {
	Redirect string
	Viewer   *model.Viewer
}

// RouteDashboard decides where a signed-in viewer belongs. expectedRole is the
// role of the dashboard being requested, or "" for the landing page.
func RouteDashboard(session model.Session, profile *model.UserProfile, expectedRole string) DashboardDecision {
	if profile == nil || profile.Role == "" {
		return DashboardDecision{Redirect: OnboardingPath}
	}
	if expectedRole == "" || profile.Role != expectedRole {
		return DashboardDecision{Redirect: model.DashboardPath(profile.Role)}
	}
	return DashboardDecision{Viewer: &model.Viewer{Session: session, Profile: profile}}
}

// DashboardFeatures lists what a role's dashboard offers
func DashboardFeatures(role string) []string {
	switch role {
	case model.RoleUser:
		return []string{FeatureIssueMap, FeatureUploadReport, FeatureRoutePlanning, FeatureWeather, FeatureTraffic}
	case model.RoleInspector:
		return []string{FeatureIssueMap, FeaturePlacePin, FeatureUpdateStatus, FeatureStreetView, FeaturePavement, FeatureWeather}
	case model.RoleEngineer:
		return []string{FeatureIssueMap, FeatureUpdateStatus, FeatureRoutePlanning, FeatureWeather, FeatureTraffic}
	}
	return nil
}

// ClickActionFor returns the map click behavior of a role. Engineers get a read-only map.
func ClickActionFor(role string) string {
	switch role {
	case model.RoleUser:
		return ClickSetRouteEndpoint
	case model.RoleInspector:
		return ClickDropPin
	}
	return ClickNone
}

// CanUpdateStatus reports whether a role may move issues through the lifecycle
func CanUpdateStatus(role string) bool {
	return role == model.RoleInspector || role == model.RoleEngineer
}

// IssueFeedFilter is the realtime subscription a role's dashboard listens on by default
func IssueFeedFilter(role string) realtime.Filter {
	switch role {
	case model.RoleInspector:
		return realtime.Filter{Table: realtime.TableHighwayIssues, Event: realtime.EventInsert}
	case model.RoleEngineer:
		return realtime.Filter{Table: realtime.TableHighwayIssues, Event: realtime.EventUpdate, Column: "status", Value: model.StatusInspected}
	}
	return realtime.Filter{Table: realtime.TableHighwayIssues, Event: realtime.EventAll}
}
