package service

import "highway_monitor/internal/model"

// SchemaPolicy decides what a missing table looks like to callers
type SchemaPolicy string

const (
	SchemaDefault SchemaPolicy = "default" // read as empty
	SchemaError   SchemaPolicy = "error"
)

// TransitionPolicy decides which status changes are accepted
type TransitionPolicy string

const (
	TransitionStrict     TransitionPolicy = "strict"
	TransitionPermissive TransitionPolicy = "permissive"
)

// Statuses only move forward. Engineers may resolve a reported issue directly.
var forwardTransitions = map[string]map[string]bool{
	model.StatusReported:  {model.StatusInspected: true, model.StatusResolved: true},
	model.StatusInspected: {model.StatusResolved: true},
	model.StatusResolved:  {},
}

// CanTransition reports whether an issue in status from may be set to to.
// Re-setting the current status is always allowed.
func CanTransition(from, to string, policy TransitionPolicy) bool {
	if !model.IsValidStatus(to) {
		return false
	}
	if from == to || policy == TransitionPermissive {
		return true
	}
	return forwardTransitions[from][to]
}
