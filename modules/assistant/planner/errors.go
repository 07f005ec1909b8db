package planner

import "github.com/flotatrack/fleet-assistant/pkg/serrors"

var (
	ErrMissingHandler = serrors.NewError("PLANNER_MISSING_HANDLER", "no plan handler registered for intent", "")
	ErrInvalidTenant  = serrors.NewError("PLANNER_INVALID_TENANT", "company id must be positive", "")
	ErrInvalidOptions = serrors.NewError("PLANNER_INVALID_OPTIONS", "invalid planner options", "")
)
