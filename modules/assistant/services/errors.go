package services

import "github.com/flotatrack/fleet-assistant/pkg/serrors"

var (
	ErrInvalidRequest = serrors.NewError("ASSISTANT_INVALID_REQUEST", "invalid assistant request", "Assistant.Errors.InvalidRequest")
	ErrRateLimited    = serrors.NewError("ASSISTANT_RATE_LIMITED", "too many queries, slow down", "Assistant.Errors.RateLimited")
	ErrInternal       = serrors.NewError("ASSISTANT_INTERNAL", "internal assistant error", "Assistant.Errors.Internal")
)
