package composables

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/flotatrack/fleet-assistant/pkg/logging"
)

type contextKey string

const (
	loggerKey   contextKey = "logger"
	identityKey contextKey = "identity"
	requestKey  contextKey = "request_id"
)

var (
	ErrNoIdentity = errors.New("identity not found")
)

// Identity is the caller resolved by the upstream auth layer.
type Identity struct {
	UserID    int64
	CompanyID int64
}

// WithLogger returns a new context carrying the request-scoped logger.
func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// UseLogger returns the logger from the context.
// Background jobs run without a request logger, so a discarding entry is returned instead of panicking.
func UseLogger(ctx context.Context) *logrus.Entry {
	if logger, ok := ctx.Value(loggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return logging.Nop()
}

// UseLoggerOr returns the context logger, or fallback when none is attached.
func UseLoggerOr(ctx context.Context, fallback *logrus.Entry) *logrus.Entry {
	if logger, ok := ctx.Value(loggerKey).(*logrus.Entry); ok && logger != nil {
		return logger
	}
	return fallback
}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// UseIdentity returns the caller identity from the context.
// If the identity is not found, ErrNoIdentity is returned.
func UseIdentity(ctx context.Context) (Identity, error) {
	identity, ok := ctx.Value(identityKey).(Identity)
	if !ok {
		return Identity{}, ErrNoIdentity
	}
	return identity, nil
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestKey, requestID)
}

// UseRequestID returns the request id from the context.
// If the request id is not found, the second return value will be false.
func UseRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestKey).(string)
	return id, ok && id != ""
}
