package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// FromContext extracts the logger from context
// If no logger is found, returns a disabled logger (no-op)
func FromContext(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger zerolog.Logger) context.Context {
	return logger.WithContext(ctx)
}

// WithComponent creates a child logger with a component field
func WithComponent(ctx context.Context, component string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("component", component).Logger()
	return WithContext(ctx, childLogger)
}

// WithConnID creates a child logger with a conn_id field
func WithConnID(ctx context.Context, connID string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().Str("conn_id", connID).Logger()
	return WithContext(ctx, childLogger)
}

// WithRequest creates a child logger tagged with a request id and type.
func WithRequest(ctx context.Context, requestID, requestType string) context.Context {
	logger := FromContext(ctx)
	childLogger := logger.With().
		Str("request_id", requestID).
		Str("type", requestType).
		Logger()
	return WithContext(ctx, childLogger)
}
