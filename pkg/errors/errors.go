package errors

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var (
	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrSessionNotEstablished is returned when a frame arrives on a socket with no bound session.
	ErrSessionNotEstablished = errors.New("session not established")
	// ErrInvalidSession is returned when a frame's session pair does not match the bound session.
	ErrInvalidSession = errors.New("invalid session")
	// ErrRateLimited is returned when a session exceeds its submission window.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// New creates a new error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.New(msg + ": " + err.Error())
}

// LogWithError logs the error with context and returns a wrapped error.
// Use this for standardized error logging across services.
func LogWithError(ctx context.Context, log *zap.Logger, msg string, err error, fields ...zap.Field) error {
	if log != nil {
		if reqID, ok := ctx.Value(requestIDKey).(string); ok && reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}
		log.Error(msg, append(fields, zap.Error(err))...)
	}
	return Wrap(err, msg)
}

type contextKey string

// requestIDKey is the context key carrying the per-request correlation id.
const requestIDKey = contextKey("request_id")

// WithRequestID returns a context carrying the given request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}
