package source

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrUnavailable wraps any failure that makes a source unusable for the
// run. The orchestrator catches it, disables the source, and keeps
// going; it is never fatal to a batch.
type ErrUnavailable struct {
	Source string
	Err    error
}

func (e ErrUnavailable) Error() string {
	return fmt.Errorf("source %s unavailable: %w", e.Source, e.Err).Error()
}

func (e ErrUnavailable) Unwrap() error {
	return e.Err
}

// ErrAuth indicates missing or rejected credentials. Permanent.
type ErrAuth struct {
	Err error
}

func (e ErrAuth) Error() string {
	return fmt.Errorf("auth: %w", e.Err).Error()
}

func (e ErrAuth) Unwrap() error {
	return e.Err
}

// ErrBadQuery indicates a query the backend cannot answer. Permanent.
type ErrBadQuery struct {
	Err error
}

func (e ErrBadQuery) Error() string {
	return fmt.Errorf("bad_query: %w", e.Err).Error()
}

func (e ErrBadQuery) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the backend throttled the request. Transient.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a network timeout. Transient.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// IsTransient reports whether the failure is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return true
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// ErrorLabel maps a source error onto its metrics/trace label.
func ErrorLabel(err error) string {
	if err == nil {
		return "none"
	}
	var auth ErrAuth
	if errors.As(err, &auth) {
		return "auth"
	}
	var badQuery ErrBadQuery
	if errors.As(err, &badQuery) {
		return "bad_query"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var unavailable ErrUnavailable
	if errors.As(err, &unavailable) {
		return "unavailable"
	}
	return "other"
}
