// Package source defines the read-only calendar query the poller depends on.
// Concrete implementations live in the google, ics and caldav subpackages.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inkuinfo/internal/model"
)

// Query selects upcoming events.
type Query struct {
	CalendarID string
	// TimeMin is the lower bound on event end time; events already over are
	// excluded. Callers recompute it for every query.
	TimeMin      time.Time
	MaxResults   int
	OrderByStart bool
	// SingleEvents asks for recurring events to be expanded into instances.
	SingleEvents bool
}

// Source is a calendar that can be queried for upcoming events. An empty
// result with a nil error is valid.
type Source interface {
	Name() string
	Events(ctx context.Context, q Query) ([]model.CalendarEvent, error)
}

var (
	// ErrTransport marks network level failures.
	ErrTransport = errors.New("calendar transport error")
	// ErrDecode marks response bodies that could not be decoded.
	ErrDecode = errors.New("calendar response decode error")
	// ErrStatus is matched by every *StatusError.
	ErrStatus = errors.New("calendar non-success status")
)

// StatusError reports a non-success HTTP status from a calendar server.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("calendar server returned %s", e.Status)
	}
	return fmt.Sprintf("calendar server returned status %d", e.Code)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Transport wraps err so that errors.Is(err, ErrTransport) holds.
func Transport(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// Decode wraps err so that errors.Is(err, ErrDecode) holds.
func Decode(err error) error {
	return fmt.Errorf("%w: %w", ErrDecode, err)
}
