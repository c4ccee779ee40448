package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"roomly/internal/domain"
)

// InvalidArgumentError reports malformed input such as an empty interval
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	if e.Field == "" {
		return "invalid argument: " + e.Reason
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown room, reservation or waitlist entry
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError carries the conflict detail and any resolution applied to it
type ConflictError struct {
	Conflict   *domain.Conflict
	Resolution *domain.Resolution
}

func (e *ConflictError) Error() string {
	if e.Conflict == nil {
		return "interval conflicts with an existing reservation"
	}
	return fmt.Sprintf("interval %s conflicts with %d reservation(s) and %d blocked slot(s) in room %s",
		e.Conflict.RequestedInterval, len(e.Conflict.ConflictingReservationIDs),
		len(e.Conflict.BlockedIntervals), e.Conflict.RoomID)
}

// InvalidStateTransitionError reports an operation that is illegal from the current status
type InvalidStateTransitionError struct {
	From      string
	Operation string
	Reason    string
}

func (e *InvalidStateTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s from status %s", e.Operation, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// DependencyTimeoutError means a collaborator call did not complete in time.
// The outcome of the call is unknown.
type DependencyTimeoutError struct {
	Dependency string
	Err        error
}

func (e *DependencyTimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Dependency, e.Err)
}

func (e *DependencyTimeoutError) Unwrap() error {
	return e.Err
}

func InvalidArgument(field, format string, args ...interface{}) error {
	return &InvalidArgumentError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func NotFound(resource string, id fmt.Stringer) error {
	return &NotFoundError{Resource: resource, ID: id.String()}
}

func Conflict(c *domain.Conflict, r *domain.Resolution) error {
	return &ConflictError{Conflict: c, Resolution: r}
}

func InvalidTransition(from fmt.Stringer, operation, reason string) error {
	return &InvalidStateTransitionError{From: from.String(), Operation: operation, Reason: reason}
}

// FromContext converts deadline and cancellation errors into a DependencyTimeoutError
// and passes every other error through unchanged.
func FromContext(dependency string, err error) error {
	if err == nil {
		return nil
	}
	var timeout *DependencyTimeoutError
	if errors.As(err, &timeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &DependencyTimeoutError{Dependency: dependency, Err: err}
	}
	return err
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInvalidArgument(err error) bool {
	var target *InvalidArgumentError
	return errors.As(err, &target)
}

func IsInvalidTransition(err error) bool {
	var target *InvalidStateTransitionError
	return errors.As(err, &target)
}

func IsTimeout(err error) bool {
	var target *DependencyTimeoutError
	return errors.As(err, &target)
}

// AsConflict extracts a ConflictError from the chain
func AsConflict(err error) (*ConflictError, bool) {
	var target *ConflictError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// HTTPStatus maps an error to a status code and a stable machine-readable code
func HTTPStatus(err error) (int, string) {
	switch {
	case IsInvalidArgument(err):
		return http.StatusBadRequest, "invalid_argument"
	case IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case IsInvalidTransition(err):
		return http.StatusConflict, "invalid_state_transition"
	case IsTimeout(err):
		return http.StatusGatewayTimeout, "dependency_timeout"
	}
	if _, ok := AsConflict(err); ok {
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal_error"
}
