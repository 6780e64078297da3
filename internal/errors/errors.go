// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"fmt"
)

// Kind defines the category of error. The set is closed: every error raised
// by this service carries one of these kinds, and the HTTP frontend maps
// each one to a fixed status code (see HTTPStatus).
type Kind int

const (
	KindOther Kind = iota
	KindUpstream
	KindClientError
	KindPoolError
	KindDBError
	KindMissingTarget
	KindMissingTTL
	KindBadIP
	KindBadRequest
	KindWrongFilter
	KindWrongLogLevel
	KindOverflow
)

func (k Kind) String() string {
	switch k {
	case KindUpstream:
		return "upstream"
	case KindClientError:
		return "client_error"
	case KindPoolError:
		return "pool_error"
	case KindDBError:
		return "db_error"
	case KindMissingTarget:
		return "missing_target"
	case KindMissingTTL:
		return "missing_ttl"
	case KindBadIP:
		return "bad_ip"
	case KindBadRequest:
		return "bad_request"
	case KindWrongFilter:
		return "wrong_filter"
	case KindWrongLogLevel:
		return "wrong_log_level"
	case KindOverflow:
		return "overflow"
	default:
		return "other"
	}
}

// HTTPStatus returns the status code the request frontend maps this kind to.
//
// KindUpstream maps to 500 here, the shared default for any kind without an
// explicit case. The mapping does not depend on the endpoint: an upstream
// failure during a ban and one during an unban land on the same status.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMissingTarget, KindMissingTTL, KindBadIP, KindBadRequest, KindWrongFilter, KindWrongLogLevel:
		return 400
	case KindOverflow:
		return 413
	default:
		return 500
	}
}

// Error represents a structured error raised anywhere in the control plane.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{
		Kind:    kind,
		Message: msg,
	}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       kind,
		Message:    msg,
		Underlying: err,
	}
}

// Wrapf wraps an existing error as a new Error of the specified kind with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{
		Kind:       kind,
		Message:    fmt.Sprintf(format, args...),
		Underlying: err,
	}
}

// Attr attaches an attribute to an error. If the error is not an *Error, it wraps it as KindOther.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		e = &Error{
			Kind:       KindOther,
			Message:    err.Error(),
			Underlying: err,
		}
	}

	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of the error, or KindOther if it's not a control-plane error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

// GetAttributes returns all attributes associated with the error and its chain.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)
	var e *Error

	// We use errors.As in a loop to collect all attributes in the chain
	// although typically we only have one control-plane error in the chain.
	tempErr := err
	for tempErr != nil {
		if errors.As(tempErr, &e) {
			for k, v := range e.Attributes {
				if _, ok := attrs[k]; !ok {
					attrs[k] = v
				}
			}
			tempErr = e.Underlying
		} else {
			break
		}
	}

	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err, if err's type contains an Unwrap method returning error.
func Unwrap(err error) error {
	return errors.Unwrap(err)
}
