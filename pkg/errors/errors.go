package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// Reservation lifecycle codes.
	CodeBagUnavailable         Code = "BAG_UNAVAILABLE"
	CodeInsufficientQuantity   Code = "INSUFFICIENT_QUANTITY"
	CodePastPickupTime         Code = "PAST_PICKUP_TIME"
	CodeAdvanceNoticeViolation Code = "ADVANCE_NOTICE_VIOLATION"
	CodeBusinessClosed         Code = "BUSINESS_CLOSED"
	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodePickupWindowExpired    Code = "PICKUP_WINDOW_EXPIRED"
)

// Metadata is how a Code is presented over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	retryable   = true
	withDetails = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:   {http.StatusBadRequest, false, "validation failed", withDetails},
	CodeUnauthorized: {http.StatusUnauthorized, false, "authentication required", false},
	CodeForbidden:    {http.StatusForbidden, false, "access denied", false},
	CodeNotFound:     {http.StatusNotFound, false, "resource not found", false},
	CodeConflict:     {http.StatusConflict, false, "conflict detected", false},
	CodeIdempotency:  {http.StatusConflict, false, "idempotency key reused", withDetails},
	CodeInternal:     {http.StatusInternalServerError, retryable, "internal server error", false},
	CodeDependency:   {http.StatusServiceUnavailable, retryable, "dependency unavailable", withDetails},

	CodeBagUnavailable:         {http.StatusBadRequest, false, "rescue bag is not available", withDetails},
	CodeInsufficientQuantity:   {http.StatusBadRequest, false, "insufficient quantity available", withDetails},
	CodePastPickupTime:         {http.StatusBadRequest, false, "pickup time must be in the future", withDetails},
	CodeAdvanceNoticeViolation: {http.StatusBadRequest, false, "pickup does not satisfy the advance notice", withDetails},
	CodeBusinessClosed:         {http.StatusBadRequest, false, "business is not open at pickup time", withDetails},
	CodeInvalidTransition:      {http.StatusConflict, false, "reservation state transition disallowed", withDetails},
	CodePickupWindowExpired:    {http.StatusBadRequest, false, "pickup window has expired", withDetails},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a domain failure with a stable Code. Handlers render it through
// MetadataFor; the cause is logged but never sent to clients. Accessors are
// safe on a nil *Error.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err as the cause. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails attaches client-visible details when the code allows them.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether the outermost *Error in err's chain has code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
