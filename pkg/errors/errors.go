package errors

import (
	stdErrors "errors"
	"net/http"
)

type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeInsufficientPoints Code = "INSUFFICIENT_POINTS"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeConcurrency        Code = "CONCURRENCY_CONFLICT"
	CodeProductInactive    Code = "PRODUCT_INACTIVE"
	CodeZoneInactive       Code = "ZONE_INACTIVE"
	CodeAlreadyAssigned    Code = "ALREADY_ASSIGNED"
	CodeIdempotency        Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit          Code = "RATE_LIMITED"
	CodePersistence        Code = "PERSISTENCE_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
	CodeDependency         Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP. PublicMessage is the fallback
// shown when the error's own message is not safe to expose.
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

func meta(status int, public string, retry, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retry, PublicMessage: public, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:         meta(http.StatusBadRequest, "validation failed", false, withDetails),
	CodeUnauthorized:       meta(http.StatusUnauthorized, "authentication required", false, false),
	CodeForbidden:          meta(http.StatusForbidden, "access denied", false, false),
	CodeNotFound:           meta(http.StatusNotFound, "resource not found", false, false),
	CodeInsufficientStock:  meta(http.StatusConflict, "insufficient stock", false, withDetails),
	CodeInsufficientPoints: meta(http.StatusConflict, "insufficient points", false, withDetails),
	CodeInvalidTransition:  meta(http.StatusUnprocessableEntity, "state transition disallowed", false, withDetails),
	CodeConcurrency:        meta(http.StatusConflict, "concurrent update detected", retryable, false),
	CodeProductInactive:    meta(http.StatusUnprocessableEntity, "product unavailable", false, withDetails),
	CodeZoneInactive:       meta(http.StatusUnprocessableEntity, "delivery zone unavailable", false, withDetails),
	CodeAlreadyAssigned:    meta(http.StatusConflict, "order already assigned", false, false),
	CodeIdempotency:        meta(http.StatusConflict, "idempotency key reused", false, withDetails),
	CodeRateLimit:          meta(http.StatusTooManyRequests, "too many requests", retryable, false),
	CodePersistence:        meta(http.StatusInternalServerError, "storage failure", retryable, false),
	CodeInternal:           meta(http.StatusInternalServerError, "internal server error", retryable, false),
	CodeDependency:         meta(http.StatusServiceUnavailable, "dependency unavailable", retryable, withDetails),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
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

// WithDetails attaches client-visible context and returns e for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return string(e.code) + ": " + e.message + ": " + e.cause.Error()
	}
	return string(e.code) + ": " + e.message
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

// IsCode reports whether the first typed error in the chain carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
