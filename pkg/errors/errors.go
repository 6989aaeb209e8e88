// Package errors carries a machine-readable Code alongside the usual error
// chain. The API layer turns the code into an HTTP status and a public
// message; everything below it only picks a code.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeUpstreamPayment  Code = "UPSTREAM_PAYMENT_ERROR"
	CodeSignatureInvalid Code = "SIGNATURE_INVALID"
	CodeDiscrepancy      Code = "RECONCILIATION_DISCREPANCY"
	CodeStorage          Code = "STORAGE_ERROR"
)

// Metadata is the HTTP projection of a code. When ExposeMessage is false the
// caller's message stays in logs and clients see PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	//                    status                            retry  public message                   expose details
	CodeValidation:       {http.StatusBadRequest, false, "validation failed", true, true},
	CodeUnauthorized:     {http.StatusUnauthorized, false, "authentication required", true, false},
	CodeForbidden:        {http.StatusForbidden, false, "access denied", true, false},
	CodeNotFound:         {http.StatusNotFound, false, "resource not found", true, false},
	CodeConflict:         {http.StatusConflict, false, "conflict detected", true, true},
	CodeStateConflict:    {http.StatusUnprocessableEntity, false, "state transition disallowed", true, true},
	CodeIdempotency:      {http.StatusConflict, false, "idempotency key reused", true, true},
	CodeRateLimit:        {http.StatusTooManyRequests, false, "rate limit exceeded", true, false},
	CodeInternal:         {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:       {http.StatusServiceUnavailable, true, "dependency unavailable", false, true},
	CodeUpstreamPayment:  {http.StatusBadGateway, false, "payment processor error", true, true},
	CodeSignatureInvalid: {http.StatusBadRequest, false, "signature verification failed", false, false},
	CodeDiscrepancy:      {http.StatusConflict, false, "reconciliation discrepancy", true, true},
	CodeStorage:          {http.StatusInternalServerError, true, "storage failure", false, false},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
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

// Wrap attaches a code to cause. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
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

// WithDetails sets the structured details returned to clients for codes that
// allow them.
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

func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
