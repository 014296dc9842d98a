package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"time"
)

type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeAmountMismatch Code = "AMOUNT_MISMATCH"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeForbidden      Code = "FORBIDDEN"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeStateConflict  Code = "STATE_CONFLICT"
	CodeIdempotency    Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit      Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal       Code = "INTERNAL_ERROR"
	CodeDependency     Code = "DEPENDENCY_ERROR"

	CodeAlreadyMember     Code = "ALREADY_MEMBER"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeAlreadyEnrolled   Code = "ALREADY_ENROLLED"
	CodeEventFull         Code = "EVENT_FULL"
	CodeClubNotApproved   Code = "CLUB_NOT_APPROVED"

	CodePaymentRequired       Code = "PAYMENT_REQUIRED"
	CodePaymentFailed         Code = "PAYMENT_FAILED"
	CodeReconciliationPending Code = "RECONCILIATION_PENDING"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeAmountMismatch: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "amount does not match the configured fee",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:     http.StatusUnauthorized,
		Retryable:      false,
		PublicMessage:  "authentication required",
		DetailsAllowed: false,
	},
	CodeForbidden: {
		HTTPStatus:     http.StatusForbidden,
		Retryable:      false,
		PublicMessage:  "access denied",
		DetailsAllowed: false,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "conflict detected",
		DetailsAllowed: false,
	},
	CodeAlreadyMember: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "already an active member of this club",
		DetailsAllowed: true,
	},
	CodeAlreadyRegistered: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "already registered for this event",
		DetailsAllowed: true,
	},
	CodeAlreadyEnrolled: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "payment recorded but enrollment already exists",
		DetailsAllowed: true,
	},
	CodeEventFull: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "event is full",
		DetailsAllowed: true,
	},
	CodeClubNotApproved: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "club is not approved",
		DetailsAllowed: true,
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodePaymentRequired: {
		HTTPStatus:     http.StatusPaymentRequired,
		Retryable:      false,
		PublicMessage:  "payment required",
		DetailsAllowed: true,
	},
	CodePaymentFailed: {
		HTTPStatus:     http.StatusPaymentRequired,
		Retryable:      false,
		PublicMessage:  "payment failed",
		DetailsAllowed: true,
	},
	CodeReconciliationPending: {
		HTTPStatus:     http.StatusAccepted,
		Retryable:      true,
		PublicMessage:  "payment received; enrollment is being reconciled",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		HTTPStatus:     http.StatusTooManyRequests,
		Retryable:      false,
		PublicMessage:  "rate limit exceeded",
		DetailsAllowed: false,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

var stateConflictCodes = map[Code]struct{}{
	CodeStateConflict:     {},
	CodeAlreadyMember:     {},
	CodeAlreadyRegistered: {},
	CodeAlreadyEnrolled:   {},
	CodeEventFull:         {},
	CodeClubNotApproved:   {},
}

// IsStateConflict reports whether code is a business-outcome conflict that must not be retried.
func IsStateConflict(code Code) bool {
	_, ok := stateConflictCodes[code]
	return ok
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code       Code
	message    string
	details    any
	cause      error
	retryAfter time.Duration
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

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// WithRetryAfter marks the error as a provisional answer: the same request
// may get a different outcome once d has passed.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	if e == nil {
		return nil
	}
	e.retryAfter = d
	return e
}

func (e *Error) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	return e.retryAfter
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the typed code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether err carries the given typed code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
