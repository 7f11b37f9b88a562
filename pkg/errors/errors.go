package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation               Code = "VALIDATION_ERROR"
	CodeStateConflict            Code = "STATE_CONFLICT"
	CodeNetwork                  Code = "NETWORK_ERROR"
	CodeServer                   Code = "SERVER_ERROR"
	CodeNotFoundKey              Code = "NOT_FOUND_KEY"
	CodeRetriesExhausted         Code = "RETRIES_EXHAUSTED"
	CodeConfirmationTimeout      Code = "CONFIRMATION_TIMEOUT"
	CodeBackupVerificationFailed Code = "BACKUP_VERIFICATION_FAILED"
	CodeCorruptRecord            Code = "CORRUPT_RECORD"
	CodeNotFound                 Code = "NOT_FOUND"
	CodeDependency               Code = "DEPENDENCY_ERROR"
	CodeInternal                 Code = "INTERNAL_ERROR"
)

// Metadata describes how a code is surfaced. Terminal codes end an intent and
// need manual follow-up; Retryable codes leave the pending record in place.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	Terminal       bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "payment state does not allow this action",
		DetailsAllowed: true,
	},
	CodeNetwork: {
		HTTPStatus:     http.StatusBadGateway,
		Retryable:      true,
		PublicMessage:  "payment service unreachable",
		DetailsAllowed: false,
	},
	CodeServer: {
		HTTPStatus:     http.StatusBadGateway,
		Retryable:      true,
		PublicMessage:  "payment service returned an error",
		DetailsAllowed: true,
	},
	CodeNotFoundKey: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      true,
		PublicMessage:  "payment service has no record of this transaction",
		DetailsAllowed: false,
	},
	CodeRetriesExhausted: {
		HTTPStatus:     http.StatusGone,
		Terminal:       true,
		PublicMessage:  "transaction could not be completed",
		DetailsAllowed: true,
	},
	CodeConfirmationTimeout: {
		HTTPStatus:     http.StatusGatewayTimeout,
		Terminal:       true,
		PublicMessage:  "payment confirmation timed out",
		DetailsAllowed: true,
	},
	CodeBackupVerificationFailed: {
		HTTPStatus:     http.StatusBadGateway,
		Terminal:       true,
		PublicMessage:  "payment could not be verified",
		DetailsAllowed: true,
	},
	CodeCorruptRecord: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "stored transaction is unreadable",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal error",
		DetailsAllowed: false,
	},
}

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

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
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

// CodeOf returns the code of the outermost typed error in the chain, or
// CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
