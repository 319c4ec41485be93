package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the arrangement/integrity/progression core. Services
// wrap these with context; handlers map them to HTTP statuses via Status.
var (
	ErrNotFound                = errors.New("not_found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrNotEditable             = errors.New("not_editable")
	ErrArrangementLocked       = errors.New("arrangement_locked")
	ErrAlreadyReviewed         = errors.New("already_reviewed")
	ErrConflict                = errors.New("conflict")
	ErrRequirementsNotMet      = errors.New("requirements_not_met")
	ErrExternalServiceDegraded = errors.New("external_service_degraded")
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Status resolves the HTTP status for a service error.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotEditable),
		errors.Is(err, ErrArrangementLocked),
		errors.Is(err, ErrAlreadyReviewed),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrRequirementsNotMet):
		return http.StatusConflict
	case errors.Is(err, ErrExternalServiceDegraded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code resolves the machine-readable code for a service error.
func Code(err error) string {
	for _, sentinel := range []error{
		ErrNotFound,
		ErrUnauthorized,
		ErrForbidden,
		ErrNotEditable,
		ErrArrangementLocked,
		ErrAlreadyReviewed,
		ErrConflict,
		ErrRequirementsNotMet,
		ErrExternalServiceDegraded,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal_error"
}
