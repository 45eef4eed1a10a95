// Package apperr carries failures across layers as a stable machine code plus
// a human-readable description and optional context for manual resolution.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// Identity / OTP
	AlreadyRegistered   = "ALREADY_REGISTERED"
	DeliveryFailed      = "DELIVERY_FAILED"
	OTPExpired          = "OTP_EXPIRED"
	OTPLocked           = "OTP_LOCKED"
	OTPInvalid          = "OTP_INVALID"
	VerificationExpired = "VERIFICATION_EXPIRED"
	EmailMismatch       = "EMAIL_MISMATCH"

	// Registration
	RegistrationClosed = "REGISTRATION_CLOSED"
	EmailExists        = "EMAIL_EXISTS"
	NoEventsSelected   = "NO_EVENTS_SELECTED"
	EventNotFound      = "EVENT_NOT_FOUND"
	EventInactive      = "EVENT_INACTIVE"
	WorkshopNotFound   = "WORKSHOP_NOT_FOUND"
	NotAWorkshop       = "NOT_A_WORKSHOP"
	SeatsFull          = "SEATS_FULL"
	RollNotFound       = "ROLL_NOT_FOUND"
	RollAlreadyUsed    = "ROLL_ALREADY_USED"

	// Payment / reconciliation
	TransactionIDRequired  = "TRANSACTION_ID_REQUIRED"
	TransactionIDInvalid   = "TRANSACTION_ID_INVALID"
	DuplicateTransaction   = "DUPLICATE_TRANSACTION"
	ParticipantNotFound    = "PARTICIPANT_NOT_FOUND"
	NoPendingRegistrations = "NO_PENDING_REGISTRATIONS"
	InvalidAmount          = "INVALID_AMOUNT"
	SeatsFullAtPayment     = "SEATS_FULL_AT_PAYMENT"
	NoPaymentFound         = "NO_PAYMENT_FOUND"

	// Attendance
	RegistrationNotFound = "REGISTRATION_NOT_FOUND"
	AttendanceDenied     = "ATTENDANCE_DENIED"

	// Generic
	FieldIncorrect     = "FIELD_INCORRECT"
	Unauthorized       = "UNAUTHORIZED"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
)

type Error struct {
	Code string
	Desc string
	Ctx  map[string]any
}

func (e *Error) Error() string {
	if len(e.Ctx) == 0 {
		return e.Code + ": " + e.Desc
	}
	return fmt.Sprintf("%s: %s %v", e.Code, e.Desc, e.Ctx)
}

func New(code, desc string) *Error {
	return &Error{Code: code, Desc: desc}
}

func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Desc: fmt.Sprintf(format, args...)}
}

// With returns a copy carrying an extra context entry, so package-level
// sentinel errors stay immutable.
func (e *Error) With(key string, value any) *Error {
	ctx := make(map[string]any, len(e.Ctx)+1)
	for k, v := range e.Ctx {
		ctx[k] = v
	}
	ctx[key] = value
	return &Error{Code: e.Code, Desc: e.Desc, Ctx: ctx}
}

// Is matches on code so callers can compare against sentinels regardless of
// the context attached at the point of failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// CodeOf extracts the stable code from any error, or ServiceUnavailable for
// errors that did not originate in this package.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ServiceUnavailable
}

func From(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// HTTPStatus maps a code onto the transport status. Not-found codes are 404,
// every other business failure is a 400, anything unknown is a 500.
func HTTPStatus(code string) int {
	switch code {
	case EventNotFound, WorkshopNotFound, ParticipantNotFound, RegistrationNotFound, RollNotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case ServiceUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
