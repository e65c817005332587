package errs

import "errors"

// Admission errors. Returned synchronously so the client can show an
// actionable message instead of a generic failure.
var (
	ErrEventNotFound          = errors.New("event not found")
	ErrEventNotAccepting      = errors.New("event is not accepting registrations")
	ErrAlreadyRegistered      = errors.New("already registered for this event")
	ErrEventFull              = errors.New("event is full")
	ErrRegistrationNotFound   = errors.New("registration not found")
	ErrRegistrationNotPending = errors.New("registration is not pending payment")
)

// Payment integrity errors. Rejected outright, no state mutation.
var (
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrUnknownOrder     = errors.New("unknown payment order")
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// Transient gateway failure. The registration stays pending and the
// caller may retry order creation.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

var (
	ErrFreeEvent = errors.New("event is free, no payment required")
	ErrForbidden = errors.New("operation is forbidden for user")
)
