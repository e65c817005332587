package models

import "time"

// NATS Event Types
const (
	EventRegistrationCreated   = "registration.created"
	EventRegistrationCancelled = "registration.cancelled"
	EventPaymentInitiated      = "payment.initiated"
	EventPaymentCompleted      = "payment.completed"
	EventPaymentFailed         = "payment.failed"
	EventLedgerCorrected       = "ledger.corrected"

	// Fire-and-forget notifications consumed by the email collaborator.
	EventEmailConfirmation = "notification.email.confirmation"
	EventEmailCancellation = "notification.email.cancellation"
)

// RegistrationCreatedEvent represents a successful admission
type RegistrationCreatedEvent struct {
	RegistrationID string    `json:"registration_id"`
	EventID        int64     `json:"event_id"`
	AttendeeID     int64     `json:"attendee_id"`
	PaymentStatus  string    `json:"payment_status"`
	Timestamp      time.Time `json:"timestamp"`
}

// RegistrationCancelledEvent represents an attendee cancellation
type RegistrationCancelledEvent struct {
	RegistrationID string    `json:"registration_id"`
	EventID        int64     `json:"event_id"`
	AttendeeID     int64     `json:"attendee_id"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentInitiatedEvent represents a created gateway order
type PaymentInitiatedEvent struct {
	RegistrationID string    `json:"registration_id"`
	EventID        int64     `json:"event_id"`
	OrderID        string    `json:"order_id"`
	Amount         int64     `json:"amount"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentCompletedEvent represents a reconciled payment confirmation
type PaymentCompletedEvent struct {
	RegistrationID string    `json:"registration_id"`
	EventID        int64     `json:"event_id"`
	OrderID        string    `json:"order_id"`
	PaymentID      string    `json:"payment_id"`
	Channel        string    `json:"channel"`
	Timestamp      time.Time `json:"timestamp"`
}

// PaymentFailedEvent represents a failed-payment webhook
type PaymentFailedEvent struct {
	RegistrationID string    `json:"registration_id"`
	OrderID        string    `json:"order_id"`
	Reason         string    `json:"reason"`
	Timestamp      time.Time `json:"timestamp"`
}

// LedgerCorrectedEvent represents a drift correction by the auditor
type LedgerCorrectedEvent struct {
	EventID    int64     `json:"event_id"`
	Recomputed int       `json:"recomputed"`
	Timestamp  time.Time `json:"timestamp"`
}

// EmailNotification is the fire-and-forget payload for the email
// collaborator. Delivery failures never roll back a transition.
type EmailNotification struct {
	AttendeeID     int64     `json:"attendee_id"`
	EventID        int64     `json:"event_id"`
	RegistrationID string    `json:"registration_id"`
	Timestamp      time.Time `json:"timestamp"`
}
