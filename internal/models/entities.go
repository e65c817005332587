package models

import (
	"time"
)

// Event statuses that gate admission.
const (
	EventStatusDraft     = "draft"
	EventStatusPublished = "published"
	EventStatusCompleted = "completed"
	EventStatusCancelled = "cancelled"
)

// Registration statuses.
const (
	StatusRegistered = "registered"
	StatusCancelled  = "cancelled"
	StatusAttended   = "attended"
	StatusNoShow     = "no-show"
)

// Payment sub-states.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentRefunded  = "refunded"
	PaymentFree      = "free"
)

// User represents an authenticated attendee or organizer
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Name         string    `json:"name" db:"name"`
	Role         string    `json:"role" db:"role"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// Event represents an event in the system. Price is in minor currency
// units (0 = free); MaxAttendees nil means unlimited. CurrentAttendees is
// the denormalized ledger of settled registrations and is only written
// through the admission, reconciliation and audit paths.
type Event struct {
	ID               int64     `json:"id" db:"id"`
	OrganizerID      int64     `json:"organizer_id" db:"organizer_id"`
	Title            string    `json:"title" db:"title"`
	Status           string    `json:"status" db:"status"`
	StartsAt         time.Time `json:"starts_at" db:"starts_at"`
	MaxAttendees     *int      `json:"max_attendees" db:"max_attendees"`
	CurrentAttendees int       `json:"current_attendees" db:"current_attendees"`
	Price            int64     `json:"price" db:"price"`
	Currency         string    `json:"currency" db:"currency"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// IsFull reports whether the settled attendee count has reached capacity.
func (e *Event) IsFull() bool {
	if e.MaxAttendees == nil {
		return false
	}
	return e.CurrentAttendees >= *e.MaxAttendees
}

// AcceptsRegistrations reports whether admission attempts may proceed.
func (e *Event) AcceptsRegistrations() bool {
	return e.Status == EventStatusPublished
}

// Registration represents one intent to attend per attendee per event.
// A partial unique index over (event_id, attendee_id) scoped to the
// active status set allows re-registration after cancellation.
type Registration struct {
	ID            string    `json:"id" db:"id"`
	EventID       int64     `json:"event_id" db:"event_id"`
	AttendeeID    int64     `json:"attendee_id" db:"attendee_id"`
	Status        string    `json:"status" db:"status"`
	PaymentStatus string    `json:"payment_status" db:"payment_status"`
	PaymentAmount int64     `json:"payment_amount" db:"payment_amount"`
	OrderID       *string   `json:"order_id" db:"order_id"`
	PaymentID     *string   `json:"payment_id" db:"payment_id"`
	RegisteredAt  time.Time `json:"registered_at" db:"registered_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Settled reports whether the registration counts toward the capacity
// ledger: an active status with a completed or free payment.
func (r *Registration) Settled() bool {
	switch r.Status {
	case StatusRegistered, StatusAttended, StatusNoShow:
	default:
		return false
	}
	return r.PaymentStatus == PaymentCompleted || r.PaymentStatus == PaymentFree
}
