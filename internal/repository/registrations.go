package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"attendly/internal/database"
	"attendly/internal/errs"
	"attendly/internal/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const registrationColumns = `
	id, event_id, attendee_id, status, payment_status, payment_amount,
	order_id, payment_id, registered_at, updated_at`

type RegistrationRepository struct {
	db *database.DB
}

func NewRegistrationRepository(db *database.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

func scanRegistration(row interface{ Scan(...any) error }, reg *models.Registration) error {
	return row.Scan(
		&reg.ID,
		&reg.EventID,
		&reg.AttendeeID,
		&reg.Status,
		&reg.PaymentStatus,
		&reg.PaymentAmount,
		&reg.OrderID,
		&reg.PaymentID,
		&reg.RegisteredAt,
		&reg.UpdatedAt,
	)
}

// CreateSettled inserts a free (already settled) registration and
// increments the event ledger in the same transaction. The increment is
// guarded by the capacity check, so two racing admissions for the last
// seat resolve to exactly one winner; the loser gets ErrEventFull. A
// partial-unique-index violation maps to ErrAlreadyRegistered.
func (r *RegistrationRepository) CreateSettled(ctx context.Context, reg *models.Registration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	guarded := `
		UPDATE events
		SET current_attendees = current_attendees + 1, updated_at = NOW()
		WHERE id = $1
		  AND status = 'published'
		  AND (max_attendees IS NULL OR current_attendees < max_attendees)`

	res, err := tx.ExecContext(ctx, guarded, reg.EventID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrEventFull
	}

	insert := `
		INSERT INTO registrations (event_id, attendee_id, status, payment_status, payment_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, registered_at, updated_at`

	err = tx.QueryRowContext(ctx, insert,
		reg.EventID,
		reg.AttendeeID,
		reg.Status,
		reg.PaymentStatus,
		reg.PaymentAmount,
	).Scan(&reg.ID, &reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errs.ErrAlreadyRegistered
		}
		return err
	}

	return tx.Commit()
}

// CreatePending inserts a paid registration awaiting confirmation. The
// seat is reserved here: the event row is locked and the insert is
// guarded by the count of active registrations, pending included, so a
// sold-out event rejects new paid attempts. The ledger itself is not
// touched until the reconciler settles the payment.
func (r *RegistrationRepository) CreatePending(ctx context.Context, reg *models.Registration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var maxAttendees sql.NullInt64
	lock := `SELECT max_attendees FROM events WHERE id = $1 AND status = 'published' FOR UPDATE`
	if err := tx.QueryRowContext(ctx, lock, reg.EventID).Scan(&maxAttendees); err != nil {
		if err == sql.ErrNoRows {
			return errs.ErrEventFull
		}
		return err
	}

	if maxAttendees.Valid {
		var active int64
		count := `
			SELECT COUNT(*) FROM registrations
			WHERE event_id = $1 AND status IN ('registered', 'attended', 'no-show')`
		if err := tx.QueryRowContext(ctx, count, reg.EventID).Scan(&active); err != nil {
			return err
		}
		if active >= maxAttendees.Int64 {
			return errs.ErrEventFull
		}
	}

	query := `
		INSERT INTO registrations (event_id, attendee_id, status, payment_status, payment_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, registered_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		reg.EventID,
		reg.AttendeeID,
		reg.Status,
		reg.PaymentStatus,
		reg.PaymentAmount,
	).Scan(&reg.ID, &reg.RegisteredAt, &reg.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errs.ErrAlreadyRegistered
		}
		return err
	}

	return tx.Commit()
}

func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	reg := &models.Registration{}
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`

	err := scanRegistration(r.db.QueryRowContext(ctx, query, id), reg)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return reg, err
}

// GetByOrderID resolves a registration from an external gateway order id;
// the webhook channel has no registration id to go by.
func (r *RegistrationRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Registration, error) {
	reg := &models.Registration{}
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE order_id = $1`

	err := scanRegistration(r.db.QueryRowContext(ctx, query, orderID), reg)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return reg, err
}

// GetActive returns the attendee's registration in the active status set,
// if any. Cancelled rows are invisible here.
func (r *RegistrationRepository) GetActive(ctx context.Context, eventID, attendeeID int64) (*models.Registration, error) {
	reg := &models.Registration{}
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND attendee_id = $2
		  AND status IN ('registered', 'attended', 'no-show')`

	err := scanRegistration(r.db.QueryRowContext(ctx, query, eventID, attendeeID), reg)
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return reg, err
}

// MarkCancelled moves registered -> cancelled. Conditional on the current
// status so a double cancel is a no-op reported to the caller. Returns
// the payment status of the transitioned row so the caller can decide
// the seat release from the row state at cancellation time, not from an
// earlier read that a concurrent payment completion may have outdated.
func (r *RegistrationRepository) MarkCancelled(ctx context.Context, id string) (string, bool, error) {
	query := `
		UPDATE registrations
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = 'registered'
		RETURNING payment_status`

	var paymentStatus string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&paymentStatus)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	return paymentStatus, true, nil
}

// CompletePayment performs the pending -> completed transition as a
// single conditional write. Whichever confirmation channel arrives first
// wins; the other sees zero rows affected and becomes a no-op.
func (r *RegistrationRepository) CompletePayment(ctx context.Context, id, paymentID string) (bool, error) {
	query := `
		UPDATE registrations
		SET payment_status = 'completed', status = 'registered',
		    payment_id = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, id, paymentID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// SetOrder records the external order id against a pending registration.
func (r *RegistrationRepository) SetOrder(ctx context.Context, id, orderID string) error {
	query := `
		UPDATE registrations
		SET order_id = $2, updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id, orderID)
	return err
}

// PurgeStale deletes the attendee's own pending and cancelled rows for an
// event, except keepID. Called before creating a fresh gateway order so
// each attendee has at most one pending order in flight.
func (r *RegistrationRepository) PurgeStale(ctx context.Context, eventID, attendeeID int64, keepID string) (int64, error) {
	query := `
		DELETE FROM registrations
		WHERE event_id = $1 AND attendee_id = $2 AND id <> $3
		  AND (payment_status = 'pending' OR status = 'cancelled')`

	res, err := r.db.ExecContext(ctx, query, eventID, attendeeID, keepID)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// DeletePending removes the attendee's own pending registration; used by
// the explicit cancel-payment endpoint.
func (r *RegistrationRepository) DeletePending(ctx context.Context, id string, attendeeID int64) (bool, error) {
	query := `
		DELETE FROM registrations
		WHERE id = $1 AND attendee_id = $2 AND payment_status = 'pending'`

	res, err := r.db.ExecContext(ctx, query, id, attendeeID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteStalePending reclaims pending registrations that never received a
// terminal confirmation before the TTL.
func (r *RegistrationRepository) DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		DELETE FROM registrations
		WHERE payment_status = 'pending' AND registered_at < $1`

	res, err := r.db.ExecContext(ctx, query, olderThan)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// CountSettled recomputes the true attendee count for an event straight
// from registration rows: active status with completed or free payment.
func (r *RegistrationRepository) CountSettled(ctx context.Context, eventID int64) (int, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM registrations
		WHERE event_id = $1
		  AND status IN ('registered', 'attended', 'no-show')
		  AND payment_status IN ('completed', 'free')`

	err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count settled registrations: %w", err)
	}

	return count, nil
}

// ListByAttendee returns the attendee's registrations, optionally
// filtered by status, newest first.
func (r *RegistrationRepository) ListByAttendee(ctx context.Context, attendeeID int64, status string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE attendee_id = $1`
	args := []interface{}{attendeeID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}

	query += ` ORDER BY registered_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	return regs, rows.Err()
}

// ListCompletedByAttendee returns the attendee's completed payments,
// newest first.
func (r *RegistrationRepository) ListCompletedByAttendee(ctx context.Context, attendeeID int64) ([]models.Registration, error) {
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE attendee_id = $1 AND payment_status = 'completed'
		ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, attendeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	return regs, rows.Err()
}

// ListByEvent returns registrations for an event, optionally filtered by
// status, newest first. Organizer-facing.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID int64, status string) ([]models.Registration, error) {
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1`
	args := []interface{}{eventID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}

	query += ` ORDER BY registered_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := scanRegistration(rows, &reg); err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}

	return regs, rows.Err()
}
