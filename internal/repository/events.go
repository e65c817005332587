package repository

import (
	"context"
	"database/sql"

	"attendly/internal/database"
	"attendly/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (organizer_id, title, status, starts_at, max_attendees, price, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, current_attendees, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		event.OrganizerID,
		event.Title,
		event.Status,
		event.StartsAt,
		event.MaxAttendees,
		event.Price,
		event.Currency,
	).Scan(&event.ID, &event.CurrentAttendees, &event.CreatedAt, &event.UpdatedAt)

	return err
}

func (r *EventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	event := &models.Event{}
	query := `
		SELECT id, organizer_id, title, status, starts_at, max_attendees,
		       current_attendees, price, currency, created_at, updated_at
		FROM events
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.OrganizerID,
		&event.Title,
		&event.Status,
		&event.StartsAt,
		&event.MaxAttendees,
		&event.CurrentAttendees,
		&event.Price,
		&event.Currency,
		&event.CreatedAt,
		&event.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return event, err
}

// ListIDs returns every event id; used by the batch drift audit.
func (r *EventRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM events ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// IncrementAttendees adds one settled attendee to the ledger. Used by the
// payment reconciler at the single point a paid registration joins the
// counted set.
func (r *EventRepository) IncrementAttendees(ctx context.Context, eventID int64) error {
	query := `
		UPDATE events
		SET current_attendees = current_attendees + 1, updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, eventID)
	return err
}

// DecrementAttendees removes one settled attendee. The decrement is
// conditional on a positive count, so the counter never goes negative;
// zero rows affected means an underflow attempt, a drift signal for the
// auditor rather than a caller error.
func (r *EventRepository) DecrementAttendees(ctx context.Context, eventID int64) (bool, error) {
	query := `
		UPDATE events
		SET current_attendees = current_attendees - 1, updated_at = NOW()
		WHERE id = $1 AND current_attendees > 0`

	res, err := r.db.ExecContext(ctx, query, eventID)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n == 0, err
}

// SetAttendeeCount overwrites the ledger; no-op when already equal so the
// auditor can report whether anything was corrected.
func (r *EventRepository) SetAttendeeCount(ctx context.Context, eventID int64, count int) (bool, error) {
	query := `
		UPDATE events
		SET current_attendees = $2, updated_at = NOW()
		WHERE id = $1 AND current_attendees <> $2`

	res, err := r.db.ExecContext(ctx, query, eventID, count)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}
