package service

import (
	"context"
	"fmt"
	"time"

	"attendly/internal/errs"
	"attendly/internal/logger"
	"attendly/internal/metrics"
	"attendly/internal/models"
)

// RegistrationService is the admission controller: it decides whether a
// registration attempt may proceed given capacity and existing state.
type RegistrationService struct {
	regRepo   registrationStore
	eventRepo eventStore
	nats      publisher
}

func NewRegistrationService(regRepo registrationStore, eventRepo eventStore, natsClient publisher) *RegistrationService {
	return &RegistrationService{
		regRepo:   regRepo,
		eventRepo: eventRepo,
		nats:      natsClient,
	}
}

// Register attempts to admit an attendee to an event. Free events settle
// immediately: the row insert and the ledger increment share one guarded
// transaction, so two racing attempts for the last seat resolve to one
// winner and one ErrEventFull. Paid events reserve the seat with a
// pending row, guarded against the active registration count; the ledger
// increments only when the payment reconciler settles it.
func (s *RegistrationService) Register(ctx context.Context, eventID, attendeeID int64) (*models.Registration, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, errs.ErrEventNotFound
	}
	if !event.AcceptsRegistrations() {
		return nil, errs.ErrEventNotAccepting
	}

	active, err := s.regRepo.GetActive(ctx, eventID, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing registration: %w", err)
	}
	if active != nil {
		metrics.Registrations.WithLabelValues("already_registered").Inc()
		return nil, errs.ErrAlreadyRegistered
	}

	if event.IsFull() {
		metrics.Registrations.WithLabelValues("full").Inc()
		return nil, errs.ErrEventFull
	}

	reg := &models.Registration{
		EventID:       eventID,
		AttendeeID:    attendeeID,
		Status:        models.StatusRegistered,
		PaymentStatus: models.PaymentFree,
		PaymentAmount: event.Price,
	}

	if event.Price > 0 {
		// Pending rows hold a seat but are not counted in the ledger
		// until the payment settles.
		reg.PaymentStatus = models.PaymentPending
		err = s.regRepo.CreatePending(ctx, reg)
	} else {
		err = s.regRepo.CreateSettled(ctx, reg)
	}
	if err != nil {
		switch err {
		case errs.ErrEventFull:
			metrics.Registrations.WithLabelValues("full").Inc()
		case errs.ErrAlreadyRegistered:
			metrics.Registrations.WithLabelValues("already_registered").Inc()
		}
		return nil, err
	}

	metrics.Registrations.WithLabelValues("admitted").Inc()

	eventData := models.RegistrationCreatedEvent{
		RegistrationID: reg.ID,
		EventID:        eventID,
		AttendeeID:     attendeeID,
		PaymentStatus:  reg.PaymentStatus,
		Timestamp:      time.Now(),
	}
	if err := s.nats.Publish(models.EventRegistrationCreated, eventData); err != nil {
		logger.WithContext(ctx).Error("Failed to publish registration created event",
			"error", err,
			"registration_id", reg.ID,
			"event_type", models.EventRegistrationCreated)
	}

	if reg.Settled() {
		s.sendConfirmation(ctx, reg)
	}

	return reg, nil
}

// Cancel moves an active registration to cancelled and releases its seat
// from the ledger if it had counted toward capacity.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID string, attendeeID int64) error {
	reg, err := s.regRepo.GetByID(ctx, registrationID)
	if err != nil {
		return fmt.Errorf("failed to get registration: %w", err)
	}
	if reg == nil {
		return errs.ErrRegistrationNotFound
	}
	if reg.AttendeeID != attendeeID {
		return errs.ErrForbidden
	}

	paymentStatus, cancelled, err := s.regRepo.MarkCancelled(ctx, registrationID)
	if err != nil {
		return fmt.Errorf("failed to cancel registration: %w", err)
	}
	if !cancelled {
		// Only 'registered' rows are cancellable.
		return errs.ErrRegistrationNotFound
	}

	// Release the seat based on the row state at the transition, not the
	// read above; the reconciler may have completed the payment between
	// the two.
	wasSettled := paymentStatus == models.PaymentCompleted || paymentStatus == models.PaymentFree

	if wasSettled {
		clamped, err := s.eventRepo.DecrementAttendees(ctx, reg.EventID)
		if err != nil {
			return fmt.Errorf("failed to decrement attendee count: %w", err)
		}
		if clamped {
			metrics.LedgerUnderflows.Inc()
			logger.WithContext(ctx).Error("Attendee counter underflow clamped",
				"event_id", reg.EventID,
				"registration_id", registrationID)
		}
	}

	eventData := models.RegistrationCancelledEvent{
		RegistrationID: registrationID,
		EventID:        reg.EventID,
		AttendeeID:     attendeeID,
		Reason:         "User cancellation",
		Timestamp:      time.Now(),
	}
	if err := s.nats.Publish(models.EventRegistrationCancelled, eventData); err != nil {
		logger.WithContext(ctx).Error("Failed to publish registration cancelled event",
			"error", err,
			"registration_id", registrationID,
			"event_type", models.EventRegistrationCancelled)
	}

	notification := models.EmailNotification{
		AttendeeID:     attendeeID,
		EventID:        reg.EventID,
		RegistrationID: registrationID,
		Timestamp:      time.Now(),
	}
	if err := s.nats.Publish(models.EventEmailCancellation, notification); err != nil {
		logger.WithContext(ctx).Error("Failed to publish cancellation email notification",
			"error", err,
			"registration_id", registrationID)
	}

	return nil
}

// ListMine returns the attendee's registrations, optionally filtered by
// status.
func (s *RegistrationService) ListMine(ctx context.Context, attendeeID int64, status string) ([]models.ListRegistrationsResponseItem, error) {
	regs, err := s.regRepo.ListByAttendee(ctx, attendeeID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}

	return toListItems(regs), nil
}

// ListForEvent returns an event's registrations; organizer only.
func (s *RegistrationService) ListForEvent(ctx context.Context, eventID, requesterID int64, status string) ([]models.ListRegistrationsResponseItem, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, errs.ErrEventNotFound
	}
	if event.OrganizerID != requesterID {
		return nil, errs.ErrForbidden
	}

	regs, err := s.regRepo.ListByEvent(ctx, eventID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list event registrations: %w", err)
	}

	return toListItems(regs), nil
}

func toListItems(regs []models.Registration) []models.ListRegistrationsResponseItem {
	result := make([]models.ListRegistrationsResponseItem, len(regs))
	for i, reg := range regs {
		result[i] = models.ListRegistrationsResponseItem{
			ID:            reg.ID,
			EventID:       reg.EventID,
			AttendeeID:    reg.AttendeeID,
			Status:        reg.Status,
			PaymentStatus: reg.PaymentStatus,
			RegisteredAt:  reg.RegisteredAt.Format(time.RFC3339),
		}
	}
	return result
}

func (s *RegistrationService) sendConfirmation(ctx context.Context, reg *models.Registration) {
	notification := models.EmailNotification{
		AttendeeID:     reg.AttendeeID,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		Timestamp:      time.Now(),
	}
	if err := s.nats.Publish(models.EventEmailConfirmation, notification); err != nil {
		logger.WithContext(ctx).Error("Failed to publish confirmation email notification",
			"error", err,
			"registration_id", reg.ID)
	}
}
