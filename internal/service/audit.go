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

// AuditService recomputes the attendee counter from registration rows
// and repairs drift. Compensating control for anything that slips past
// the online atomic paths; idempotent and safe to run repeatedly.
type AuditService struct {
	regRepo   registrationStore
	eventRepo eventStore
	nats      publisher
}

func NewAuditService(regRepo registrationStore, eventRepo eventStore, natsClient publisher) *AuditService {
	return &AuditService{
		regRepo:   regRepo,
		eventRepo: eventRepo,
		nats:      natsClient,
	}
}

// AuditEvent recomputes the settled count for one event and overwrites
// the ledger if it disagrees. A second run without intervening writes
// reports Corrected=false.
func (s *AuditService) AuditEvent(ctx context.Context, eventID int64) (*models.AuditResponse, error) {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, errs.ErrEventNotFound
	}

	count, err := s.regRepo.CountSettled(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to recount attendees: %w", err)
	}

	corrected, err := s.eventRepo.SetAttendeeCount(ctx, eventID, count)
	if err != nil {
		return nil, fmt.Errorf("failed to overwrite attendee count: %w", err)
	}

	if corrected {
		metrics.DriftCorrections.Inc()
		logger.WithContext(ctx).Warn("Corrected attendee counter drift",
			"event_id", eventID,
			"was", event.CurrentAttendees,
			"recomputed", count)

		eventData := models.LedgerCorrectedEvent{
			EventID:    eventID,
			Recomputed: count,
			Timestamp:  time.Now(),
		}
		if err := s.nats.Publish(models.EventLedgerCorrected, eventData); err != nil {
			logger.WithContext(ctx).Error("Failed to publish ledger corrected event",
				"error", err,
				"event_id", eventID,
				"event_type", models.EventLedgerCorrected)
		}
	}

	return &models.AuditResponse{
		EventID:    eventID,
		Recomputed: count,
		Corrected:  corrected,
	}, nil
}

// AuditAll runs the audit over every event. Per-event failures are
// logged and skipped so one bad row cannot stall the sweep.
func (s *AuditService) AuditAll(ctx context.Context) ([]models.AuditResponse, error) {
	ids, err := s.eventRepo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	results := make([]models.AuditResponse, 0, len(ids))
	for _, id := range ids {
		result, err := s.AuditEvent(ctx, id)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to audit event",
				"error", err,
				"event_id", id)
			continue
		}
		results = append(results, *result)
	}

	return results, nil
}
