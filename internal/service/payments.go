package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"attendly/internal/errs"
	"attendly/internal/external"
	"attendly/internal/logger"
	"attendly/internal/metrics"
	"attendly/internal/models"
)

const defaultVerifyTimeout = 5 * time.Second

// Confirmation channels feeding the reconciler.
const (
	channelVerify  = "verify"
	channelWebhook = "webhook"
)

// PaymentService owns the paid-registration lifecycle: order creation
// against the gateway and reconciliation of the two confirmation
// channels into one authoritative registration state.
type PaymentService struct {
	regRepo       registrationStore
	eventRepo     eventStore
	gateway       paymentGateway
	nats          publisher
	verifyTimeout time.Duration
}

func NewPaymentService(regRepo registrationStore, eventRepo eventStore, gateway paymentGateway, natsClient publisher, verifyTimeout time.Duration) *PaymentService {
	if verifyTimeout == 0 {
		verifyTimeout = defaultVerifyTimeout
	}

	return &PaymentService{
		regRepo:       regRepo,
		eventRepo:     eventRepo,
		gateway:       gateway,
		nats:          natsClient,
		verifyTimeout: verifyTimeout,
	}
}

// CreateOrder creates a gateway order for the caller's pending
// registration. The caller's older pending/cancelled rows for the event
// are purged first, so at most one pending order is in flight per
// attendee. A gateway failure leaves the registration pending; the
// caller may retry.
func (s *PaymentService) CreateOrder(ctx context.Context, registrationID string, attendeeID int64) (*models.CreateOrderResponse, error) {
	reg, err := s.regRepo.GetByID(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	if reg == nil {
		return nil, errs.ErrRegistrationNotFound
	}
	if reg.AttendeeID != attendeeID {
		return nil, errs.ErrForbidden
	}
	if reg.PaymentStatus != models.PaymentPending {
		return nil, errs.ErrRegistrationNotPending
	}

	event, err := s.eventRepo.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if event == nil {
		return nil, errs.ErrEventNotFound
	}
	if event.Price == 0 {
		return nil, errs.ErrFreeEvent
	}

	purged, err := s.regRepo.PurgeStale(ctx, reg.EventID, attendeeID, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to purge stale registrations: %w", err)
	}
	if purged > 0 {
		logger.WithContext(ctx).Info("Purged stale registrations before order creation",
			"count", purged,
			"event_id", reg.EventID,
			"attendee_id", attendeeID)
	}

	order, err := s.gateway.CreateOrder(ctx, external.OrderRequest{
		Amount:   reg.PaymentAmount,
		Currency: event.Currency,
		Receipt:  fmt.Sprintf("receipt_%s", reg.ID),
		Notes: map[string]string{
			"event_id":        fmt.Sprintf("%d", reg.EventID),
			"attendee_id":     fmt.Sprintf("%d", attendeeID),
			"registration_id": reg.ID,
		},
	})
	if err != nil {
		// Registration stays pending and reclaimable.
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	if err := s.regRepo.SetOrder(ctx, reg.ID, order.ID); err != nil {
		return nil, fmt.Errorf("failed to record order id: %w", err)
	}

	eventData := models.PaymentInitiatedEvent{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		OrderID:        order.ID,
		Amount:         reg.PaymentAmount,
		Timestamp:      time.Now(),
	}
	if err := s.nats.Publish(models.EventPaymentInitiated, eventData); err != nil {
		logger.WithContext(ctx).Error("Failed to publish payment initiated event",
			"error", err,
			"registration_id", reg.ID,
			"event_type", models.EventPaymentInitiated)
	}

	return &models.CreateOrderResponse{
		OrderID:        order.ID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		RegistrationID: reg.ID,
	}, nil
}

// Verify is the synchronous confirmation channel, invoked by the client
// right after the gateway checkout flow. Bounded by a timeout so a
// stalled store surfaces as a retryable error, not a state change.
func (s *PaymentService) Verify(ctx context.Context, req *models.VerifyPaymentRequest) (*models.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()

	if !s.gateway.VerifyCheckoutSignature(req.OrderID, req.PaymentID, req.Signature) {
		metrics.PaymentConfirmations.WithLabelValues(channelVerify, "invalid_signature").Inc()
		return nil, errs.ErrInvalidSignature
	}

	reg, err := s.regRepo.GetByID(ctx, req.RegistrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	if reg == nil {
		return nil, errs.ErrRegistrationNotFound
	}

	if err := s.completePayment(ctx, reg, req.PaymentID, channelVerify); err != nil {
		return nil, err
	}

	return s.regRepo.GetByID(ctx, req.RegistrationID)
}

// HandleWebhook is the asynchronous confirmation channel: at-least-once,
// possibly duplicated, possibly out of order with the verify call. The
// signature is recomputed over the exact raw bytes received, before any
// JSON parsing. Unhandled event types are acknowledged and ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if !s.gateway.VerifyWebhookSignature(rawBody, signature) {
		metrics.PaymentConfirmations.WithLabelValues(channelWebhook, "invalid_signature").Inc()
		return errs.ErrInvalidSignature
	}

	var envelope models.WebhookEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		// Authentic but unparseable; a gateway retry cannot succeed, so
		// the caller must not answer with a retryable status.
		return fmt.Errorf("%w: %v", errs.ErrMalformedPayload, err)
	}

	entity := envelope.Payload.Payment.Entity

	switch envelope.Event {
	case models.WebhookPaymentCaptured:
		reg, err := s.regRepo.GetByOrderID(ctx, entity.OrderID)
		if err != nil {
			return fmt.Errorf("failed to resolve order: %w", err)
		}
		if reg == nil {
			metrics.PaymentConfirmations.WithLabelValues(channelWebhook, "unknown_order").Inc()
			return errs.ErrUnknownOrder
		}
		return s.completePayment(ctx, reg, entity.ID, channelWebhook)

	case models.WebhookPaymentFailed:
		// Deliberate no-op: a later-arriving success for the same order
		// must still be honorable, and stale pending rows are reclaimed
		// by the cleanup pass.
		s.handlePaymentFailed(ctx, entity)
		return nil

	default:
		logger.WithContext(ctx).Info("Unhandled webhook event type",
			"event_type", envelope.Event)
		return nil
	}
}

// completePayment is the single idempotent transition both confirmation
// channels call. The pending -> completed move is a conditional write on
// the current payment status, so concurrent invocations for the same
// registration resolve to one winner; the loser is a harmless no-op.
func (s *PaymentService) completePayment(ctx context.Context, reg *models.Registration, paymentID, channel string) error {
	if reg.PaymentStatus == models.PaymentCompleted {
		metrics.PaymentConfirmations.WithLabelValues(channel, "duplicate").Inc()
		return nil
	}
	if reg.PaymentStatus != models.PaymentPending {
		return errs.ErrRegistrationNotPending
	}

	won, err := s.regRepo.CompletePayment(ctx, reg.ID, paymentID)
	if err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}
	if !won {
		// The other channel got there first.
		metrics.PaymentConfirmations.WithLabelValues(channel, "duplicate").Inc()
		return nil
	}

	// The only point at which a paid registration joins the counted set.
	if err := s.eventRepo.IncrementAttendees(ctx, reg.EventID); err != nil {
		logger.WithContext(ctx).Error("Failed to increment attendee count after payment",
			"error", err,
			"event_id", reg.EventID,
			"registration_id", reg.ID)
		return fmt.Errorf("failed to increment attendee count: %w", err)
	}

	metrics.PaymentConfirmations.WithLabelValues(channel, "completed").Inc()

	orderID := ""
	if reg.OrderID != nil {
		orderID = *reg.OrderID
	}
	eventData := models.PaymentCompletedEvent{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		OrderID:        orderID,
		PaymentID:      paymentID,
		Channel:        channel,
		Timestamp:      time.Now(),
	}
	if err := s.nats.Publish(models.EventPaymentCompleted, eventData); err != nil {
		logger.WithContext(ctx).Error("Failed to publish payment completed event",
			"error", err,
			"registration_id", reg.ID,
			"event_type", models.EventPaymentCompleted)
	}

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

	return nil
}

func (s *PaymentService) handlePaymentFailed(ctx context.Context, entity models.PaymentEntity) {
	reg, err := s.regRepo.GetByOrderID(ctx, entity.OrderID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to resolve order for failed payment",
			"error", err,
			"order_id", entity.OrderID)
		return
	}

	registrationID := ""
	if reg != nil {
		registrationID = reg.ID
	}

	logger.WithContext(ctx).Info("Payment failed, registration left pending",
		"order_id", entity.OrderID,
		"registration_id", registrationID)

	eventData := models.PaymentFailedEvent{
		RegistrationID: registrationID,
		OrderID:        entity.OrderID,
		Reason:         entity.Status,
		Timestamp:      time.Now(),
	}
	if err := s.nats.Publish(models.EventPaymentFailed, eventData); err != nil {
		logger.WithContext(ctx).Error("Failed to publish payment failed event",
			"error", err,
			"order_id", entity.OrderID,
			"event_type", models.EventPaymentFailed)
	}
}

// CancelPending deletes the caller's own pending registration outright.
// The ledger is untouched since pending rows are never counted in it;
// the reserved seat frees with the row.
func (s *PaymentService) CancelPending(ctx context.Context, registrationID string, attendeeID int64) error {
	deleted, err := s.regRepo.DeletePending(ctx, registrationID, attendeeID)
	if err != nil {
		return fmt.Errorf("failed to delete pending registration: %w", err)
	}
	if !deleted {
		return errs.ErrRegistrationNotFound
	}

	return nil
}

// History returns the attendee's completed payments, newest first.
func (s *PaymentService) History(ctx context.Context, attendeeID int64) ([]models.PaymentHistoryItem, error) {
	regs, err := s.regRepo.ListCompletedByAttendee(ctx, attendeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment history: %w", err)
	}

	result := make([]models.PaymentHistoryItem, len(regs))
	for i, reg := range regs {
		result[i] = models.PaymentHistoryItem{
			RegistrationID: reg.ID,
			EventID:        reg.EventID,
			Amount:         reg.PaymentAmount,
			OrderID:        reg.OrderID,
			PaymentID:      reg.PaymentID,
			PaidAt:         reg.UpdatedAt.Format(time.RFC3339),
		}
	}

	return result, nil
}
