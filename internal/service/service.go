package service

import (
	"context"
	"time"

	"attendly/internal/external"
	"attendly/internal/messaging"
	"attendly/internal/models"
	"attendly/internal/repository"
)

// Store interfaces are satisfied by the repository types; tests swap in
// in-memory implementations.

type eventStore interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	ListIDs(ctx context.Context) ([]int64, error)
	IncrementAttendees(ctx context.Context, eventID int64) error
	DecrementAttendees(ctx context.Context, eventID int64) (bool, error)
	SetAttendeeCount(ctx context.Context, eventID int64, count int) (bool, error)
}

type registrationStore interface {
	CreateSettled(ctx context.Context, reg *models.Registration) error
	CreatePending(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id string) (*models.Registration, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Registration, error)
	GetActive(ctx context.Context, eventID, attendeeID int64) (*models.Registration, error)
	MarkCancelled(ctx context.Context, id string) (string, bool, error)
	CompletePayment(ctx context.Context, id, paymentID string) (bool, error)
	SetOrder(ctx context.Context, id, orderID string) error
	PurgeStale(ctx context.Context, eventID, attendeeID int64, keepID string) (int64, error)
	DeletePending(ctx context.Context, id string, attendeeID int64) (bool, error)
	CountSettled(ctx context.Context, eventID int64) (int, error)
	ListByAttendee(ctx context.Context, attendeeID int64, status string) ([]models.Registration, error)
	ListCompletedByAttendee(ctx context.Context, attendeeID int64) ([]models.Registration, error)
	ListByEvent(ctx context.Context, eventID int64, status string) ([]models.Registration, error)
}

type paymentGateway interface {
	CreateOrder(ctx context.Context, req external.OrderRequest) (*external.Order, error)
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(rawBody []byte, signature string) bool
}

type publisher interface {
	Publish(subject string, data interface{}) error
}

type Services struct {
	Registrations *RegistrationService
	Payments      *PaymentService
	Audit         *AuditService
}

func NewServices(repos *repository.Repositories, natsClient *messaging.NATSClient, paymentClient *external.PaymentClient, verifyTimeout time.Duration) *Services {
	registrationService := NewRegistrationService(repos.Registrations, repos.Events, natsClient)
	auditService := NewAuditService(repos.Registrations, repos.Events, natsClient)
	paymentService := NewPaymentService(repos.Registrations, repos.Events, paymentClient, natsClient, verifyTimeout)

	return &Services{
		Registrations: registrationService,
		Payments:      paymentService,
		Audit:         auditService,
	}
}
