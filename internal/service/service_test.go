package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"attendly/internal/errs"
	"attendly/internal/external"
	"attendly/internal/models"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the Postgres repositories. Every
// operation holds one lock, mirroring the atomicity of the SQL statement
// it replaces, so the concurrency tests exercise the same contract.
type memStore struct {
	mu     sync.Mutex
	events map[int64]*models.Event
	regs   map[string]*models.Registration
}

func newMemStore() *memStore {
	return &memStore{
		events: make(map[int64]*models.Event),
		regs:   make(map[string]*models.Registration),
	}
}

func (m *memStore) addEvent(ev models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = &ev
}

func (m *memStore) attendeeCount(eventID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[eventID].CurrentAttendees
}

func (m *memStore) getReg(id string) *models.Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg, ok := m.regs[id]; ok {
		copied := *reg
		return &copied
	}
	return nil
}

// eventStore
//
// GetByID exists with a string id on the registration side, so the
// event accessor lives on a view type instead of memStore itself.

type eventsView struct{ *memStore }

func (v eventsView) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	ev, ok := v.events[id]
	if !ok {
		return nil, nil
	}
	copied := *ev
	return &copied, nil
}

func (m *memStore) ListIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.events))
	for id := range m.events {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) IncrementAttendees(ctx context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return fmt.Errorf("event %d not found", eventID)
	}
	ev.CurrentAttendees++
	return nil
}

func (m *memStore) DecrementAttendees(ctx context.Context, eventID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return false, fmt.Errorf("event %d not found", eventID)
	}
	if ev.CurrentAttendees == 0 {
		return true, nil
	}
	ev.CurrentAttendees--
	return false, nil
}

func (m *memStore) SetAttendeeCount(ctx context.Context, eventID int64, count int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return false, fmt.Errorf("event %d not found", eventID)
	}
	if ev.CurrentAttendees == count {
		return false, nil
	}
	ev.CurrentAttendees = count
	return true, nil
}

// registrationStore

func (m *memStore) activeLocked(eventID, attendeeID int64) *models.Registration {
	for _, reg := range m.regs {
		if reg.EventID != eventID || reg.AttendeeID != attendeeID {
			continue
		}
		switch reg.Status {
		case models.StatusRegistered, models.StatusAttended, models.StatusNoShow:
			return reg
		}
	}
	return nil
}

func (m *memStore) activeCountLocked(eventID int64) int {
	count := 0
	for _, reg := range m.regs {
		if reg.EventID != eventID {
			continue
		}
		switch reg.Status {
		case models.StatusRegistered, models.StatusAttended, models.StatusNoShow:
			count++
		}
	}
	return count
}

func (m *memStore) insertLocked(reg *models.Registration) {
	reg.ID = uuid.New().String()
	reg.RegisteredAt = time.Now()
	reg.UpdatedAt = reg.RegisteredAt
	copied := *reg
	m.regs[reg.ID] = &copied
}

func (m *memStore) CreateSettled(ctx context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[reg.EventID]
	if !ok || ev.Status != models.EventStatusPublished || ev.IsFull() {
		return errs.ErrEventFull
	}
	if m.activeLocked(reg.EventID, reg.AttendeeID) != nil {
		return errs.ErrAlreadyRegistered
	}
	ev.CurrentAttendees++
	m.insertLocked(reg)
	return nil
}

func (m *memStore) CreatePending(ctx context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[reg.EventID]
	if !ok || ev.Status != models.EventStatusPublished {
		return errs.ErrEventFull
	}
	if ev.MaxAttendees != nil && m.activeCountLocked(reg.EventID) >= *ev.MaxAttendees {
		return errs.ErrEventFull
	}
	if m.activeLocked(reg.EventID, reg.AttendeeID) != nil {
		return errs.ErrAlreadyRegistered
	}
	m.insertLocked(reg)
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*models.Registration, error) {
	return m.getReg(id), nil
}

func (m *memStore) GetByOrderID(ctx context.Context, orderID string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.regs {
		if reg.OrderID != nil && *reg.OrderID == orderID {
			copied := *reg
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetActive(ctx context.Context, eventID, attendeeID int64) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reg := m.activeLocked(eventID, attendeeID); reg != nil {
		copied := *reg
		return &copied, nil
	}
	return nil, nil
}

func (m *memStore) MarkCancelled(ctx context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok || reg.Status != models.StatusRegistered {
		return "", false, nil
	}
	reg.Status = models.StatusCancelled
	reg.UpdatedAt = time.Now()
	return reg.PaymentStatus, true, nil
}

func (m *memStore) CompletePayment(ctx context.Context, id, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok || reg.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	reg.PaymentStatus = models.PaymentCompleted
	reg.Status = models.StatusRegistered
	reg.PaymentID = &paymentID
	reg.UpdatedAt = time.Now()
	return true, nil
}

func (m *memStore) SetOrder(ctx context.Context, id, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok {
		return fmt.Errorf("registration %s not found", id)
	}
	reg.OrderID = &orderID
	reg.UpdatedAt = time.Now()
	return nil
}

func (m *memStore) PurgeStale(ctx context.Context, eventID, attendeeID int64, keepID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, reg := range m.regs {
		if reg.EventID != eventID || reg.AttendeeID != attendeeID || id == keepID {
			continue
		}
		if reg.PaymentStatus == models.PaymentPending || reg.Status == models.StatusCancelled {
			delete(m.regs, id)
			purged++
		}
	}
	return purged, nil
}

func (m *memStore) DeletePending(ctx context.Context, id string, attendeeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok || reg.AttendeeID != attendeeID || reg.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	delete(m.regs, id)
	return true, nil
}

func (m *memStore) DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, reg := range m.regs {
		if reg.PaymentStatus == models.PaymentPending && reg.RegisteredAt.Before(olderThan) {
			delete(m.regs, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) CountSettled(ctx context.Context, eventID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, reg := range m.regs {
		if reg.EventID == eventID && reg.Settled() {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListByAttendee(ctx context.Context, attendeeID int64, status string) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var regs []models.Registration
	for _, reg := range m.regs {
		if reg.AttendeeID != attendeeID {
			continue
		}
		if status != "" && reg.Status != status {
			continue
		}
		regs = append(regs, *reg)
	}
	return regs, nil
}

func (m *memStore) ListCompletedByAttendee(ctx context.Context, attendeeID int64) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var regs []models.Registration
	for _, reg := range m.regs {
		if reg.AttendeeID == attendeeID && reg.PaymentStatus == models.PaymentCompleted {
			regs = append(regs, *reg)
		}
	}
	return regs, nil
}

func (m *memStore) ListByEvent(ctx context.Context, eventID int64, status string) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var regs []models.Registration
	for _, reg := range m.regs {
		if reg.EventID != eventID {
			continue
		}
		if status != "" && reg.Status != status {
			continue
		}
		regs = append(regs, *reg)
	}
	return regs, nil
}

// fakeGateway signs and verifies with real HMACs so tamper tests cover
// the actual signature scheme.
type fakeGateway struct {
	checkoutSecret string
	webhookSecret  string
	fail           bool

	mu     sync.Mutex
	nextID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		checkoutSecret: "checkout-secret",
		webhookSecret:  "webhook-secret",
	}
}

func (g *fakeGateway) CreateOrder(ctx context.Context, req external.OrderRequest) (*external.Order, error) {
	if g.fail {
		return nil, fmt.Errorf("%w: connection refused", errs.ErrGatewayUnavailable)
	}
	g.mu.Lock()
	g.nextID++
	id := fmt.Sprintf("order_%06d", g.nextID)
	g.mu.Unlock()
	return &external.Order{
		ID:       id,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	return external.CheckoutSignature(g.checkoutSecret, orderID, paymentID) == signature
}

func (g *fakeGateway) VerifyWebhookSignature(rawBody []byte, signature string) bool {
	return external.WebhookSignature(g.webhookSecret, rawBody) == signature
}

func (g *fakeGateway) signCheckout(orderID, paymentID string) string {
	return external.CheckoutSignature(g.checkoutSecret, orderID, paymentID)
}

func (g *fakeGateway) signWebhook(rawBody []byte) string {
	return external.WebhookSignature(g.webhookSecret, rawBody)
}

// capturePublisher records published subjects; publishing never fails.
type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *capturePublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *capturePublisher) published(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, s := range p.subjects {
		if s == subject {
			count++
		}
	}
	return count
}

func intPtr(v int) *int { return &v }
