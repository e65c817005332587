package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"attendly/internal/errs"
	"attendly/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type paymentFixture struct {
	payments      *PaymentService
	registrations *RegistrationService
	store         *memStore
	gateway       *fakeGateway
	pub           *capturePublisher
}

func newPaymentFixture() *paymentFixture {
	store := newMemStore()
	gateway := newFakeGateway()
	pub := &capturePublisher{}

	return &paymentFixture{
		payments:      NewPaymentService(store, eventsView{store}, gateway, pub, 0),
		registrations: NewRegistrationService(store, eventsView{store}, pub),
		store:         store,
		gateway:       gateway,
		pub:           pub,
	}
}

// pendingWithOrder registers an attendee for a paid event and creates a
// gateway order, returning the registration and order ids.
func (f *paymentFixture) pendingWithOrder(t *testing.T, eventID, attendeeID int64) (string, string) {
	t.Helper()

	reg, err := f.registrations.Register(context.Background(), eventID, attendeeID)
	require.NoError(t, err)

	order, err := f.payments.CreateOrder(context.Background(), reg.ID, attendeeID)
	require.NoError(t, err)

	return reg.ID, order.OrderID
}

func capturedWebhookBody(orderID, paymentID string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event": models.WebhookPaymentCaptured,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": orderID,
					"status":   "captured",
					"amount":   5000,
					"currency": "INR",
				},
			},
		},
	})
	return body
}

func failedWebhookBody(orderID, paymentID string) []byte {
	body, _ := json.Marshal(map[string]interface{}{
		"event": models.WebhookPaymentFailed,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": orderID,
					"status":   "failed",
				},
			},
		},
	})
	return body
}

func TestCreateOrder_ReturnsCheckoutData(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(10), Price: 5000, Currency: "INR"})

	reg, err := f.registrations.Register(context.Background(), 1, 100)
	require.NoError(t, err)

	order, err := f.payments.CreateOrder(context.Background(), reg.ID, 100)
	require.NoError(t, err)

	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, int64(5000), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, reg.ID, order.RegistrationID)

	stored := f.store.getReg(reg.ID)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, order.OrderID, *stored.OrderID)
	assert.Equal(t, 1, f.pub.published(models.EventPaymentInitiated))
}

func TestCreateOrder_NotOwner(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, Price: 5000, Currency: "INR"})

	reg, err := f.registrations.Register(context.Background(), 1, 100)
	require.NoError(t, err)

	_, err = f.payments.CreateOrder(context.Background(), reg.ID, 999)
	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestCreateOrder_UnknownRegistration(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.payments.CreateOrder(context.Background(), "missing", 100)
	assert.ErrorIs(t, err, errs.ErrRegistrationNotFound)
}

func TestCreateOrder_SettledRegistrationRejected(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished})

	reg, err := f.registrations.Register(context.Background(), 1, 100)
	require.NoError(t, err)

	_, err = f.payments.CreateOrder(context.Background(), reg.ID, 100)
	assert.ErrorIs(t, err, errs.ErrRegistrationNotPending)
}

func TestCreateOrder_FreeEventRejected(t *testing.T) {
	f := newPaymentFixture()
	// Price dropped to zero after the pending row was created.
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, Price: 0})

	reg := &models.Registration{
		EventID:       1,
		AttendeeID:    100,
		Status:        models.StatusRegistered,
		PaymentStatus: models.PaymentPending,
	}
	require.NoError(t, f.store.CreatePending(context.Background(), reg))

	_, err := f.payments.CreateOrder(context.Background(), reg.ID, 100)
	assert.ErrorIs(t, err, errs.ErrFreeEvent)
}

func TestCreateOrder_GatewayDownLeavesRegistrationPending(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, Price: 5000, Currency: "INR"})

	reg, err := f.registrations.Register(context.Background(), 1, 100)
	require.NoError(t, err)

	f.gateway.fail = true
	_, err = f.payments.CreateOrder(context.Background(), reg.ID, 100)
	assert.ErrorIs(t, err, errs.ErrGatewayUnavailable)

	stored := f.store.getReg(reg.ID)
	assert.Equal(t, models.PaymentPending, stored.PaymentStatus)
	assert.Nil(t, stored.OrderID)

	// Retry succeeds once the gateway is back.
	f.gateway.fail = false
	_, err = f.payments.CreateOrder(context.Background(), reg.ID, 100)
	assert.NoError(t, err)
}

func TestCreateOrder_PurgesStaleRowsFirst(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(10), Price: 5000, Currency: "INR"})

	// A cancelled leftover from an earlier attempt.
	first, err := f.registrations.Register(context.Background(), 1, 100)
	require.NoError(t, err)
	require.NoError(t, f.registrations.Cancel(context.Background(), first.ID, 100))

	second, err := f.registrations.Register(context.Background(), 1, 100)
	require.NoError(t, err)

	_, err = f.payments.CreateOrder(context.Background(), second.ID, 100)
	require.NoError(t, err)

	assert.Nil(t, f.store.getReg(first.ID))
	assert.NotNil(t, f.store.getReg(second.ID))
}

func TestVerify_CompletesPaymentAndCountsSeat(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(10), Price: 5000, Currency: "INR"})

	regID, orderID := f.pendingWithOrder(t, 1, 100)
	require.Equal(t, 0, f.store.attendeeCount(1))

	reg, err := f.payments.Verify(context.Background(), &models.VerifyPaymentRequest{
		OrderID:        orderID,
		PaymentID:      "pay_001",
		Signature:      f.gateway.signCheckout(orderID, "pay_001"),
		RegistrationID: regID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.PaymentCompleted, reg.PaymentStatus)
	assert.Equal(t, models.StatusRegistered, reg.Status)
	require.NotNil(t, reg.PaymentID)
	assert.Equal(t, "pay_001", *reg.PaymentID)
	assert.Equal(t, 1, f.store.attendeeCount(1))
	assert.Equal(t, 1, f.pub.published(models.EventPaymentCompleted))
	assert.Equal(t, 1, f.pub.published(models.EventEmailConfirmation))
}

func TestVerify_TamperedSignatureRejected(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, Price: 5000, Currency: "INR"})

	regID, orderID := f.pendingWithOrder(t, 1, 100)

	_, err := f.payments.Verify(context.Background(), &models.VerifyPaymentRequest{
		OrderID:        orderID,
		PaymentID:      "pay_001",
		Signature:      f.gateway.signCheckout(orderID, "pay_other"),
		RegistrationID: regID,
	})
	assert.ErrorIs(t, err, errs.ErrInvalidSignature)

	assert.Equal(t, models.PaymentPending, f.store.getReg(regID).PaymentStatus)
	assert.Equal(t, 0, f.store.attendeeCount(1))
}

func TestVerify_UnknownRegistration(t *testing.T) {
	f := newPaymentFixture()

	_, err := f.payments.Verify(context.Background(), &models.VerifyPaymentRequest{
		OrderID:        "order_000001",
		PaymentID:      "pay_001",
		Signature:      f.gateway.signCheckout("order_000001", "pay_001"),
		RegistrationID: "missing",
	})
	assert.ErrorIs(t, err, errs.ErrRegistrationNotFound)
}

func TestWebhook_CapturedCompletesPayment(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(10), Price: 5000, Currency: "INR"})

	regID, orderID := f.pendingWithOrder(t, 1, 100)

	body := capturedWebhookBody(orderID, "pay_001")
	err := f.payments.HandleWebhook(context.Background(), body, f.gateway.signWebhook(body))
	require.NoError(t, err)

	stored := f.store.getReg(regID)
	assert.Equal(t, models.PaymentCompleted, stored.PaymentStatus)
	assert.Equal(t, 1, f.store.attendeeCount(1))
}

func TestWebhook_DuplicateDeliveryCountsOnce(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(10), Price: 5000, Currency: "INR"})

	_, orderID := f.pendingWithOrder(t, 1, 100)

	body := capturedWebhookBody(orderID, "pay_001")
	sig := f.gateway.signWebhook(body)

	require.NoError(t, f.payments.HandleWebhook(context.Background(), body, sig))
	// Redelivery acks without a second state change.
	require.NoError(t, f.payments.HandleWebhook(context.Background(), body, sig))

	assert.Equal(t, 1, f.store.attendeeCount(1))
	assert.Equal(t, 1, f.pub.published(models.EventPaymentCompleted))
}

// Both confirmation channels race for the same registration; only one
// may increment the counter.
func TestWebhookAndVerify_ConcurrentConfirmationCountsOnce(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(10), Price: 5000, Currency: "INR"})

	regID, orderID := f.pendingWithOrder(t, 1, 100)

	body := capturedWebhookBody(orderID, "pay_001")
	webhookSig := f.gateway.signWebhook(body)
	checkoutSig := f.gateway.signCheckout(orderID, "pay_001")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = f.payments.HandleWebhook(context.Background(), body, webhookSig)
	}()
	go func() {
		defer wg.Done()
		_, _ = f.payments.Verify(context.Background(), &models.VerifyPaymentRequest{
			OrderID:        orderID,
			PaymentID:      "pay_001",
			Signature:      checkoutSig,
			RegistrationID: regID,
		})
	}()
	wg.Wait()

	assert.Equal(t, models.PaymentCompleted, f.store.getReg(regID).PaymentStatus)
	assert.Equal(t, 1, f.store.attendeeCount(1))
	assert.Equal(t, 1, f.pub.published(models.EventPaymentCompleted))
}

func TestWebhook_TamperedBodyRejected(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, Price: 5000, Currency: "INR"})

	_, orderID := f.pendingWithOrder(t, 1, 100)

	body := capturedWebhookBody(orderID, "pay_001")
	sig := f.gateway.signWebhook(body)
	tampered := capturedWebhookBody(orderID, "pay_002")

	err := f.payments.HandleWebhook(context.Background(), tampered, sig)
	assert.ErrorIs(t, err, errs.ErrInvalidSignature)
	assert.Equal(t, 0, f.store.attendeeCount(1))
}

func TestWebhook_UnknownOrder(t *testing.T) {
	f := newPaymentFixture()

	body := capturedWebhookBody("order_unknown", "pay_001")
	err := f.payments.HandleWebhook(context.Background(), body, f.gateway.signWebhook(body))
	assert.ErrorIs(t, err, errs.ErrUnknownOrder)
}

func TestWebhook_FailedPaymentLeavesRegistrationPending(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(10), Price: 5000, Currency: "INR"})

	regID, orderID := f.pendingWithOrder(t, 1, 100)

	body := failedWebhookBody(orderID, "pay_001")
	require.NoError(t, f.payments.HandleWebhook(context.Background(), body, f.gateway.signWebhook(body)))

	assert.Equal(t, models.PaymentPending, f.store.getReg(regID).PaymentStatus)
	assert.Equal(t, 0, f.store.attendeeCount(1))
	assert.Equal(t, 1, f.pub.published(models.EventPaymentFailed))

	// A later-arriving success for the same order still settles.
	captured := capturedWebhookBody(orderID, "pay_002")
	require.NoError(t, f.payments.HandleWebhook(context.Background(), captured, f.gateway.signWebhook(captured)))
	assert.Equal(t, models.PaymentCompleted, f.store.getReg(regID).PaymentStatus)
	assert.Equal(t, 1, f.store.attendeeCount(1))
}

// One seat, two would-be payers: the second attendee must be rejected at
// admission while the first holds the pending seat, and settling the
// first never pushes the counter past capacity.
func TestPaidEvent_SingleSeatNeverSettlesPastCapacity(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(1), Price: 500, Currency: "INR"})

	regID, orderID := f.pendingWithOrder(t, 1, 100)

	_, err := f.registrations.Register(context.Background(), 1, 101)
	assert.ErrorIs(t, err, errs.ErrEventFull)

	body := capturedWebhookBody(orderID, "pay_001")
	require.NoError(t, f.payments.HandleWebhook(context.Background(), body, f.gateway.signWebhook(body)))

	assert.Equal(t, models.PaymentCompleted, f.store.getReg(regID).PaymentStatus)
	assert.Equal(t, 1, f.store.attendeeCount(1))

	_, err = f.registrations.Register(context.Background(), 1, 101)
	assert.ErrorIs(t, err, errs.ErrEventFull)
}

func TestWebhook_MalformedVerifiedBodyRejected(t *testing.T) {
	f := newPaymentFixture()

	body := []byte(`{"event":"payment.captured","payload":`)
	err := f.payments.HandleWebhook(context.Background(), body, f.gateway.signWebhook(body))
	assert.ErrorIs(t, err, errs.ErrMalformedPayload)
}

func TestWebhook_UnhandledEventTypeAcked(t *testing.T) {
	f := newPaymentFixture()

	body := []byte(fmt.Sprintf(`{"event":"refund.created","payload":{"payment":{"entity":{"order_id":"%s"}}}}`, "order_000001"))
	err := f.payments.HandleWebhook(context.Background(), body, f.gateway.signWebhook(body))
	assert.NoError(t, err)
}

func TestCancelPending_DeletesOwnRow(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, Price: 5000, Currency: "INR"})

	reg, err := f.registrations.Register(context.Background(), 1, 100)
	require.NoError(t, err)

	require.NoError(t, f.payments.CancelPending(context.Background(), reg.ID, 100))
	assert.Nil(t, f.store.getReg(reg.ID))

	// Already gone.
	err = f.payments.CancelPending(context.Background(), reg.ID, 100)
	assert.ErrorIs(t, err, errs.ErrRegistrationNotFound)
}

func TestCancelPending_OtherAttendeeRejected(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, Price: 5000, Currency: "INR"})

	reg, err := f.registrations.Register(context.Background(), 1, 100)
	require.NoError(t, err)

	err = f.payments.CancelPending(context.Background(), reg.ID, 999)
	assert.ErrorIs(t, err, errs.ErrRegistrationNotFound)
	assert.NotNil(t, f.store.getReg(reg.ID))
}

func TestHistory_ListsCompletedPayments(t *testing.T) {
	f := newPaymentFixture()
	f.store.addEvent(models.Event{ID: 1, Status: models.EventStatusPublished, MaxAttendees: intPtr(10), Price: 5000, Currency: "INR"})

	regID, orderID := f.pendingWithOrder(t, 1, 100)

	body := capturedWebhookBody(orderID, "pay_001")
	require.NoError(t, f.payments.HandleWebhook(context.Background(), body, f.gateway.signWebhook(body)))

	history, err := f.payments.History(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, regID, history[0].RegistrationID)
	assert.Equal(t, int64(5000), history[0].Amount)
	require.NotNil(t, history[0].PaymentID)
	assert.Equal(t, "pay_001", *history[0].PaymentID)
}
