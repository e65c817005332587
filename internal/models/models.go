package models

// RegisterResponse - ответ на попытку регистрации
type RegisterResponse struct {
	ID            string `json:"id"`
	EventID       int64  `json:"event_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	PaymentAmount int64  `json:"payment_amount"`
}

// CreateOrderRequest - запрос на создание заказа в платежном шлюзе
type CreateOrderRequest struct {
	RegistrationID string `json:"registration_id" binding:"required"`
}

// CreateOrderResponse - данные заказа для checkout на клиенте
type CreateOrderResponse struct {
	OrderID        string `json:"order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	RegistrationID string `json:"registration_id"`
}

// VerifyPaymentRequest - синхронная верификация после checkout
type VerifyPaymentRequest struct {
	OrderID        string `json:"order_id" binding:"required"`
	PaymentID      string `json:"payment_id" binding:"required"`
	Signature      string `json:"signature" binding:"required"`
	RegistrationID string `json:"registration_id" binding:"required"`
}

// WebhookEnvelope - тело webhook уведомления от платежного шлюза
type WebhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// PaymentEntity - сущность платежа внутри webhook payload
type PaymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Webhook event types delivered by the gateway.
const (
	WebhookPaymentCaptured = "payment.captured"
	WebhookPaymentFailed   = "payment.failed"
)

// AuditResponse - результат пересчета счетчика участников
type AuditResponse struct {
	EventID    int64 `json:"event_id"`
	Recomputed int   `json:"recomputed"`
	Corrected  bool  `json:"corrected"`
}

// ListRegistrationsResponseItem - элемент списка регистраций
type ListRegistrationsResponseItem struct {
	ID            string `json:"id"`
	EventID       int64  `json:"event_id"`
	AttendeeID    int64  `json:"attendee_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	RegisteredAt  string `json:"registered_at"`
}

// PaymentHistoryItem - элемент истории платежей пользователя
type PaymentHistoryItem struct {
	RegistrationID string  `json:"registration_id"`
	EventID        int64   `json:"event_id"`
	Amount         int64   `json:"amount"`
	OrderID        *string `json:"order_id"`
	PaymentID      *string `json:"payment_id"`
	PaidAt         string  `json:"paid_at"`
}
