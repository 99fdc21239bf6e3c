package billing

import (
	"context"
	"errors"
)

var (
	// ErrPaymentFailed marks a rejection by the payment provider.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrProviderDown marks a provider outage; the request may be retried later.
	ErrProviderDown = errors.New("payment provider unavailable")
	// ErrPaymentsDisabled is returned when no gateway is configured.
	ErrPaymentsDisabled = errors.New("online payments are not configured")
	// ErrInvalidSignature rejects webhook payloads that fail verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CheckoutRequest describes one hosted payment page for an invoice.
type CheckoutRequest struct {
	InvoiceID      string
	OrganizationID string
	Number         string
	Description    string
	AmountCents    int64
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
}

// CheckoutSession is the provider's reply.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentEvent is a verified provider notification.
type PaymentEvent struct {
	SessionID string
	InvoiceID string
	Paid      bool
}

// PaymentGateway creates hosted checkout sessions.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// WebhookVerifier authenticates and decodes provider callbacks. ok is false
// for event types billing ignores.
type WebhookVerifier interface {
	ParseWebhook(payload []byte, signature string) (ev PaymentEvent, ok bool, err error)
}
