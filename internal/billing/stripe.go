package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// StripeGateway creates Stripe Checkout sessions through a private client
// rather than the package level globals.
type StripeGateway struct {
	client        *client.API
	webhookSecret string
}

// NewStripeGateway builds a gateway. backends may be nil to use Stripe's defaults.
func NewStripeGateway(apiKey, webhookSecret string, backends *stripe.Backends) *StripeGateway {
	sc := &client.API{}
	sc.Init(apiKey, backends)
	return &StripeGateway{client: sc, webhookSecret: webhookSecret}
}

// CreateCheckoutSession implements PaymentGateway. The invoice id doubles as
// the idempotency key so a retried request never opens two sessions.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if req.AmountCents <= 0 {
		return CheckoutSession{}, fmt.Errorf("%w: amount must be positive", ErrPaymentFailed)
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.InvoiceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.Number),
					Description: stripe.String(req.Description),
				},
			},
		}},
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("invoice_id", req.InvoiceID)
	params.AddMetadata("organization_id", req.OrganizationID)
	params.IdempotencyKey = stripe.String("checkout-" + req.InvoiceID)
	params.Context = ctx

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return CheckoutSession{}, mapStripeError(err)
	}
	return CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// ParseWebhook implements WebhookVerifier for checkout.session.completed events.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (PaymentEvent, bool, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return PaymentEvent{}, false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if string(event.Type) != "checkout.session.completed" || event.Data == nil {
		return PaymentEvent{}, false, nil
	}
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return PaymentEvent{}, false, fmt.Errorf("decode checkout session: %w", err)
	}
	invoiceID := sess.ClientReferenceID
	if invoiceID == "" {
		invoiceID = sess.Metadata["invoice_id"]
	}
	return PaymentEvent{
		SessionID: sess.ID,
		InvoiceID: invoiceID,
		Paid:      sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}, true, nil
}

// mapStripeError keeps stripe types out of the billing service.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrProviderDown, stripeErr.Msg)
		}
		return fmt.Errorf("%w: %s", ErrPaymentFailed, stripeErr.Msg)
	}
	return fmt.Errorf("gateway internal error: %w", err)
}
