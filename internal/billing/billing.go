// Package billing raises invoices against units and collects payment through
// hosted checkout sessions.
package billing

import (
	"context"
	"fmt"

	"societycore/internal/config"
	"societycore/internal/core"
	"societycore/internal/listing"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

// Service implements the invoice lifecycle: draft, issued, then paid or void.
type Service struct {
	svc      *core.Service
	gateway  PaymentGateway
	verifier WebhookVerifier
	cfg      config.Billing
	lggr     logger.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithGateway enables payment sessions.
func WithGateway(g PaymentGateway) Option { return func(s *Service) { s.gateway = g } }

// WithWebhookVerifier enables provider callbacks.
func WithWebhookVerifier(v WebhookVerifier) Option { return func(s *Service) { s.verifier = v } }

// New wires the billing service.
func New(svc *core.Service, cfg config.Billing, opts ...Option) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	s := &Service{svc: svc, cfg: cfg, lggr: svc.Logger().Named("billing")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func transition(inv *domain.Invoice, to domain.InvoiceStatus, from ...domain.InvoiceStatus) error {
	for _, f := range from {
		if inv.Status == f {
			inv.Status = to
			return nil
		}
	}
	return fmt.Errorf("%w: invoice %s is %s and cannot become %s", domain.ErrConflict, inv.Number, inv.Status, to)
}

// CreateInvoice stores a draft with the next INV-<yyyymm>-<seq> number.
func (s *Service) CreateInvoice(ctx context.Context, scope domain.Scope, inv domain.Invoice) (domain.Invoice, error) {
	inv.Status = domain.InvoiceDraft
	inv.Number = ""
	inv.PaymentSessionID, inv.PaymentURL, inv.PaidAt = "", "", nil
	if inv.Currency == "" {
		inv.Currency = s.cfg.Currency
	}
	created, _, err := s.svc.CreateInvoice(ctx, scope, inv)
	return created, err
}

// Issue makes a draft payable.
func (s *Service) Issue(ctx context.Context, scope domain.Scope, id string) (domain.Invoice, error) {
	inv, _, err := s.svc.UpdateInvoice(ctx, scope, id, func(inv *domain.Invoice) error {
		return transition(inv, domain.InvoiceIssued, domain.InvoiceDraft)
	})
	return inv, err
}

// Void cancels a draft or issued invoice.
func (s *Service) Void(ctx context.Context, scope domain.Scope, id string) (domain.Invoice, error) {
	inv, _, err := s.svc.UpdateInvoice(ctx, scope, id, func(inv *domain.Invoice) error {
		return transition(inv, domain.InvoiceVoid, domain.InvoiceDraft, domain.InvoiceIssued)
	})
	return inv, err
}

// Get returns an invoice visible to scope.
func (s *Service) Get(ctx context.Context, scope domain.Scope, id string) (domain.Invoice, error) {
	return s.svc.GetInvoice(ctx, scope, id)
}

// List returns invoices matching q.
func (s *Service) List(ctx context.Context, scope domain.Scope, q listing.Query) ([]domain.Invoice, error) {
	invoices, err := s.svc.ListInvoices(ctx, scope)
	if err != nil {
		return nil, err
	}
	return listing.Invoices.Apply(invoices, q)
}

// ledgerScope writes payment state on behalf of actor. Members paying their
// own invoice may not edit invoices, so the write runs with system rights.
func ledgerScope(inv domain.Invoice, actorID string) domain.Scope {
	scope := domain.System(inv.OrganizationID)
	if actorID != "" {
		scope.ActorID = actorID
	}
	return scope
}

// CreatePaymentSession opens a checkout session for an issued invoice and
// stores its id and URL.
func (s *Service) CreatePaymentSession(ctx context.Context, scope domain.Scope, id string) (domain.Invoice, error) {
	if s.gateway == nil {
		return domain.Invoice{}, ErrPaymentsDisabled
	}
	inv, err := s.svc.GetInvoice(ctx, scope, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	if inv.Status != domain.InvoiceIssued {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s is %s", domain.ErrConflict, inv.Number, inv.Status)
	}
	var email string
	if inv.ProfileID != "" {
		if p, err := s.svc.GetProfile(ctx, domain.System(inv.OrganizationID), inv.ProfileID); err == nil {
			email = p.Email
		}
	}
	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		InvoiceID:      inv.ID,
		OrganizationID: inv.OrganizationID,
		Number:         inv.Number,
		Description:    inv.Description,
		AmountCents:    inv.AmountCents,
		Currency:       inv.Currency,
		CustomerEmail:  email,
		SuccessURL:     s.cfg.SuccessURL,
		CancelURL:      s.cfg.CancelURL,
	})
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("create payment session: %w", err)
	}
	updated, _, err := s.svc.UpdateInvoice(ctx, ledgerScope(inv, scope.ActorID), id, func(rec *domain.Invoice) error {
		if rec.Status != domain.InvoiceIssued {
			return fmt.Errorf("%w: invoice %s is %s", domain.ErrConflict, rec.Number, rec.Status)
		}
		rec.PaymentSessionID = sess.ID
		rec.PaymentURL = sess.URL
		return nil
	})
	return updated, err
}

// MarkPaid settles an issued invoice. A non-empty sessionID must match the
// session stored on the invoice.
func (s *Service) MarkPaid(ctx context.Context, scope domain.Scope, id, sessionID string) (domain.Invoice, error) {
	inv, _, err := s.svc.UpdateInvoice(ctx, scope, id, func(rec *domain.Invoice) error {
		if sessionID != "" && rec.PaymentSessionID != "" && rec.PaymentSessionID != sessionID {
			return fmt.Errorf("%w: payment session mismatch for invoice %s", domain.ErrConflict, rec.Number)
		}
		if err := transition(rec, domain.InvoicePaid, domain.InvoiceIssued); err != nil {
			return err
		}
		now := s.svc.Now().UTC()
		rec.PaidAt = &now
		return nil
	})
	return inv, err
}

// HandleWebhook verifies a provider callback and settles the invoice it names.
// Duplicate deliveries of an already paid invoice are acknowledged.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.verifier == nil {
		return ErrPaymentsDisabled
	}
	ev, ok, err := s.verifier.ParseWebhook(payload, signature)
	if err != nil {
		return err
	}
	if !ok || !ev.Paid {
		return nil
	}
	inv, err := s.svc.GetInvoice(ctx, domain.System(""), ev.InvoiceID)
	if err != nil {
		return err
	}
	if inv.Status == domain.InvoicePaid {
		s.lggr.Infow("duplicate payment notification", "invoice_id", inv.ID, "session_id", ev.SessionID)
		return nil
	}
	_, err = s.MarkPaid(ctx, ledgerScope(inv, "payment-webhook"), inv.ID, ev.SessionID)
	return err
}
