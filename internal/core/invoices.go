package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"societycore/pkg/domain"
)

// InvoiceNumberPrefix returns the per-month prefix, e.g. "INV-202603-".
func InvoiceNumberPrefix(year int, month int) string {
	return fmt.Sprintf("INV-%04d%02d-", year, month)
}

// nextInvoiceNumber continues after the highest sequence the organization has
// used under this month's prefix. Gaps are not reused.
func (s *Service) nextInvoiceNumber(view TransactionView, orgID string) string {
	now := s.now().UTC()
	prefix := InvoiceNumberPrefix(now.Year(), int(now.Month()))
	seq := 0
	for _, inv := range view.Invoices().List() {
		if inv.OrganizationID != orgID {
			continue
		}
		suffix, ok := strings.CutPrefix(inv.Number, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(suffix); err == nil && n > seq {
			seq = n
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq+1)
}

func (s *Service) invoices() resource[domain.Invoice] {
	return resource[domain.Invoice]{
		entity: domain.EntityInvoice,
		table:  func(tx Transaction) domain.Table[domain.Invoice] { return tx.Invoices() },
		view:   func(v TransactionView) domain.ReadTable[domain.Invoice] { return v.Invoices() },
		prepare: func(view TransactionView, scope domain.Scope, inv *domain.Invoice) error {
			defaultOrg(scope, &inv.OrganizationID)
			problems := domain.ValidationErrors{}
			inv.Description = domain.SanitizeText(inv.Description)
			inv.Currency = strings.ToLower(strings.TrimSpace(inv.Currency))
			if inv.Status == "" {
				inv.Status = domain.InvoiceDraft
			}
			switch inv.Status {
			case domain.InvoiceDraft, domain.InvoiceIssued, domain.InvoicePaid, domain.InvoiceVoid:
			default:
				problems.Add("status", fmt.Sprintf("unknown status %q", inv.Status))
			}
			if inv.AmountCents <= 0 {
				problems.Add("amount_cents", "must be positive")
			}
			if len(inv.Currency) != 3 {
				problems.Add("currency", "must be a three letter code")
			}
			if inv.DueDate.IsZero() {
				problems.Add("due_date", "is required")
			}
			if !requireInOrg(view.Units(), inv.OrganizationID, inv.UnitID) {
				problems.Add("unit_id", "unknown unit")
			}
			if inv.ProfileID != "" && !requireInOrg(view.Profiles(), inv.OrganizationID, inv.ProfileID) {
				problems.Add("profile_id", "unknown member")
			}
			if inv.Number == "" {
				inv.Number = s.nextInvoiceNumber(view, inv.OrganizationID)
			}
			return problems.Err()
		},
		canWrite: managerOnly[domain.Invoice],
		canRead: func(scope domain.Scope, inv domain.Invoice) bool {
			return scope.Role.CanManage() || (inv.ProfileID != "" && inv.ProfileID == scope.ActorID)
		},
	}
}

// CreateInvoice stores a draft invoice and assigns the next monthly number.
func (s *Service) CreateInvoice(ctx context.Context, scope domain.Scope, inv domain.Invoice) (domain.Invoice, Result, error) {
	return createRecord(ctx, s, s.invoices(), scope, inv)
}

// UpdateInvoice mutates an invoice; lifecycle checks belong to the mutator.
func (s *Service) UpdateInvoice(ctx context.Context, scope domain.Scope, id string, mutator func(*domain.Invoice) error) (domain.Invoice, Result, error) {
	return updateRecord(ctx, s, s.invoices(), scope, id, mutator)
}

// GetInvoice fetches an invoice visible to scope.
func (s *Service) GetInvoice(ctx context.Context, scope domain.Scope, id string) (domain.Invoice, error) {
	return getRecord(ctx, s, s.invoices(), scope, id)
}

// ListInvoices returns invoices visible to scope: all for managers, their own for members.
func (s *Service) ListInvoices(ctx context.Context, scope domain.Scope) ([]domain.Invoice, error) {
	return listRecords(ctx, s, s.invoices(), scope)
}
