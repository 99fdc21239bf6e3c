package httpapi

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"societycore/pkg/domain"
)

func (h *handler) mountInvoices(r *mux.Router) {
	r.HandleFunc("/invoices", h.listInvoices).Methods(http.MethodGet)
	r.HandleFunc("/invoices", h.createInvoice).Methods(http.MethodPost)
	r.HandleFunc("/invoices/{id}", h.getInvoice).Methods(http.MethodGet)
	r.HandleFunc("/invoices/{id}/issue", h.invoiceAction(h.Billing.Issue)).Methods(http.MethodPost)
	r.HandleFunc("/invoices/{id}/void", h.invoiceAction(h.Billing.Void)).Methods(http.MethodPost)
	r.HandleFunc("/invoices/{id}/payment-session", h.invoiceAction(h.Billing.CreatePaymentSession)).Methods(http.MethodPost)
}

func (h *handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Billing.List(r.Context(), principalFrom(r).Scope(), listingQuery(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.Invoice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": rows})
}

func (h *handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var inv domain.Invoice
	if !decodeJSON(w, r, &inv) {
		return
	}
	created, err := h.Billing.CreateInvoice(r.Context(), principalFrom(r).Scope(), inv)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": created})
}

func (h *handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Billing.Get(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"])
	h.writeInvoice(w, inv, err)
}

func (h *handler) invoiceAction(fn func(context.Context, domain.Scope, string) (domain.Invoice, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := fn(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"])
		h.writeInvoice(w, inv, err)
	}
}

func (h *handler) writeInvoice(w http.ResponseWriter, inv domain.Invoice, err error) {
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
}

// billingWebhook is unauthenticated; the provider signature is the credential.
func (h *handler) billingWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhook))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}
	if err := h.Billing.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"received": true})
}
