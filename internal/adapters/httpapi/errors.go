package httpapi

import (
	"context"
	"errors"
	"net/http"

	"societycore/internal/billing"
	"societycore/internal/documents"
	"societycore/internal/exports"
	"societycore/internal/identity"
	"societycore/pkg/domain"
)

var statusByError = []struct {
	err    error
	status int
}{
	{identity.ErrInvalidCredentials, http.StatusUnauthorized},
	{identity.ErrInvalidSession, http.StatusUnauthorized},
	{identity.ErrAccountLocked, http.StatusLocked},
	{identity.ErrInactive, http.StatusForbidden},
	{identity.ErrOutsideValidity, http.StatusForbidden},
	{identity.ErrEmailTaken, http.StatusConflict},
	{identity.ErrInvalidCode, http.StatusBadRequest},
	{identity.ErrCodeExpired, http.StatusBadRequest},
	{identity.ErrNoChallenge, http.StatusBadRequest},
	{identity.ErrNoRecipient, http.StatusUnprocessableEntity},
	{identity.ErrPasswordMismatch, http.StatusUnprocessableEntity},
	{billing.ErrInvalidSignature, http.StatusBadRequest},
	{billing.ErrPaymentFailed, http.StatusPaymentRequired},
	{billing.ErrProviderDown, http.StatusBadGateway},
	{billing.ErrPaymentsDisabled, http.StatusServiceUnavailable},
	{documents.ErrUnsupported, http.StatusNotImplemented},
	{exports.ErrQueueFull, http.StatusServiceUnavailable},
	{domain.ErrNotFound, http.StatusNotFound},
	{domain.ErrForbidden, http.StatusForbidden},
	{domain.ErrConflict, http.StatusConflict},
	{domain.ErrInvalidValue, http.StatusUnprocessableEntity},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// writeServiceError maps service errors onto status codes. Validation and rule
// failures carry their details; unknown errors are logged and hidden.
func (h *handler) writeServiceError(w http.ResponseWriter, err error) {
	var fields domain.ValidationErrors
	if errors.As(err, &fields) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "validation failed", "fields": fields})
		return
	}
	var violation domain.RuleViolationError
	if errors.As(err, &violation) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": violation.Error(), "violations": violation.Result.Violations})
		return
	}
	for _, m := range statusByError {
		if errors.Is(err, m.err) {
			writeError(w, m.status, err.Error())
			return
		}
	}
	h.lggr.Errorw("request failed", "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
