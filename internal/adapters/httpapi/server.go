// Package httpapi exposes the society services over JSON/HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"societycore/internal/billing"
	"societycore/internal/core"
	"societycore/internal/documents"
	"societycore/internal/exports"
	"societycore/internal/identity"
	"societycore/internal/provisioning"
	"societycore/internal/settings"
	"societycore/pkg/logger"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadBody = 32 << 20
	maxWebhook    = 64 << 10
)

// Services bundles what the router dispatches to. Exports and Gatherer are
// optional; their routes are not mounted when nil.
type Services struct {
	Core         *core.Service
	Directory    *identity.Directory
	Settings     *settings.Service
	Provisioning *provisioning.Service
	Documents    *documents.Service
	Billing      *billing.Service
	Exports      *exports.Worker
	Gatherer     prometheus.Gatherer
}

type handler struct {
	Services
	lggr logger.Logger
}

// NewRouter builds the API router.
func NewRouter(s Services) *mux.Router {
	h := &handler{Services: s, lggr: s.Core.Logger().Named("http")}

	r := mux.NewRouter()
	r.Use(h.logRequests)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}).Methods(http.MethodGet)
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/signin", h.signIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin/verify", h.verifySignIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", h.signOut).Methods(http.MethodPost)
	api.HandleFunc("/auth/password-reset", h.requestPasswordReset).Methods(http.MethodPost)
	api.HandleFunc("/auth/password-reset/complete", h.completePasswordReset).Methods(http.MethodPost)
	api.HandleFunc("/billing/webhook", h.billingWebhook).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(h.requireSession)
	h.mountSelf(private)
	h.mountMembers(private)
	h.mountRecords(private)
	h.mountDocuments(private)
	h.mountInvoices(private)
	h.mountExports(private)
	return r
}

type ctxKey int

const (
	principalKey ctxKey = iota
	tokenKey
)

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// requireSession resolves the bearer token. A session that must change its
// password may only reach the password change route.
func (h *handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := h.Directory.Authenticate(r.Context(), token)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		if principal.MustChangePassword && !(r.Method == http.MethodPost && r.URL.Path == "/api/v1/me/password") {
			writeError(w, http.StatusForbidden, "password change required")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) identity.Principal {
	p, _ := r.Context().Value(principalKey).(identity.Principal)
	return p
}

func tokenFrom(r *http.Request) string {
	t, _ := r.Context().Value(tokenKey).(string)
	return t
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.lggr.Debugw("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// decodeJSON reads a bounded JSON body; an empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
