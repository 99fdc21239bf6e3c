package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"societycore/internal/core"
	"societycore/internal/listing"
	"societycore/internal/provisioning"
	"societycore/pkg/domain"
)

func (h *handler) mountMembers(r *mux.Router) {
	r.HandleFunc("/members", h.listMembers).Methods(http.MethodGet)
	r.HandleFunc("/members", h.createMember).Methods(http.MethodPost)
	r.HandleFunc("/members/{id}", h.getMember).Methods(http.MethodGet)
	r.HandleFunc("/members/{id}", h.updateMember).Methods(http.MethodPatch)
}

func (h *handler) createMember(w http.ResponseWriter, r *http.Request) {
	var req provisioning.MemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.Provisioning.CreateMember(r.Context(), principalFrom(r), tokenFrom(r), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) listMembers(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Core.ListMembers(r.Context(), principalFrom(r).Scope())
	if err == nil {
		rows, err = listing.Members.Apply(rows, listingQuery(r))
	}
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if rows == nil {
		rows = []domain.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": rows})
}

func (h *handler) getMember(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Core.GetProfile(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"])
	h.writeProfile(w, profile, err)
}

type memberUpdateRequest struct {
	FullName    *string    `json:"full_name"`
	Phone       *string    `json:"phone"`
	Role        *string    `json:"role"`
	Status      *string    `json:"status"`
	ActiveFrom  *time.Time `json:"active_from"`
	ActiveUntil *time.Time `json:"active_until"`
}

func (h *handler) updateMember(w http.ResponseWriter, r *http.Request) {
	var req memberUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, res, err := h.Core.UpdateMember(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"], core.MemberUpdate(req))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeRecord(w, http.StatusOK, "profile", profile, res)
}
