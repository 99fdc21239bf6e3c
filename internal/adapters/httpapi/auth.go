package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := h.Directory.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type verifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

func (h *handler) verifySignIn(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.Directory.CompleteSignIn(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": session})
}

func (h *handler) signOut(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		_ = h.Directory.SignOut(r.Context(), token)
	}
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// requestPasswordReset always answers 202 so callers cannot probe addresses.
func (h *handler) requestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Directory.RequestPasswordReset(r.Context(), req.Email); err != nil {
		h.lggr.Warnw("password reset request failed", "err", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "if the address is registered a code was sent"})
}

func (h *handler) completePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Directory.CompletePasswordReset(r.Context(), req.Email, req.Code, req.Password, req.ConfirmPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) mountSelf(r *mux.Router) {
	r.HandleFunc("/me", h.getSelf).Methods(http.MethodGet)
	r.HandleFunc("/me/password", h.changePassword).Methods(http.MethodPost)
	r.HandleFunc("/me/two-factor/method", h.setTwoFactorMethod).Methods(http.MethodPut)
	r.HandleFunc("/me/two-factor/enable", h.enableTwoFactor).Methods(http.MethodPost)
	r.HandleFunc("/me/two-factor/resend", h.resendTwoFactor).Methods(http.MethodPost)
	r.HandleFunc("/me/two-factor/verify", h.verifyTwoFactor).Methods(http.MethodPost)
	r.HandleFunc("/me/two-factor/disable", h.disableTwoFactor).Methods(http.MethodPost)
}

func (h *handler) getSelf(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	profile, err := h.Core.GetProfile(r.Context(), p.Scope(), p.ProfileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.Settings.ChangePassword(r.Context(), principalFrom(r), tokenFrom(r), req.Password, req.ConfirmPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setTwoFactorMethod(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := h.Settings.SetPreferredMethod(r.Context(), principalFrom(r), req.Method)
	h.writeProfile(w, profile, err)
}

func (h *handler) enableTwoFactor(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Settings.EnableTwoFactor(r.Context(), principalFrom(r))
	h.writeProfile(w, profile, err)
}

func (h *handler) resendTwoFactor(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Settings.ResendTwoFactorCode(r.Context(), principalFrom(r))
	h.writeProfile(w, profile, err)
}

func (h *handler) verifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := h.Settings.VerifyTwoFactor(r.Context(), principalFrom(r), req.Code)
	h.writeProfile(w, profile, err)
}

func (h *handler) disableTwoFactor(w http.ResponseWriter, r *http.Request) {
	profile, err := h.Settings.DisableTwoFactor(r.Context(), principalFrom(r))
	h.writeProfile(w, profile, err)
}

func (h *handler) writeProfile(w http.ResponseWriter, profile any, err error) {
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": profile})
}
