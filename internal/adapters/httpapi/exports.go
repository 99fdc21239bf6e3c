package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"societycore/internal/exports"
)

func (h *handler) mountExports(r *mux.Router) {
	if h.Exports == nil {
		return
	}
	r.HandleFunc("/exports", h.createExport).Methods(http.MethodPost)
	r.HandleFunc("/exports/{id}", h.getExport).Methods(http.MethodGet)
	r.HandleFunc("/exports/{id}/artifacts/{format}", h.downloadExport).Methods(http.MethodGet)
}

type exportRequest struct {
	Dataset string           `json:"dataset"`
	Formats []exports.Format `json:"formats"`
}

// createExport takes the dataset from the body and the listing query
// (q, sort, order, filter[...]) from the URL.
func (h *handler) createExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rec, err := h.Exports.Enqueue(r.Context(), principalFrom(r).Scope(), exports.Input{
		Dataset: req.Dataset,
		Formats: req.Formats,
		Query:   listingQuery(r),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": rec})
}

func (h *handler) getExport(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Exports.Get(principalFrom(r).Scope(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": rec})
}

func (h *handler) downloadExport(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	art, body, err := h.Exports.Open(r.Context(), principalFrom(r).Scope(), vars["id"], exports.Format(vars["format"]))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer func() { _ = body.Close() }()
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "export."+string(art.Format)))
	w.Header().Set("Content-Length", strconv.FormatInt(art.SizeBytes, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.lggr.Warnw("export download interrupted", "export_id", vars["id"], "err", err)
	}
}
