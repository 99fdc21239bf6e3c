package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"societycore/internal/documents"
	"societycore/pkg/domain"
)

func (h *handler) mountDocuments(r *mux.Router) {
	r.HandleFunc("/documents", h.listDocuments).Methods(http.MethodGet)
	r.HandleFunc("/documents", h.uploadDocument).Methods(http.MethodPost)
	r.HandleFunc("/documents/{id}", h.getDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}", h.deleteDocument).Methods(http.MethodDelete)
	r.HandleFunc("/documents/{id}/content", h.downloadDocument).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}/url", h.documentURL).Methods(http.MethodGet)
}

func (h *handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.Documents.List(r.Context(), principalFrom(r).Scope(), listingQuery(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// uploadDocument expects multipart/form-data with a "file" part plus optional
// "title" and "category" fields.
func (h *handler) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer func() { _ = file.Close() }()

	doc, err := h.Documents.Upload(r.Context(), principalFrom(r).Scope(), documents.Upload{
		Title:       r.FormValue("title"),
		Category:    r.FormValue("category"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"document": doc})
}

func (h *handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Documents.Get(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (h *handler) downloadDocument(w http.ResponseWriter, r *http.Request) {
	doc, body, err := h.Documents.Download(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer func() { _ = body.Close() }()
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	if doc.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.lggr.Warnw("document download interrupted", "document_id", doc.ID, "err", err)
	}
}

func (h *handler) documentURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.Documents.URL(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url})
}

func (h *handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.Documents.Delete(r.Context(), principalFrom(r).Scope(), mux.Vars(r)["id"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
