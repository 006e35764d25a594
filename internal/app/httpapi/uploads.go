package httpapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/earnhub/platform/internal/app/services/uploads"
	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		writeErrorMessage(w, http.StatusBadRequest, "filename query parameter is required")
		return
	}
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "uploads"
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, uploads.MaxDirectUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	defer r.Body.Close()
	if len(data) > uploads.MaxDirectUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, uploads.ErrTooLarge)
		return
	}

	key := uploads.NewKey(prefix, middleware.UserID(r.Context()), filename)
	if err := h.app.Uploads.Put(r.Context(), key, r.Header.Get("Content-Type"), data); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (h *handler) initMultipart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Filename    string `json:"filename"`
		Prefix      string `json:"prefix"`
		ContentType string `json:"content_type"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Filename == "" {
		writeErrorMessage(w, http.StatusBadRequest, "filename is required")
		return
	}
	if payload.Prefix == "" {
		payload.Prefix = "uploads"
	}

	key := uploads.NewKey(payload.Prefix, middleware.UserID(r.Context()), payload.Filename)
	uploadID, err := h.app.Uploads.InitMultipart(r.Context(), key, payload.ContentType)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"key":       key,
		"upload_id": uploadID,
	})
}

func (h *handler) uploadPart(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := r.URL.Query().Get("key")
	if key == "" {
		writeErrorMessage(w, http.StatusBadRequest, "key query parameter is required")
		return
	}
	var part int
	if _, err := fmt.Sscanf(vars["part"], "%d", &part); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "part must be a number")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, uploads.MaxDirectUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read part: %w", err))
		return
	}
	defer r.Body.Close()
	if len(data) > uploads.MaxDirectUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, uploads.ErrTooLarge)
		return
	}

	etag, err := h.app.Uploads.UploadPart(r.Context(), key, vars["uploadID"], part, data)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"etag": etag})
}

func (h *handler) completeMultipart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key   string   `json:"key"`
		ETags []string `json:"etags"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.Key == "" {
		writeErrorMessage(w, http.StatusBadRequest, "key is required")
		return
	}

	err := h.app.Uploads.CompleteMultipart(r.Context(), payload.Key, mux.Vars(r)["uploadID"], payload.ETags)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": payload.Key})
}
