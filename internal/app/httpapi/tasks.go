package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/earnhub/platform/internal/app/domain/task"
	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	status := task.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = task.StatusActive
	}
	tasks, err := h.app.Tasks.List(r.Context(), status, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handler) getTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.app.Tasks.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handler) submitTask(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Proof        string `json:"proof"`
		ProofFileKey string `json:"proof_file_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sub, err := h.app.Tasks.Submit(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()),
		payload.Proof, payload.ProofFileKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *handler) mySubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.app.Tasks.UserSubmissions(r.Context(), middleware.UserID(r.Context()), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}
