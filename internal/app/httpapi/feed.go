package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.app.Feed.ListPosts(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (h *handler) createPost(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Body     string `json:"body"`
		ImageKey string `json:"image_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.app.Feed.CreatePost(r.Context(), middleware.UserID(r.Context()), payload.Body, payload.ImageKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) deletePost(w http.ResponseWriter, r *http.Request) {
	err := h.app.Feed.DeletePost(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), h.isModerator(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.app.Feed.ListComments(r.Context(), mux.Vars(r)["id"], queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *handler) addComment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Body string `json:"body"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.app.Feed.AddComment(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), payload.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	err := h.app.Feed.DeleteComment(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()), h.isModerator(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) likePost(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Feed.Like(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context())); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) unlikePost(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Feed.Unlike(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context())); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
