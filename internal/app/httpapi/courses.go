package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/earnhub/platform/internal/app/domain/course"
	"github.com/earnhub/platform/internal/middleware"
)

func (h *handler) listCourses(w http.ResponseWriter, r *http.Request) {
	status := course.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = course.StatusPublished
	}
	courses, err := h.app.Courses.List(r.Context(), status, queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *handler) getCourse(w http.ResponseWriter, r *http.Request) {
	c, err := h.app.Courses.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) enroll(w http.ResponseWriter, r *http.Request) {
	e, err := h.app.Courses.Enroll(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *handler) completeLesson(w http.ResponseWriter, r *http.Request) {
	e, err := h.app.Courses.CompleteLesson(r.Context(), mux.Vars(r)["id"], middleware.UserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *handler) myEnrollments(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.app.Courses.Enrollments(r.Context(), middleware.UserID(r.Context()), queryLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, enrollments)
}
