package handlers

import (
	"net/http"

	"learnus-backend/internal/services"
)

type CourseHandler struct {
	source services.SourceAdapter
}

func NewCourseHandler(source services.SourceAdapter) *CourseHandler {
	return &CourseHandler{source: source}
}

// List returns the courses on the user's dashboard.
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	courses, err := h.source.ListCourses(r.Context(), sess)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}
