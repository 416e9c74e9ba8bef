package handlers

import (
	"net/http"
	"strconv"

	"learnus-backend/internal/services"
)

type EventsHandler struct {
	aggregator *services.Aggregator
}

func NewEventsHandler(aggregator *services.Aggregator) *EventsHandler {
	return &EventsHandler{aggregator: aggregator}
}

// List returns deadline events aggregated across every course, or a single
// course when course_id is given.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	var courseID *int
	if raw := r.URL.Query().Get("course_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "course_id must be an integer", r))
			return
		}
		courseID = &id
	}

	events, err := h.aggregator.Events(r.Context(), sess, courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}
