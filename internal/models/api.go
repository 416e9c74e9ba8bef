package models

type LoginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

// CalendarEvent mirrors the shape the frontend calendar widget consumes.
type CalendarEvent struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Completed bool   `json:"completed"`
	Start     string `json:"start"`
	AllDay    bool   `json:"allDay"`
}

// TodoItem is a pending deadline entry. Due is null for undated quizzes.
type TodoItem struct {
	ID    int     `json:"id"`
	Title string  `json:"title"`
	Due   *string `json:"due"`
}

type EventsResponse struct {
	Calendar    []CalendarEvent `json:"calendar"`
	Videos      []TodoItem      `json:"videos"`
	Assignments []TodoItem      `json:"assignments"`
	Quizzes     []TodoItem      `json:"quizzes"`
}

// VideoItem is one VOD activity as returned by the /videos listing.
type VideoItem struct {
	ID        int     `json:"id"`
	Title     string  `json:"title"`
	Completed bool    `json:"completed"`
	Open      *string `json:"open"`
	Due       *string `json:"due"`
	Available bool    `json:"available"`
}

type VideosResponse struct {
	Videos []VideoItem `json:"videos"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
