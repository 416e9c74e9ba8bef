package models

import "time"

type ActivityKind string

const (
	KindVideo      ActivityKind = "video"
	KindAssignment ActivityKind = "assignment"
	KindQuiz       ActivityKind = "quiz"
)

// Activity is one gradable or viewable unit inside a course. Deadline and
// submission fields start unknown (nil) and may be filled in later from the
// detail page; once set they are never overwritten.
type Activity struct {
	ID          int               `json:"id"`
	Kind        ActivityKind      `json:"kind"`
	Title       string            `json:"title"`
	Completed   bool              `json:"completed"`
	OpenTime    *time.Time        `json:"open_time"`
	DueTime     *time.Time        `json:"due_time"`
	LateDueTime *time.Time        `json:"late_due_time"`
	Submitted   *bool             `json:"submitted"`
	Extra       map[string]string `json:"extra,omitempty"`
}

type CourseRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// AssignmentDetail carries the fields recoverable only from an assignment's
// own page, in both Korean and English page variants.
type AssignmentDetail struct {
	Submitted        *bool      `json:"submitted"`
	SubmissionStatus string     `json:"submission_status"`
	GradingStatus    string     `json:"grading_status"`
	DueTime          *time.Time `json:"due_time"`
}
