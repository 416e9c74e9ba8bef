package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"learnus-backend/internal/learnus"
	"learnus-backend/internal/models"
	"learnus-backend/internal/worker"
)

// civilLayout matches the naive local timestamps the frontend consumes.
const civilLayout = "2006-01-02T15:04:05"

// Trailing parenthesized suffixes on course names are semester/section tags,
// e.g. "Algorithms (2025-1)".
var courseSuffixRe = regexp.MustCompile(`\s*\([^)]*\)$`)

// Aggregator reconciles cheap course-page listings with on-demand assignment
// detail pages and buckets the result into calendar and per-kind todo lists.
type Aggregator struct {
	source     SourceAdapter
	cache      *ActivityCache
	loc        *time.Location
	fetchWidth int
	now        func() time.Time
}

func NewAggregator(source SourceAdapter, cache *ActivityCache, loc *time.Location, fetchWidth int) *Aggregator {
	return &Aggregator{
		source:     source,
		cache:      cache,
		loc:        loc,
		fetchWidth: fetchWidth,
		now:        time.Now,
	}
}

// Events aggregates deadlines for one course or, when courseID is nil, every
// course on the dashboard. Any fetch failure aborts the whole call.
func (a *Aggregator) Events(ctx context.Context, sess *learnus.Session, courseID *int) (*models.EventsResponse, error) {
	courses, err := a.source.ListCourses(ctx, sess)
	if err != nil {
		return nil, err
	}

	names := make(map[int]string, len(courses))
	for _, c := range courses {
		names[c.ID] = courseSuffixRe.ReplaceAllString(c.Name, "")
	}

	var courseIDs []int
	if courseID != nil {
		courseIDs = []int{*courseID}
	} else {
		for _, c := range courses {
			courseIDs = append(courseIDs, c.ID)
		}
	}

	// Phase 1: list pages through the cache, bounded fan-out.
	lists, err := worker.Run(ctx, a.fetchWidth, courseIDs, func(ctx context.Context, id int) ([]models.Activity, error) {
		return a.cache.Get(ctx, sess, id)
	})
	if err != nil {
		return nil, err
	}

	// Phase 2: detail pages, only for incomplete assignments whose due time
	// is still unknown.
	type ref struct{ list, idx int }
	var needDetail []ref
	for li, activities := range lists {
		for i := range activities {
			act := &activities[i]
			if act.Kind == models.KindAssignment && !act.Completed && act.DueTime == nil {
				needDetail = append(needDetail, ref{list: li, idx: i})
			}
		}
	}
	details, err := worker.Run(ctx, a.fetchWidth, needDetail, func(ctx context.Context, r ref) (models.AssignmentDetail, error) {
		return a.source.AssignmentDetail(ctx, sess, lists[r.list][r.idx].ID)
	})
	if err != nil {
		return nil, err
	}
	// The lists are this call's private copies, so merging is race-free; the
	// enriched lists go back into the cache so later calls skip these detail
	// fetches.
	enriched := map[int]bool{}
	for i, r := range needDetail {
		act := &lists[r.list][r.idx]
		detail := details[i]
		// Merge unknown → known only; never overwrite a value already set.
		if act.DueTime == nil && detail.DueTime != nil {
			act.DueTime = detail.DueTime
		}
		if act.Submitted == nil && detail.Submitted != nil {
			act.Submitted = detail.Submitted
		}
		if detail.SubmissionStatus != "" {
			act.Extra["submission_status"] = detail.SubmissionStatus
		}
		if detail.GradingStatus != "" {
			act.Extra["grading_status"] = detail.GradingStatus
		}
		enriched[r.list] = true
	}
	for li := range enriched {
		a.cache.Put(sess.Identity(), courseIDs[li], lists[li])
	}

	// One "now" per call, in the institution's timezone, so every comparison
	// below is internally consistent.
	now := a.now().In(a.loc)

	resp := &models.EventsResponse{
		Calendar:    []models.CalendarEvent{},
		Videos:      []models.TodoItem{},
		Assignments: []models.TodoItem{},
		Quizzes:     []models.TodoItem{},
	}

	for li, activities := range lists {
		courseName := names[courseIDs[li]]
		for i := range activities {
			act := &activities[i]
			title := fmt.Sprintf("[%s] %s", courseName, act.Title)

			if act.DueTime != nil {
				resp.Calendar = append(resp.Calendar, models.CalendarEvent{
					ID:        act.ID,
					Title:     title,
					Type:      string(act.Kind),
					Completed: act.Completed,
					Start:     act.DueTime.Format(civilLayout),
					AllDay:    true,
				})
			}

			switch act.Kind {
			case models.KindAssignment:
				if act.Completed || (act.Submitted != nil && *act.Submitted) {
					continue
				}
				if act.DueTime == nil || !act.DueTime.After(now) {
					continue
				}
				resp.Assignments = append(resp.Assignments, todoItem(act, title))
			case models.KindVideo:
				if act.Completed || act.DueTime == nil || !act.DueTime.After(now) {
					continue
				}
				resp.Videos = append(resp.Videos, todoItem(act, title))
			case models.KindQuiz:
				if act.Completed {
					continue
				}
				if act.DueTime != nil && !act.DueTime.After(now) {
					continue
				}
				resp.Quizzes = append(resp.Quizzes, todoItem(act, title))
			}
		}
	}

	// The civil layout sorts lexicographically in chronological order.
	sort.Slice(resp.Calendar, func(i, j int) bool { return resp.Calendar[i].Start < resp.Calendar[j].Start })
	sortTodos(resp.Videos)
	sortTodos(resp.Assignments)
	sortTodosUndatedLast(resp.Quizzes)

	return resp, nil
}

// CourseVideos lists the video activities of one course.
func (a *Aggregator) CourseVideos(ctx context.Context, sess *learnus.Session, courseID int) (*models.VideosResponse, error) {
	activities, err := a.cache.Get(ctx, sess, courseID)
	if err != nil {
		return nil, err
	}

	resp := &models.VideosResponse{Videos: []models.VideoItem{}}
	for i := range activities {
		act := &activities[i]
		if act.Kind != models.KindVideo {
			continue
		}
		available := act.Extra["playable"] != "false"
		resp.Videos = append(resp.Videos, models.VideoItem{
			ID:        act.ID,
			Title:     act.Title,
			Completed: act.Completed,
			Open:      civilString(act.OpenTime),
			Due:       civilString(act.DueTime),
			Available: available,
		})
	}
	return resp, nil
}

func todoItem(act *models.Activity, title string) models.TodoItem {
	return models.TodoItem{ID: act.ID, Title: title, Due: civilString(act.DueTime)}
}

func civilString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(civilLayout)
	return &s
}

func sortTodos(items []models.TodoItem) {
	sort.Slice(items, func(i, j int) bool { return *items[i].Due < *items[j].Due })
}

// sortTodosUndatedLast orders by due time ascending with due-less items at
// the end, as if their due time were a maximal sentinel.
func sortTodosUndatedLast(items []models.TodoItem) {
	sort.SliceStable(items, func(i, j int) bool {
		switch {
		case items[i].Due == nil:
			return false
		case items[j].Due == nil:
			return true
		default:
			return *items[i].Due < *items[j].Due
		}
	})
}
