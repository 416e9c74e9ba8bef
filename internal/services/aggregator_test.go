package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"learnus-backend/internal/learnus"
	"learnus-backend/internal/models"
)

var kst = time.FixedZone("KST", 9*3600)

type stubSource struct {
	courses []models.CourseRef
	lists   map[int][]models.Activity
	details map[int]models.AssignmentDetail
	listErr error

	mu          sync.Mutex
	detailCalls []int
}

func (s *stubSource) ListCourses(ctx context.Context, sess *learnus.Session) ([]models.CourseRef, error) {
	return s.courses, nil
}

func (s *stubSource) ListActivities(ctx context.Context, sess *learnus.Session, courseID int) ([]models.Activity, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.lists[courseID], nil
}

func (s *stubSource) AssignmentDetail(ctx context.Context, sess *learnus.Session, moduleID int) (models.AssignmentDetail, error) {
	s.mu.Lock()
	s.detailCalls = append(s.detailCalls, moduleID)
	s.mu.Unlock()
	return s.details[moduleID], nil
}

func (s *stubSource) VideoStreamInfo(ctx context.Context, sess *learnus.Session, pageURL string) (string, string, error) {
	return "", "", nil
}

func newTestAggregator(source SourceAdapter, now time.Time) *Aggregator {
	cache := NewActivityCache(source, 15*time.Minute)
	agg := NewAggregator(source, cache, kst, 4)
	agg.now = func() time.Time { return now }
	return agg
}

func civil(value string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", value, kst)
	if err != nil {
		panic(err)
	}
	return t
}

func tptr(t time.Time) *time.Time { return &t }
func bptr(b bool) *bool           { return &b }

func TestAggregator_Events(t *testing.T) {
	submitted := false
	source := &stubSource{
		courses: []models.CourseRef{{ID: 101, Name: "Algorithms (2025-1)"}},
		lists: map[int][]models.Activity{
			101: {
				{ID: 1, Kind: models.KindVideo, Title: "Lecture 1", DueTime: tptr(civil("2025-01-10 10:00")), Extra: map[string]string{}},
				{ID: 2, Kind: models.KindAssignment, Title: "HW1", Extra: map[string]string{}},
				{ID: 3, Kind: models.KindQuiz, Title: "Quiz 1", Extra: map[string]string{}},
				{ID: 4, Kind: models.KindAssignment, Title: "HW0", Completed: true, DueTime: tptr(civil("2024-12-01 23:59")), Extra: map[string]string{}},
				{ID: 5, Kind: models.KindVideo, Title: "Lecture 0", DueTime: tptr(civil("2024-12-20 10:00")), Extra: map[string]string{}},
			},
		},
		details: map[int]models.AssignmentDetail{
			2: {Submitted: &submitted, SubmissionStatus: "제출 안 함", DueTime: tptr(civil("2025-01-15 23:59"))},
		},
	}

	agg := newTestAggregator(source, civil("2025-01-01 00:00"))
	resp, err := agg.Events(context.Background(), testSession("user"), nil)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	// Detail pages fetched only for incomplete assignments with unknown due.
	if len(source.detailCalls) != 1 || source.detailCalls[0] != 2 {
		t.Errorf("Expected detail fetch for module 2 only, got %v", source.detailCalls)
	}

	if len(resp.Videos) != 1 {
		t.Fatalf("Expected 1 pending video, got %+v", resp.Videos)
	}
	if resp.Videos[0].Title != "[Algorithms] Lecture 1" {
		t.Errorf("Unexpected video title %q", resp.Videos[0].Title)
	}
	if resp.Videos[0].Due == nil || *resp.Videos[0].Due != "2025-01-10T10:00:00" {
		t.Errorf("Unexpected video due: %v", resp.Videos[0].Due)
	}

	if len(resp.Assignments) != 1 {
		t.Fatalf("Expected 1 pending assignment, got %+v", resp.Assignments)
	}
	if resp.Assignments[0].ID != 2 {
		t.Errorf("Expected assignment 2, got %d", resp.Assignments[0].ID)
	}
	if resp.Assignments[0].Due == nil || *resp.Assignments[0].Due != "2025-01-15T23:59:00" {
		t.Errorf("Unexpected assignment due: %v", resp.Assignments[0].Due)
	}

	if len(resp.Quizzes) != 1 {
		t.Fatalf("Expected 1 pending quiz, got %+v", resp.Quizzes)
	}
	if resp.Quizzes[0].Due != nil {
		t.Errorf("Expected undated quiz, got due %v", *resp.Quizzes[0].Due)
	}

	// Every dated activity lands on the calendar, completed or not,
	// in chronological order.
	wantStarts := []string{"2024-12-01T23:59:00", "2024-12-20T10:00:00", "2025-01-10T10:00:00", "2025-01-15T23:59:00"}
	if len(resp.Calendar) != len(wantStarts) {
		t.Fatalf("Expected %d calendar events, got %+v", len(wantStarts), resp.Calendar)
	}
	for i, want := range wantStarts {
		if resp.Calendar[i].Start != want {
			t.Errorf("calendar[%d]: expected start %q, got %q", i, want, resp.Calendar[i].Start)
		}
	}
}

func TestAggregator_SubmittedAssignmentExcluded(t *testing.T) {
	source := &stubSource{
		courses: []models.CourseRef{{ID: 101, Name: "Algorithms"}},
		lists: map[int][]models.Activity{
			101: {
				{ID: 1, Kind: models.KindAssignment, Title: "HW1", Extra: map[string]string{}},
			},
		},
		details: map[int]models.AssignmentDetail{
			1: {Submitted: bptr(true), SubmissionStatus: "제출 완료", DueTime: tptr(civil("2025-01-15 23:59"))},
		},
	}

	agg := newTestAggregator(source, civil("2025-01-01 00:00"))
	resp, err := agg.Events(context.Background(), testSession("user"), nil)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(resp.Assignments) != 0 {
		t.Errorf("Submitted assignment must not appear as pending, got %+v", resp.Assignments)
	}
	if len(resp.Calendar) != 1 {
		t.Errorf("Submitted assignment still belongs on the calendar, got %+v", resp.Calendar)
	}
}

func TestAggregator_QuizzesSortUndatedLast(t *testing.T) {
	source := &stubSource{
		courses: []models.CourseRef{{ID: 101, Name: "Algorithms"}},
		lists: map[int][]models.Activity{
			101: {
				{ID: 1, Kind: models.KindQuiz, Title: "Anytime quiz", Extra: map[string]string{}},
				{ID: 2, Kind: models.KindQuiz, Title: "Final quiz", DueTime: tptr(civil("2025-02-01 10:00")), Extra: map[string]string{}},
				{ID: 3, Kind: models.KindQuiz, Title: "Midterm quiz", DueTime: tptr(civil("2025-01-05 10:00")), Extra: map[string]string{}},
			},
		},
	}

	agg := newTestAggregator(source, civil("2025-01-01 00:00"))
	resp, err := agg.Events(context.Background(), testSession("user"), nil)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	wantIDs := []int{3, 2, 1}
	if len(resp.Quizzes) != len(wantIDs) {
		t.Fatalf("Expected %d quizzes, got %+v", len(wantIDs), resp.Quizzes)
	}
	for i, want := range wantIDs {
		if resp.Quizzes[i].ID != want {
			t.Errorf("quizzes[%d]: expected id %d, got %d", i, want, resp.Quizzes[i].ID)
		}
	}
}

func TestAggregator_EnrichmentWrittenBack(t *testing.T) {
	submitted := false
	source := &stubSource{
		courses: []models.CourseRef{{ID: 101, Name: "Algorithms"}},
		lists: map[int][]models.Activity{
			101: {{ID: 1, Kind: models.KindAssignment, Title: "HW1", Extra: map[string]string{}}},
		},
		details: map[int]models.AssignmentDetail{
			1: {Submitted: &submitted, DueTime: tptr(civil("2025-01-15 23:59"))},
		},
	}

	agg := newTestAggregator(source, civil("2025-01-01 00:00"))
	sess := testSession("user")

	if _, err := agg.Events(context.Background(), sess, nil); err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if _, err := agg.Events(context.Background(), sess, nil); err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	// The merged due time lands in the cache, so the second call needs no
	// detail page.
	if len(source.detailCalls) != 1 {
		t.Errorf("Expected 1 detail fetch across both calls, got %v", source.detailCalls)
	}
}

func TestAggregator_ConcurrentEventsOnWarmCache(t *testing.T) {
	// The detail page leaves the due time unknown, so every call re-runs the
	// enrichment. Each call must work on its own copy of the cached list.
	source := &stubSource{
		courses: []models.CourseRef{{ID: 101, Name: "Algorithms"}},
		lists: map[int][]models.Activity{
			101: {{ID: 1, Kind: models.KindAssignment, Title: "HW1", Extra: map[string]string{}}},
		},
		details: map[int]models.AssignmentDetail{
			1: {SubmissionStatus: "제출 안 함", GradingStatus: "채점되지 않음"},
		},
	}

	agg := newTestAggregator(source, civil("2025-01-01 00:00"))
	sess := testSession("user")

	if _, err := agg.Events(context.Background(), sess, nil); err != nil {
		t.Fatalf("Warmup Events failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := agg.Events(context.Background(), sess, nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent Events failed: %v", err)
	}
}

func TestAggregator_SingleCourseFilter(t *testing.T) {
	source := &stubSource{
		courses: []models.CourseRef{
			{ID: 101, Name: "Algorithms"},
			{ID: 102, Name: "Databases"},
		},
		lists: map[int][]models.Activity{
			101: {{ID: 1, Kind: models.KindVideo, Title: "Lecture 1", DueTime: tptr(civil("2025-01-10 10:00")), Extra: map[string]string{}}},
			102: {{ID: 2, Kind: models.KindVideo, Title: "Lecture 1", DueTime: tptr(civil("2025-01-11 10:00")), Extra: map[string]string{}}},
		},
	}

	courseID := 102
	agg := newTestAggregator(source, civil("2025-01-01 00:00"))
	resp, err := agg.Events(context.Background(), testSession("user"), &courseID)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}

	if len(resp.Videos) != 1 || resp.Videos[0].ID != 2 {
		t.Errorf("Expected only course 102's video, got %+v", resp.Videos)
	}
	if resp.Videos[0].Title != "[Databases] Lecture 1" {
		t.Errorf("Unexpected title %q", resp.Videos[0].Title)
	}
}

func TestAggregator_FetchFailureAbortsCall(t *testing.T) {
	wantErr := &learnus.FetchError{Kind: learnus.FetchUnavailable, Message: "upstream down"}
	source := &stubSource{
		courses: []models.CourseRef{{ID: 101, Name: "Algorithms"}},
		listErr: wantErr,
	}

	agg := newTestAggregator(source, civil("2025-01-01 00:00"))
	_, err := agg.Events(context.Background(), testSession("user"), nil)

	var fetchErr *learnus.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected FetchError, got %v", err)
	}
}

func TestAggregator_CourseVideos(t *testing.T) {
	source := &stubSource{
		lists: map[int][]models.Activity{
			101: {
				{ID: 1, Kind: models.KindVideo, Title: "Lecture 1", Completed: true, OpenTime: tptr(civil("2025-01-01 00:00")), DueTime: tptr(civil("2025-01-10 10:00")), Extra: map[string]string{}},
				{ID: 2, Kind: models.KindVideo, Title: "Locked lecture", Extra: map[string]string{"playable": "false"}},
				{ID: 3, Kind: models.KindAssignment, Title: "HW1", Extra: map[string]string{}},
			},
		},
	}

	agg := newTestAggregator(source, civil("2025-01-01 00:00"))
	resp, err := agg.CourseVideos(context.Background(), testSession("user"), 101)
	if err != nil {
		t.Fatalf("CourseVideos failed: %v", err)
	}

	if len(resp.Videos) != 2 {
		t.Fatalf("Expected 2 videos, got %+v", resp.Videos)
	}
	if !resp.Videos[0].Available || !resp.Videos[0].Completed {
		t.Errorf("Unexpected first video: %+v", resp.Videos[0])
	}
	if resp.Videos[0].Due == nil || *resp.Videos[0].Due != "2025-01-10T10:00:00" {
		t.Errorf("Unexpected due: %v", resp.Videos[0].Due)
	}
	if resp.Videos[1].Available {
		t.Error("Expected the locked video to be unavailable")
	}
}
