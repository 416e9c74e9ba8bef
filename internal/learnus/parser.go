package learnus

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"learnus-backend/internal/models"
)

var (
	dateRangeRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}(?::\d{2})?)\s*~\s*(\d{4}-\d{2}-\d{2} \d{2}:\d{2}(?::\d{2})?)`)
	endOnlyRe   = regexp.MustCompile(`~\s*(\d{4}-\d{2}-\d{2} \d{2}:\d{2}(?::\d{2})?)`)
	lateDueRe   = regexp.MustCompile(`Late\s*:\s*(\d{4}-\d{2}-\d{2} \d{2}:\d{2}(?::\d{2})?)`)
)

// Pages show timestamps with and without seconds.
var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02 15:04"}

var modTypeKinds = map[string]models.ActivityKind{
	"vod":    models.KindVideo,
	"assign": models.KindAssignment,
	"quiz":   models.KindQuiz,
}

// Characters Windows filesystems reject, replaced with fullwidth lookalikes
// so video titles stay usable as download filenames.
var filenameSanitizer = strings.NewReplacer(
	`\`, "＼", "/", "／", ":", "：", "*", "＊", "?", "？", `"`, "＂", "<", "＜", ">", "＞", "|", "｜",
)

func parseDateTime(value string, loc *time.Location) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return &t
		}
	}
	return nil
}

// parseDashboardCourses reads the course picker on the dashboard. Placeholder
// options carry non-numeric values and are skipped.
func parseDashboardCourses(doc *goquery.Document) ([]models.CourseRef, error) {
	sel := doc.Find("select.form-control-my-activity-course").First()
	if sel.Length() == 0 {
		return nil, &FetchError{Kind: FetchPageShape, Message: "course picker not found on dashboard"}
	}

	var courses []models.CourseRef
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		id, err := strconv.Atoi(strings.TrimSpace(opt.AttrOr("value", "")))
		if err != nil {
			return
		}
		courses = append(courses, models.CourseRef{ID: id, Name: strings.TrimSpace(opt.Text())})
	})
	return courses, nil
}

// parseCourseActivities extracts video/assignment/quiz modules from a course
// page. The current week is rendered twice, so duplicate module ids are kept
// only once.
func parseCourseActivities(doc *goquery.Document, loc *time.Location) []models.Activity {
	var activities []models.Activity
	seen := map[int]bool{}

	doc.Find("li.activity").Each(func(_ int, li *goquery.Selection) {
		id, err := strconv.Atoi(strings.TrimPrefix(li.AttrOr("id", ""), "module-"))
		if err != nil || seen[id] {
			return
		}

		kind, ok := activityKind(li.AttrOr("class", ""))
		if !ok {
			return
		}
		seen[id] = true

		name := li.Find("span.instancename").First().Clone()
		name.Find("span.accesshide").Remove()
		title := strings.TrimSpace(name.Text())
		if title == "" {
			return
		}

		completed := false
		if src, ok := li.Find("span.autocompletion img").First().Attr("src"); ok {
			completed = strings.Contains(src, "completion-auto-y")
		}

		activity := models.Activity{
			ID:        id,
			Kind:      kind,
			Title:     title,
			Completed: completed,
			Extra:     map[string]string{},
		}

		if opts := li.Find("span.displayoptions").First(); opts.Length() > 0 {
			text := strings.Join(strings.Fields(opts.Text()), " ")
			if m := dateRangeRe.FindStringSubmatch(text); m != nil {
				activity.OpenTime = parseDateTime(m[1], loc)
				activity.DueTime = parseDateTime(m[2], loc)
			} else if m := endOnlyRe.FindStringSubmatch(text); m != nil {
				activity.DueTime = parseDateTime(m[1], loc)
			}
			if m := lateDueRe.FindStringSubmatch(text); m != nil {
				activity.LateDueTime = parseDateTime(m[1], loc)
			}
		}

		activities = append(activities, activity)
	})

	return activities
}

func activityKind(classes string) (models.ActivityKind, bool) {
	for _, cls := range strings.Fields(classes) {
		if modType, ok := strings.CutPrefix(cls, "modtype_"); ok {
			kind, known := modTypeKinds[modType]
			return kind, known
		}
	}
	return "", false
}

// parseAssignmentDetail reads the submission status table on an assignment
// page. Labels appear in Korean or English depending on the user's locale.
func parseAssignmentDetail(doc *goquery.Document, loc *time.Location) models.AssignmentDetail {
	var detail models.AssignmentDetail

	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		label := strings.TrimSpace(tr.Find("td.cell.c0").First().Text())
		value := strings.TrimSpace(tr.Find("td.cell.c1").First().Text())
		if label == "" || value == "" {
			return
		}

		switch label {
		case "제출 여부":
			submitted := value == "제출 완료"
			detail.Submitted = &submitted
			detail.SubmissionStatus = value
		case "Submission status":
			submitted := value == "Submitted for grading"
			detail.Submitted = &submitted
			detail.SubmissionStatus = value
		case "채점 상황", "Grading status":
			detail.GradingStatus = value
		case "종료 일시", "Due date":
			detail.DueTime = parseDateTime(value, loc)
		}
	})

	return detail
}

// ParseUploadedVideoPage extracts the stream URL from a user-supplied video
// page. Unlike the authenticated viewer path, the title is optional here; the
// caller falls back to the uploaded filename.
func ParseUploadedVideoPage(r io.Reader) (title, streamURL string, err error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", &FetchError{Kind: FetchPageShape, Message: err.Error()}
	}

	source := doc.Find(`source[type="application/x-mpegURL"]`).First()
	streamURL, ok := source.Attr("src")
	if !ok || streamURL == "" {
		return "", "", &FetchError{Kind: FetchPageShape, Message: "m3u8 source tag not found in uploaded page"}
	}

	if header := doc.Find("div#vod_header h1").First(); header.Length() > 0 {
		h1 := header.Clone()
		h1.Find("span").Remove()
		title = filenameSanitizer.Replace(strings.TrimSpace(h1.Text()))
	}
	return title, streamURL, nil
}

// parseVideoStream extracts the HLS source URL and a sanitized title from a
// video viewer page.
func parseVideoStream(doc *goquery.Document) (title, streamURL string, err error) {
	source := doc.Find(`source[type="application/x-mpegURL"]`).First()
	streamURL, ok := source.Attr("src")
	if !ok || streamURL == "" {
		return "", "", &FetchError{Kind: FetchPageShape, Message: "m3u8 source tag not found on video page"}
	}

	header := doc.Find("div#vod_header h1").First()
	if header.Length() == 0 {
		return "", "", &FetchError{Kind: FetchPageShape, Message: "video title not found on video page"}
	}
	h1 := header.Clone()
	h1.Find("span").Remove()
	title = filenameSanitizer.Replace(strings.TrimSpace(h1.Text()))

	return title, streamURL, nil
}
