package learnus

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"learnus-backend/internal/models"
)

// Client is the Source Adapter: it fetches and parses LMS pages through an
// authenticated Session. All deadline timestamps on the pages are civil times
// in the institution's timezone, so parsing is pinned to loc.
type Client struct {
	baseURL string
	loc     *time.Location
}

func NewClient(baseURL string, loc *time.Location) *Client {
	return &Client{baseURL: baseURL, loc: loc}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ListCourses(ctx context.Context, sess *Session) ([]models.CourseRef, error) {
	doc, err := c.get(ctx, sess, c.baseURL+"/")
	if err != nil {
		return nil, err
	}
	return parseDashboardCourses(doc)
}

func (c *Client) ListActivities(ctx context.Context, sess *Session, courseID int) ([]models.Activity, error) {
	doc, err := c.get(ctx, sess, fmt.Sprintf("%s/course/view.php?id=%d", c.baseURL, courseID))
	if err != nil {
		return nil, err
	}
	return parseCourseActivities(doc, c.loc), nil
}

func (c *Client) AssignmentDetail(ctx context.Context, sess *Session, moduleID int) (models.AssignmentDetail, error) {
	doc, err := c.get(ctx, sess, fmt.Sprintf("%s/mod/assign/view.php?id=%d", c.baseURL, moduleID))
	if err != nil {
		return models.AssignmentDetail{}, err
	}
	return parseAssignmentDetail(doc, c.loc), nil
}

func (c *Client) VideoStreamInfo(ctx context.Context, sess *Session, pageURL string) (title, streamURL string, err error) {
	doc, err := c.get(ctx, sess, pageURL)
	if err != nil {
		return "", "", err
	}
	return parseVideoStream(doc)
}

func (c *Client) get(ctx context.Context, sess *Session, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchUnavailable, Message: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := sess.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: FetchUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: FetchUnavailable, Message: fmt.Sprintf("%s returned status %d", rawURL, resp.StatusCode)}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: FetchPageShape, Message: err.Error()}
	}
	return doc, nil
}
