package services

import (
	"context"

	"learnus-backend/internal/learnus"
	"learnus-backend/internal/models"
)

// SourceAdapter fetches and parses LMS pages through an authenticated
// session. Implemented by learnus.Client; faked in tests.
type SourceAdapter interface {
	ListCourses(ctx context.Context, sess *learnus.Session) ([]models.CourseRef, error)
	ListActivities(ctx context.Context, sess *learnus.Session, courseID int) ([]models.Activity, error)
	AssignmentDetail(ctx context.Context, sess *learnus.Session, moduleID int) (models.AssignmentDetail, error)
	VideoStreamInfo(ctx context.Context, sess *learnus.Session, pageURL string) (title, streamURL string, err error)
}

// Authenticator runs the SSO login. Implemented by learnus.Authenticator.
type Authenticator interface {
	Login(ctx context.Context, identity, secret string) (*learnus.Session, error)
}
