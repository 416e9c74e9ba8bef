package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"learnus-backend/internal/learnus"
	"learnus-backend/internal/middleware"
	"learnus-backend/internal/services"
)

// Uploaded guest pages are small HTML documents; anything bigger is abuse.
const maxUploadBytes = 10 << 20

type VideoHandler struct {
	source     services.SourceAdapter
	aggregator *services.Aggregator
	media      *services.MediaService
	baseURL    string
}

func NewVideoHandler(source services.SourceAdapter, aggregator *services.Aggregator, media *services.MediaService, baseURL string) *VideoHandler {
	return &VideoHandler{source: source, aggregator: aggregator, media: media, baseURL: baseURL}
}

// List returns the video activities of one course.
func (h *VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	courseID, err := strconv.Atoi(r.URL.Query().Get("course_id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "course_id must be an integer", r))
		return
	}

	videos, err := h.aggregator.CourseVideos(r.Context(), sess, courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

// Download streams an MP4 remux or MP3 transcode of a course video.
func (h *VideoHandler) Download(w http.ResponseWriter, r *http.Request) {
	sess := requireSession(w, r)
	if sess == nil {
		return
	}

	videoID, err := strconv.Atoi(chi.URLParam(r, "videoID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "video id must be an integer", r))
		return
	}
	ext := chi.URLParam(r, "ext")
	if ext != "mp4" && ext != "mp3" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unsupported extension. Use mp4 or mp3.", r))
		return
	}

	pageURL := fmt.Sprintf("%s/mod/vod/viewer.php?id=%d", h.baseURL, videoID)
	title, streamURL, err := h.source.VideoStreamInfo(r.Context(), sess, pageURL)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VIDEO_UNAVAILABLE", "Unable to locate the video stream", r))
		return
	}

	h.serveStream(w, r, title, streamURL, ext)
}

// GuestDownload accepts an HTML page uploaded by a guest, extracts the first
// m3u8 URL from it and streams the conversion back.
func (h *VideoHandler) GuestDownload(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFrom(r.Context())
	if claims == nil || !claims.Guest {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Not a guest session", r))
		return
	}

	ext := r.URL.Query().Get("ext")
	if ext != "mp4" && ext != "mp3" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Unsupported extension. Use mp4 or mp3.", r))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid multipart upload", r))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "HTML file is required", r))
		return
	}
	defer file.Close()

	title, streamURL, err := learnus.ParseUploadedVideoPage(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No m3u8 source tag found in the uploaded page", r))
		return
	}
	if title == "" {
		title = strings.TrimSuffix(header.Filename, ".html")
		title = strings.TrimSuffix(title, ".htm")
	}

	h.serveStream(w, r, title, streamURL, ext)
}

func (h *VideoHandler) serveStream(w http.ResponseWriter, r *http.Request, title, streamURL, ext string) {
	probe := h.media.Probe(r.Context(), streamURL)

	filename := fmt.Sprintf("%s.%s", title, ext)
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	if probe.Duration > 0 {
		w.Header().Set("X-Stream-Duration", strconv.FormatFloat(probe.Duration, 'f', -1, 64))
	}
	if probe.Bitrate > 0 {
		w.Header().Set("X-Stream-Bitrate", strconv.Itoa(probe.Bitrate))
	}

	if ext == "mp4" {
		path, err := h.media.RemuxMP4(r.Context(), streamURL)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		defer os.Remove(path)
		w.Header().Set("Content-Type", "video/mp4")
		http.ServeFile(w, r, path)
		return
	}

	stream, err := h.media.StreamMP3(r.Context(), streamURL)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer stream.Close()
	w.Header().Set("Content-Type", "audio/mpeg")
	io.Copy(w, stream)
}
