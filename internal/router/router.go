package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"learnus-backend/internal/handlers"
	"learnus-backend/internal/middleware"
)

func New(
	tokenAuth *middleware.TokenAuth,
	authHandler *handlers.AuthHandler,
	courseHandler *handlers.CourseHandler,
	eventsHandler *handlers.EventsHandler,
	videoHandler *handlers.VideoHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Login rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ──── Token issuance (public) ────
	r.Group(func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/login", authHandler.Login)
		r.Post("/guest_login", authHandler.GuestLogin)
	})

	// ──── Token-bearing routes ────
	r.Group(func(r chi.Router) {
		r.Use(tokenAuth.Middleware)
		r.Get("/ping", authHandler.Ping)
		r.Post("/logout", authHandler.Logout)
		r.Get("/courses", courseHandler.List)
		r.Get("/events", eventsHandler.List)
		r.Get("/videos", videoHandler.List)
		r.Get("/download/{videoID}.{ext}", videoHandler.Download)
		r.Post("/guest/download", videoHandler.GuestDownload)
	})

	return r
}
