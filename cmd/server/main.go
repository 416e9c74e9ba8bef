package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learnus-backend/internal/config"
	"learnus-backend/internal/handlers"
	"learnus-backend/internal/learnus"
	"learnus-backend/internal/middleware"
	"learnus-backend/internal/router"
	"learnus-backend/internal/services"
)

func main() {
	log.Println("🚀 Starting LearnUs Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Institution timezone ────
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatalf("✗ Invalid timezone %q: %v", cfg.Timezone, err)
	}
	log.Printf("✓ Deadlines evaluated in %s", cfg.Timezone)

	// ──── Step 3: LearnUs client & authenticator ────
	httpTimeout := time.Duration(cfg.HTTPTimeoutSeconds) * time.Second
	authenticator := learnus.NewAuthenticator(cfg.LearnUsBaseURL, cfg.SSOBaseURL, httpTimeout)
	client := learnus.NewClient(cfg.LearnUsBaseURL, loc)
	log.Println("✓ LearnUs client initialized")

	// ──── Step 4: Services & process-local caches ────
	tokenService := services.NewTokenService(cfg.SessionSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	sessionResolver := services.NewSessionResolver(tokenService, authenticator)
	activityCache := services.NewActivityCache(client, time.Duration(cfg.ActivityCacheTTLSeconds)*time.Second)
	aggregator := services.NewAggregator(client, activityCache, loc, cfg.FetchConcurrency)
	mediaService := services.NewMediaService(cfg.FFmpegPath, cfg.FFprobePath)
	log.Println("✓ Services initialized")

	// ──── Step 5: Handlers & routes ────
	tokenAuth := middleware.NewTokenAuth(sessionResolver)
	authHandler := handlers.NewAuthHandler(tokenService, authenticator, sessionResolver, activityCache)
	courseHandler := handlers.NewCourseHandler(client)
	eventsHandler := handlers.NewEventsHandler(aggregator)
	videoHandler := handlers.NewVideoHandler(client, aggregator, mediaService, cfg.LearnUsBaseURL)

	r := router.New(tokenAuth, authHandler, courseHandler, eventsHandler, videoHandler, cfg.FrontendURL)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute, // video downloads stream for a while
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ LearnUs Backend ready on http://localhost:%s", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
