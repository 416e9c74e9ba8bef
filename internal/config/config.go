package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Session tokens
	SessionSecret string
	TokenTTLHours int

	// LearnUs / SSO endpoints
	LearnUsBaseURL string
	SSOBaseURL     string

	// Fetching
	HTTPTimeoutSeconds      int
	FetchConcurrency        int
	ActivityCacheTTLSeconds int

	// Institution-local civil time for deadline comparisons
	Timezone string

	// Media tooling
	FFmpegPath  string
	FFprobePath string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                    getEnvOrDefault("PORT", "8080"),
		Env:                     getEnvOrDefault("ENV", "development"),
		SessionSecret:           mustGetEnv("SESSION_SECRET"),
		TokenTTLHours:           getEnvAsIntOrDefault("TOKEN_TTL_HOURS", 6),
		LearnUsBaseURL:          getEnvOrDefault("LEARNUS_BASE_URL", "https://ys.learnus.org"),
		SSOBaseURL:              getEnvOrDefault("SSO_BASE_URL", "https://infra.yonsei.ac.kr"),
		HTTPTimeoutSeconds:      getEnvAsIntOrDefault("HTTP_TIMEOUT_SECONDS", 30),
		FetchConcurrency:        getEnvAsIntOrDefault("FETCH_CONCURRENCY", 16),
		ActivityCacheTTLSeconds: getEnvAsIntOrDefault("ACTIVITY_CACHE_TTL_SECONDS", 900),
		Timezone:                getEnvOrDefault("TIMEZONE", "Asia/Seoul"),
		FFmpegPath:              getEnvOrDefault("FFMPEG_PATH", ""),
		FFprobePath:             getEnvOrDefault("FFPROBE_PATH", ""),
		FrontendURL:             getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
