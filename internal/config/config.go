package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/occurrence-console/internal/domain"
)

// Backend selects the family of hosted collaborators.
const (
	BackendSupabase = "supabase"
	BackendFirebase = "firebase"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	Backend string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string

	// Firebase
	FirebaseProjectID       string
	FirebaseAPIKey          string
	FirebaseCredentialsFile string

	// Functions
	FunctionsURL  string // callable functions base URL (firebase backend)
	RelayFunction string

	// Collections
	Collections domain.Collections

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Realtime
	RealtimeHeartbeat  time.Duration
	RealtimeMaxBackoff time.Duration

	// Session
	TokenRefreshMargin time.Duration
	SignInMaxAttempts  int
	SignInLockout      time.Duration

	// Views
	PageSize int

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	defaults := domain.DefaultCollections()
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Backend: strings.ToLower(getEnv("BACKEND", BackendSupabase)),

		SupabaseURL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseAPIKey:          getEnv("FIREBASE_API_KEY", ""),
		FirebaseCredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),

		FunctionsURL:  strings.TrimRight(getEnv("FUNCTIONS_URL", ""), "/"),
		RelayFunction: getEnv("RELAY_FUNCTION", "sendChatMessage"),

		Collections: domain.Collections{
			Occurrences:   getEnv("COLLECTION_OCCURRENCES", defaults.Occurrences),
			Users:         getEnv("COLLECTION_USERS", defaults.Users),
			Lists:         getEnv("COLLECTION_LISTS", defaults.Lists),
			ListsDocument: getEnv("LISTS_DOCUMENT_ID", defaults.ListsDocument),
		},

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 8),

		RealtimeHeartbeat:  getEnvDuration("REALTIME_HEARTBEAT", 30*time.Second),
		RealtimeMaxBackoff: getEnvDuration("REALTIME_MAX_BACKOFF", 30*time.Second),

		TokenRefreshMargin: getEnvDuration("TOKEN_REFRESH_MARGIN", time.Minute),
		SignInMaxAttempts:  getEnvInt("SIGNIN_MAX_ATTEMPTS", 5),
		SignInLockout:      getEnvDuration("SIGNIN_LOCKOUT", 15*time.Minute),

		PageSize: getEnvInt("PAGE_SIZE", 10),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
