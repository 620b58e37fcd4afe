package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string
	Handles       Handles
}

// Handles bounds the per-tenant connection handle pool.
type Handles struct {
	MaxHandles     int
	IdleTTL        time.Duration
	AcquireTimeout time.Duration
	OpenRetries    int
	RetryBackoff   time.Duration
}

// DefaultHandles returns the handle-pool defaults used when no overrides are set.
func DefaultHandles() Handles {
	return Handles{
		MaxHandles:     64,
		IdleTTL:        10 * time.Minute,
		AcquireTimeout: 5 * time.Second,
		OpenRetries:    3,
		RetryBackoff:   100 * time.Millisecond,
	}
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("BEDROCK_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	handles := DefaultHandles()
	if v := envInt("TENANT_HANDLE_MAX"); v > 0 {
		handles.MaxHandles = v
	}
	if v := envDuration("TENANT_HANDLE_IDLE_TTL"); v > 0 {
		handles.IdleTTL = v
	}
	if v := envDuration("TENANT_HANDLE_ACQUIRE_TIMEOUT"); v > 0 {
		handles.AcquireTimeout = v
	}
	if v := envInt("TENANT_HANDLE_OPEN_RETRIES"); v > 0 {
		handles.OpenRetries = v
	}
	if v := envDuration("TENANT_HANDLE_RETRY_BACKOFF"); v > 0 {
		handles.RetryBackoff = v
	}

	return Server{
		Addr:          addr,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: jwtSigningKey,
		Handles:       handles,
	}
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func envDuration(key string) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}
