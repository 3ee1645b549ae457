package config

import (
	"errors"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// Config holds the application configuration.
type Config struct {
	ServerPort   int
	DatabasePath string

	// SessionSecret signs session tokens for both the user and admin domains.
	SessionSecret string

	// AdminUsername and AdminPassword are the static admin credentials.
	// AdminPassword may be either a plaintext value or a bcrypt hash
	// (detected by the "$2" prefix). Changing them requires a restart.
	AdminUsername string
	AdminPassword string

	BcryptCost int

	// SecureCookies marks session cookies Secure. Enabled when APP_ENV is
	// "production".
	SecureCookies bool

	// MaintenanceSchedule is a standard cron expression for the background
	// sweep of expired keys, announcements and reset tokens.
	MaintenanceSchedule string

	// Login rate limiting (per client IP).
	LoginRateBurst  int
	LoginRatePerMin int
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, err
	}

	cost, err := strconv.Atoi(getEnv("BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost)))
	if err != nil {
		return nil, err
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("BCRYPT_COST out of range")
	}

	burst, err := strconv.Atoi(getEnv("LOGIN_RATE_BURST", "5"))
	if err != nil {
		return nil, err
	}
	perMin, err := strconv.Atoi(getEnv("LOGIN_RATE_PER_MIN", "10"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:          port,
		DatabasePath:        getEnv("DATABASE_PATH", "./docpanel.db"),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		AdminUsername:       os.Getenv("ADMIN_USERNAME"),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
		BcryptCost:          cost,
		SecureCookies:       getEnv("APP_ENV", "") == "production",
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "*/15 * * * *"),
		LoginRateBurst:      burst,
		LoginRatePerMin:     perMin,
	}

	if cfg.SessionSecret == "" {
		return nil, errors.New("SESSION_SECRET is required")
	}
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil, errors.New("ADMIN_USERNAME and ADMIN_PASSWORD are required")
	}

	return cfg, nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
