package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultAddr             = ":8080"
	DefaultTokenTTL         = 24 * time.Hour
	DefaultLockoutThreshold = 5
	DefaultLockoutWindow    = 15 * time.Minute
	DefaultLoginRate        = 5
	DefaultLoginBurst       = 10
)

// Config carries every externally supplied parameter of the service. It is
// read once in main and passed down explicitly; packages never consult the
// environment themselves.
type Config struct {
	Addr      string
	PGDSN     string
	RedisAddr string

	AuthSecret       string
	Issuer           string
	Audience         string
	TokenTTL         time.Duration
	LockoutThreshold int
	LockoutWindow    time.Duration

	// Login rate limiting (requests per second per client IP, with burst).
	LoginRate  int
	LoginBurst int

	// Bootstrap admin created on first start when the user table is empty.
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// FromEnv builds a Config from ANIMCENTRE_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                   envOr("ANIMCENTRE_ADDR", DefaultAddr),
		PGDSN:                  os.Getenv("ANIMCENTRE_PG_DSN"),
		RedisAddr:              os.Getenv("ANIMCENTRE_REDIS_ADDR"),
		AuthSecret:             strings.TrimSpace(os.Getenv("ANIMCENTRE_AUTH_SECRET")),
		Issuer:                 envOr("ANIMCENTRE_TOKEN_ISSUER", "animcentre"),
		Audience:               envOr("ANIMCENTRE_TOKEN_AUDIENCE", "animcentre-admin"),
		TokenTTL:               DefaultTokenTTL,
		LockoutThreshold:       DefaultLockoutThreshold,
		LockoutWindow:          DefaultLockoutWindow,
		LoginRate:              DefaultLoginRate,
		LoginBurst:             DefaultLoginBurst,
		BootstrapAdminEmail:    strings.TrimSpace(os.Getenv("ANIMCENTRE_BOOTSTRAP_ADMIN_EMAIL")),
		BootstrapAdminPassword: os.Getenv("ANIMCENTRE_BOOTSTRAP_ADMIN_PASSWORD"),
	}

	if cfg.AuthSecret == "" {
		return Config{}, errors.New("config: ANIMCENTRE_AUTH_SECRET is required")
	}

	if raw := os.Getenv("ANIMCENTRE_TOKEN_TTL_HOURS"); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("config: invalid ANIMCENTRE_TOKEN_TTL_HOURS %q", raw)
		}
		cfg.TokenTTL = time.Duration(hours) * time.Hour
	}
	if raw := os.Getenv("ANIMCENTRE_LOCKOUT_THRESHOLD"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: invalid ANIMCENTRE_LOCKOUT_THRESHOLD %q", raw)
		}
		cfg.LockoutThreshold = n
	}
	if raw := os.Getenv("ANIMCENTRE_LOCKOUT_WINDOW_MINUTES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: invalid ANIMCENTRE_LOCKOUT_WINDOW_MINUTES %q", raw)
		}
		cfg.LockoutWindow = time.Duration(n) * time.Minute
	}
	if raw := os.Getenv("ANIMCENTRE_LOGIN_RATE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: invalid ANIMCENTRE_LOGIN_RATE %q", raw)
		}
		cfg.LoginRate = n
	}
	if raw := os.Getenv("ANIMCENTRE_LOGIN_BURST"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("config: invalid ANIMCENTRE_LOGIN_BURST %q", raw)
		}
		cfg.LoginBurst = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
