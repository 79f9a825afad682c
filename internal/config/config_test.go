package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ANIMCENTRE_AUTH_SECRET", "test-secret")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Addr != DefaultAddr {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.TokenTTL != DefaultTokenTTL {
		t.Fatalf("unexpected ttl %v", cfg.TokenTTL)
	}
	if cfg.LockoutThreshold != DefaultLockoutThreshold {
		t.Fatalf("unexpected threshold %d", cfg.LockoutThreshold)
	}
	if cfg.LockoutWindow != DefaultLockoutWindow {
		t.Fatalf("unexpected window %v", cfg.LockoutWindow)
	}
	if cfg.Issuer != "animcentre" || cfg.Audience != "animcentre-admin" {
		t.Fatalf("unexpected issuer/audience %q/%q", cfg.Issuer, cfg.Audience)
	}
}

func TestFromEnvRequiresSecret(t *testing.T) {
	t.Setenv("ANIMCENTRE_AUTH_SECRET", "  ")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ANIMCENTRE_AUTH_SECRET", "test-secret")
	t.Setenv("ANIMCENTRE_ADDR", ":9090")
	t.Setenv("ANIMCENTRE_TOKEN_TTL_HOURS", "8")
	t.Setenv("ANIMCENTRE_LOCKOUT_THRESHOLD", "3")
	t.Setenv("ANIMCENTRE_LOCKOUT_WINDOW_MINUTES", "30")
	t.Setenv("ANIMCENTRE_LOGIN_RATE", "2")
	t.Setenv("ANIMCENTRE_LOGIN_BURST", "4")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("from env: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("unexpected addr %q", cfg.Addr)
	}
	if cfg.TokenTTL != 8*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.TokenTTL)
	}
	if cfg.LockoutThreshold != 3 || cfg.LockoutWindow != 30*time.Minute {
		t.Fatalf("unexpected lockout %d/%v", cfg.LockoutThreshold, cfg.LockoutWindow)
	}
	if cfg.LoginRate != 2 || cfg.LoginBurst != 4 {
		t.Fatalf("unexpected login limits %d/%d", cfg.LoginRate, cfg.LoginBurst)
	}
}

func TestFromEnvRejectsBadNumbers(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"ANIMCENTRE_TOKEN_TTL_HOURS", "zero"},
		{"ANIMCENTRE_TOKEN_TTL_HOURS", "0"},
		{"ANIMCENTRE_LOCKOUT_THRESHOLD", "-1"},
		{"ANIMCENTRE_LOCKOUT_WINDOW_MINUTES", "soon"},
		{"ANIMCENTRE_LOGIN_RATE", "0"},
		{"ANIMCENTRE_LOGIN_BURST", "many"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv("ANIMCENTRE_AUTH_SECRET", "test-secret")
			t.Setenv(tc.key, tc.value)
			if _, err := FromEnv(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
