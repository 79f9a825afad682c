package token

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func newTestCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec("unit-test-secret", "animcentre", "animcentre-admin", opts...)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	signed, issued, err := codec.Issue(42, "director", []string{"Director", "manager"}, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if signed == "" {
		t.Fatal("expected signed token")
	}
	if issued.ID == "" {
		t.Fatal("expected token id")
	}

	claims, err := codec.Verify(signed)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("user id: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected user id 42, got %d", id)
	}
	if claims.Username != "director" {
		t.Fatalf("unexpected username %q", claims.Username)
	}
	if !reflect.DeepEqual(claims.Roles, []string{"director", "manager"}) {
		t.Fatalf("unexpected roles %v", claims.Roles)
	}
	if claims.ID != issued.ID {
		t.Fatalf("token id changed across round trip")
	}
}

func TestVerifyExpiredReturnsClaims(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt
	codec := newTestCodec(t, WithClock(func() time.Time { return clock }))

	signed, issued, err := codec.Issue(7, "animator", nil, 30*time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// Still valid just before expiry.
	clock = issuedAt.Add(29 * time.Minute)
	if _, err := codec.Verify(signed); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}

	// Past expiry the claims are still returned so logout can read the id.
	clock = issuedAt.Add(31 * time.Minute)
	claims, err := codec.Verify(signed)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if !errors.Is(err, ErrInvalid) {
		t.Fatal("expected ErrExpired to match ErrInvalid")
	}
	if claims == nil || claims.ID != issued.ID {
		t.Fatalf("expected claims with original token id, got %+v", claims)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	codec := newTestCodec(t)
	other, err := NewCodec("a-different-secret", "animcentre", "animcentre-admin")
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	signed, _, err := other.Issue(1, "director", nil, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := codec.Verify(signed); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerifyRejectsWrongIssuerAndAudience(t *testing.T) {
	codec := newTestCodec(t)

	cases := []struct {
		name     string
		issuer   string
		audience string
	}{
		{"wrong issuer", "someone-else", "animcentre-admin"},
		{"wrong audience", "animcentre", "other-audience"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			other, err := NewCodec("unit-test-secret", tc.issuer, tc.audience)
			if err != nil {
				t.Fatalf("new codec: %v", err)
			}
			signed, _, err := other.Issue(1, "director", nil, time.Hour)
			if err != nil {
				t.Fatalf("issue: %v", err)
			}
			if _, err := codec.Verify(signed); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t)

	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := codec.Verify(raw); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %q, got %v", raw, err)
		}
	}
}

func TestIssueRequiresUsernameAndTTL(t *testing.T) {
	codec := newTestCodec(t)

	if _, _, err := codec.Issue(1, "  ", nil, time.Hour); err == nil {
		t.Fatal("expected error for empty username")
	}
	if _, _, err := codec.Issue(1, "director", nil, 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestNewCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec("   ", "animcentre", "animcentre-admin"); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestNormalizeRoles(t *testing.T) {
	got := NormalizeRoles([]string{" Director ", "director", "", "Manager"})
	want := []string{"director", "manager"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
