package auth

import (
	"context"
	"reflect"
	"testing"
)

func testPrincipal() Principal {
	return NewPrincipal(
		PublicUser{ID: 7, Username: "marie"},
		[]string{"manager"},
		[]string{PermChildrenView, PermCalendarView},
	)
}

func TestPrincipalHasPermission(t *testing.T) {
	p := testPrincipal()

	if !p.HasPermission(PermChildrenView) {
		t.Fatal("expected children.view")
	}
	if p.HasPermission(PermAdminUsers) {
		t.Fatal("unexpected admin.users")
	}
}

func TestPrincipalHasAny(t *testing.T) {
	p := testPrincipal()

	if !p.HasAny(PermAdminUsers, PermCalendarView) {
		t.Fatal("expected match on calendar.view")
	}
	if p.HasAny(PermAdminUsers, PermAdminRoles) {
		t.Fatal("unexpected match")
	}
	// An empty requirement is vacuously satisfied.
	if !p.HasAny() {
		t.Fatal("expected empty requirement to pass")
	}
}

func TestPrincipalHasAll(t *testing.T) {
	p := testPrincipal()

	if !p.HasAll(PermChildrenView, PermCalendarView) {
		t.Fatal("expected both permissions to hold")
	}
	if p.HasAll(PermChildrenView, PermAdminUsers) {
		t.Fatal("expected admin.users to fail the set")
	}
	if !p.HasAll() {
		t.Fatal("expected empty requirement to pass")
	}
}

func TestPrincipalMissing(t *testing.T) {
	p := testPrincipal()

	got := p.Missing(PermChildrenView, PermAdminUsers, PermAdminRoles)
	want := []string{PermAdminUsers, PermAdminRoles}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPrincipalContextRoundTrip(t *testing.T) {
	p := testPrincipal()

	ctx := ContextWithPrincipal(context.Background(), p)
	got, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatal("expected principal in context")
	}
	if got.User.ID != p.User.ID {
		t.Fatalf("unexpected principal: %+v", got)
	}

	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected no principal in fresh context")
	}
}

func TestTokenContextRoundTrip(t *testing.T) {
	ctx := ContextWithToken(context.Background(), "raw-token")
	got, ok := TokenFromContext(ctx)
	if !ok || got != "raw-token" {
		t.Fatalf("expected raw-token, got %q ok=%v", got, ok)
	}
	if _, ok := TokenFromContext(context.Background()); ok {
		t.Fatal("expected no token in fresh context")
	}
}
