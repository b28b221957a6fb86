package services

import (
	"context"
	"testing"
	"time"

	"github.com/smaehq/smae-backend/internal/repos"
	"github.com/smaehq/smae-backend/internal/requestdata"
)

func newAuthService(env *testEnv) AuthService {
	return NewAuthService(
		env.db, env.log,
		repos.NewUserRepo(env.db, env.log),
		repos.NewUserTokenRepo(env.db, env.log),
		"test-secret",
		time.Hour, 24*time.Hour,
	)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	if err := svc.Register(ctx, "Alice@Example.com", "longenough", "Alice"); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Email lookup is case-insensitive via normalization.
	access, refresh, err := svc.Login(ctx, "alice@example.com", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("expected both tokens")
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "wrongpassword"); err == nil {
		t.Error("wrong password should fail")
	}
}

func TestRegisterRejectsDuplicateAndWeakInput(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	if err := svc.Register(ctx, "bob@example.com", "longenough", "Bob"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.Register(ctx, "bob@example.com", "longenough", "Bob"); err == nil {
		t.Error("duplicate email should fail")
	}
	if err := svc.Register(ctx, "carol@example.com", "short", "Carol"); err == nil {
		t.Error("short password should fail")
	}
	if err := svc.Register(ctx, "not-an-email", "longenough", "X"); err == nil {
		t.Error("invalid email should fail")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	if err := svc.Register(ctx, "dave@example.com", "longenough", "Dave"); err != nil {
		t.Fatalf("register: %v", err)
	}
	access, _, err := svc.Login(ctx, "dave@example.com", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	authed, err := svc.SetContextFromToken(ctx, access)
	if err != nil {
		t.Fatalf("set context: %v", err)
	}
	rd := requestdata.GetRequestData(authed)
	if rd == nil {
		t.Fatal("request data missing from context")
	}
	if rd.TokenString != access {
		t.Error("token string not carried into context")
	}

	if _, err := svc.SetContextFromToken(ctx, "garbage.token.value"); err == nil {
		t.Error("garbage token should be rejected")
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	ctx := context.Background()

	if err := svc.Register(ctx, "erin@example.com", "longenough", "Erin"); err != nil {
		t.Fatalf("register: %v", err)
	}
	access, refresh, err := svc.Login(ctx, "erin@example.com", "longenough")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	authed, err := svc.SetContextFromToken(ctx, access)
	if err != nil {
		t.Fatalf("set context: %v", err)
	}
	newAccess, newRefresh, err := svc.Refresh(authed)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if newRefresh == refresh {
		t.Error("refresh token should rotate")
	}
	if newAccess == "" {
		t.Error("expected a new access token")
	}

	// The old refresh token is spent.
	if _, _, err := svc.Refresh(authed); err == nil {
		t.Error("reusing a rotated refresh token should fail")
	}
}
