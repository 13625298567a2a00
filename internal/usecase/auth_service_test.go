package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
	"github.com/Nef3rp1tou/BlogMvc/internal/domain/mocks"
)

type stubIssuer struct {
	err error
}

func (s stubIssuer) Issue(u domain.User) (domain.IssuedToken, error) {
	if s.err != nil {
		return domain.IssuedToken{}, s.err
	}
	return domain.IssuedToken{Token: "token-for-" + u.ID, ID: "jti-" + u.ID, ExpiresAt: testNow.Add(24 * time.Hour)}, nil
}

func newTestAuthService(t *testing.T) (*AuthService, *mocks.MockUserRepository, *mocks.MockTokenDenylist) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	alice := domain.User{ID: "alice", Email: "alice@example.com", Roles: domain.RoleSet{domain.RoleUser}}
	if err := alice.SetPassword("User123!"); err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	users := mocks.NewMockUserRepository(alice)
	denylist := &mocks.MockTokenDenylist{}
	svc := NewAuthService(users, stubIssuer{}, denylist, logger)
	svc.now = func() time.Time { return testNow }
	return svc, users, denylist
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestAuthService(t)

	t.Run("Success", func(t *testing.T) {
		resp, err := svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "User123!"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Token != "token-for-alice" || resp.UserID != "alice" {
			t.Errorf("unexpected response: %+v", resp)
		}
		if len(resp.Roles) != 1 || resp.Roles[0] != "User" {
			t.Errorf("expected roles [User], got %v", resp.Roles)
		}
	})

	for name, req := range map[string]domain.LoginRequest{
		"Unknown Email":  {Email: "nobody@example.com", Password: "User123!"},
		"Wrong Password": {Email: "alice@example.com", Password: "nope"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Login(ctx, req)
			assertCode(t, err, domain.CodeUnauthorized)
			if msg := domain.AsError(err).Message; msg != "Invalid email or password" {
				t.Errorf("unexpected message %q", msg)
			}
		})
	}

	t.Run("Issuer Failure", func(t *testing.T) {
		svc, _, _ := newTestAuthService(t)
		svc.tokens = stubIssuer{err: errors.New("bad key")}
		_, err := svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "User123!"})
		assertCode(t, err, domain.CodeInternal)
	})
}

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("Success Grants User Role", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)
		u, err := svc.Register(ctx, domain.RegisterRequest{Email: "new@example.com", Password: "Secret1!", ConfirmPassword: "Secret1!"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		stored := users.Users[u.ID]
		if !stored.Roles.Has(domain.RoleUser) {
			t.Errorf("expected User role, got %v", stored.Roles)
		}
		if !stored.VerifyPassword("Secret1!") {
			t.Error("stored hash does not verify")
		}
	})

	tests := []struct {
		name string
		req  domain.RegisterRequest
		msg  string
	}{
		{"Duplicate", domain.RegisterRequest{Email: "alice@example.com", Password: "Secret1!", ConfirmPassword: "Secret1!"}, "Email is already registered"},
		{"Bad Email", domain.RegisterRequest{Email: "not-an-email", Password: "Secret1!", ConfirmPassword: "Secret1!"}, "Email is not a valid email address"},
		{"Mismatch", domain.RegisterRequest{Email: "x@example.com", Password: "Secret1!", ConfirmPassword: "Secret2!"}, "Passwords do not match"},
		{"Weak", domain.RegisterRequest{Email: "x@example.com", Password: "secret", ConfirmPassword: "secret"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestAuthService(t)
			_, err := svc.Register(ctx, tt.req)
			assertCode(t, err, domain.CodeValidation)
			if tt.msg != "" && domain.AsError(err).Message != tt.msg {
				t.Errorf("message = %q, want %q", domain.AsError(err).Message, tt.msg)
			}
		})
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		svc, users, _ := newTestAuthService(t)
		err := svc.ChangePassword(ctx, "alice", domain.ChangePasswordRequest{
			CurrentPassword: "User123!", NewPassword: "Changed9?", ConfirmNewPassword: "Changed9?",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		u := users.Users["alice"]
		if !u.VerifyPassword("Changed9?") {
			t.Error("new password not stored")
		}
	})

	t.Run("Wrong Current", func(t *testing.T) {
		svc, _, _ := newTestAuthService(t)
		err := svc.ChangePassword(ctx, "alice", domain.ChangePasswordRequest{
			CurrentPassword: "Wrong123!", NewPassword: "Changed9?", ConfirmNewPassword: "Changed9?",
		})
		assertCode(t, err, domain.CodeValidation)
	})

	t.Run("Mismatch", func(t *testing.T) {
		svc, _, _ := newTestAuthService(t)
		err := svc.ChangePassword(ctx, "alice", domain.ChangePasswordRequest{
			CurrentPassword: "User123!", NewPassword: "Changed9?", ConfirmNewPassword: "Other9?",
		})
		assertCode(t, err, domain.CodeValidation)
	})

	t.Run("Unknown User", func(t *testing.T) {
		svc, _, _ := newTestAuthService(t)
		err := svc.ChangePassword(ctx, "ghost", domain.ChangePasswordRequest{
			CurrentPassword: "User123!", NewPassword: "Changed9?", ConfirmNewPassword: "Changed9?",
		})
		assertCode(t, err, domain.CodeUnauthorized)
	})
}

func TestAuthService_CurrentUserAndLogout(t *testing.T) {
	ctx := context.Background()
	svc, _, denylist := newTestAuthService(t)

	info, err := svc.CurrentUser(ctx, "alice")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if info.Email != "alice@example.com" {
		t.Errorf("unexpected user info: %+v", info)
	}
	_, err = svc.CurrentUser(ctx, "missing")
	assertCode(t, err, domain.CodeUnauthorized)

	if err := svc.Logout(ctx, "jti-1", testNow.Add(time.Hour)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ttl := denylist.Revoked["jti-1"]; ttl != time.Hour {
		t.Errorf("expected ttl of 1h, got %v", ttl)
	}
	if err := svc.Logout(ctx, "jti-2", testNow.Add(-time.Minute)); err != nil {
		t.Fatalf("expected no error for expired token, got %v", err)
	}
	if _, ok := denylist.Revoked["jti-2"]; ok {
		t.Error("expired token should not be stored")
	}

	roles, err := svc.RolesFor(ctx, "")
	if err != nil || len(roles) != 0 {
		t.Errorf("guest roles = (%v, %v), want empty", roles, err)
	}
}
