package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/Nef3rp1tou/BlogMvc/internal/domain"
)

const (
	invalidCredentialsMessage = "Invalid email or password"
	userNotFoundMessage       = "User not found"
	passwordMinLength         = 6
)

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(user domain.User) (domain.IssuedToken, error)
}

// AuthService registers and authenticates users and resolves their roles.
// It is the identity provider consumed by PostService.
type AuthService struct {
	users    domain.UserRepository
	tokens   TokenIssuer
	denylist domain.TokenDenylist
	now      func() time.Time
	logger   *slog.Logger
}

func NewAuthService(users domain.UserRepository, tokens TokenIssuer, denylist domain.TokenDenylist, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		denylist: denylist,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "auth_service"),
	}
}

// RolesFor returns the stored roles for userID. Unknown users have none.
func (s *AuthService) RolesFor(ctx context.Context, userID string) (domain.RoleSet, error) {
	if userID == "" {
		return nil, nil
	}
	return s.users.RolesFor(ctx, userID)
}

// Authenticate verifies credentials. Unknown emails and wrong passwords fail
// identically.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, domain.Validation("Email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.Unauthorized(invalidCredentialsMessage)
		}
		return domain.User{}, err
	}
	if !user.VerifyPassword(password) {
		s.logger.Debug("password mismatch", "user_id", user.ID)
		return domain.User{}, domain.Unauthorized(invalidCredentialsMessage)
	}
	if len(user.Roles) == 0 {
		if user.Roles, err = s.users.RolesFor(ctx, user.ID); err != nil {
			return domain.User{}, err
		}
	}
	return user, nil
}

// Login authenticates and issues a bearer token.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	user, err := s.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	tok, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err, "user_id", user.ID)
		return domain.LoginResponse{}, domain.Internal("Failed to issue token")
	}
	return domain.LoginResponse{
		Token:     tok.Token,
		Email:     user.Email,
		UserID:    user.ID,
		Roles:     user.Roles.Strings(),
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

// Register creates an account with the User role.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (domain.User, error) {
	email := strings.TrimSpace(req.Email)
	if err := validateEmail(email); err != nil {
		return domain.User{}, err
	}
	if req.Password != req.ConfirmPassword {
		return domain.User{}, domain.Validation("Passwords do not match")
	}
	if err := validatePassword(req.Password); err != nil {
		return domain.User{}, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return domain.User{}, domain.Validation("Email is already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}

	user := domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Roles:     domain.RoleSet{domain.RoleUser},
		CreatedAt: s.now(),
	}
	if err := user.SetPassword(req.Password); err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return domain.User{}, domain.Internal("Failed to create user")
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	s.logger.Info("user registered", "user_id", created.ID)
	return created, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, userID string) (domain.UserInfo, error) {
	if userID == "" {
		return domain.UserInfo{}, domain.Unauthorized(userNotFoundMessage)
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UserInfo{}, domain.Unauthorized(userNotFoundMessage)
		}
		return domain.UserInfo{}, err
	}
	roles, err := s.users.RolesFor(ctx, user.ID)
	if err != nil {
		return domain.UserInfo{}, err
	}
	return domain.UserInfo{UserID: user.ID, Email: user.Email, Roles: roles.Strings()}, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	if userID == "" {
		return domain.Unauthorized(userNotFoundMessage)
	}
	if req.CurrentPassword == "" {
		return domain.Validation("Current password is required")
	}
	if req.NewPassword != req.ConfirmNewPassword {
		return domain.Validation("Passwords do not match")
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Unauthorized(userNotFoundMessage)
		}
		return err
	}
	if !user.VerifyPassword(req.CurrentPassword) {
		return domain.Validation("Incorrect password.")
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		s.logger.Error("failed to hash password", "error", err, "user_id", userID)
		return domain.Internal("Failed to change password")
	}
	if err := s.users.UpdatePassword(ctx, userID, user.PasswordHash); err != nil {
		return err
	}
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// Logout revokes the token identified by jti until it would have expired
// anyway. Already expired tokens need no entry.
func (s *AuthService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if jti == "" {
		return domain.Unauthorized("Token has no identifier")
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.denylist.Revoke(ctx, jti, ttl); err != nil {
		s.logger.Error("failed to revoke token", "error", err, "jti", jti)
		return domain.Internal("Failed to log out")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return domain.Validation("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return domain.Validation("Email is not a valid email address")
	}
	return nil
}

// validatePassword applies the account password policy and reports every
// unmet requirement.
func validatePassword(pw string) error {
	var digit, upper, lower, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			symbol = true
		}
	}

	var msgs []string
	if len([]rune(pw)) < passwordMinLength {
		msgs = append(msgs, "Passwords must be at least 6 characters.")
	}
	if !digit {
		msgs = append(msgs, "Passwords must have at least one digit ('0'-'9').")
	}
	if !upper {
		msgs = append(msgs, "Passwords must have at least one uppercase ('A'-'Z').")
	}
	if !lower {
		msgs = append(msgs, "Passwords must have at least one lowercase ('a'-'z').")
	}
	if !symbol {
		msgs = append(msgs, "Passwords must have at least one non alphanumeric character.")
	}
	if len(msgs) > 0 {
		return domain.Validation(strings.Join(msgs, ", "))
	}
	return nil
}
