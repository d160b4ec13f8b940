package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/common/security"
	"taskmaster/internal/domain/model"
	"taskmaster/internal/domain/repository"
	"taskmaster/internal/platform/events"

	"github.com/google/uuid"
)

var (
	errInvalidCredentials = common.NewError(common.ErrUnauthorized, "Invalid credentials")
	errInvalidToken       = common.NewError(common.ErrUnauthorized, "Invalid or expired token")
	errInvalidResetToken  = common.NewError(common.ErrBadRequest, "Invalid or expired reset token")
)

type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionStore
	tokens   *security.TokenIssuer
	hasher   *security.PasswordHasher
	bus      *events.Bus
	resetTTL time.Duration
	now      func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionStore,
	tokens *security.TokenIssuer,
	hasher *security.PasswordHasher,
	bus *events.Bus,
	resetTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		bus:      bus,
		resetTTL: resetTTL,
		now:      time.Now,
	}
}

type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginRequest identifies the account by email or username.
type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Message   string      `json:"message"`
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresIn string      `json:"expiresIn"`
}

type TokenResponse struct {
	Message   string `json:"message"`
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}

type ValidateResponse struct {
	Valid     bool             `json:"valid"`
	UserID    string           `json:"userId,omitempty"`
	ExpiresAt *model.Timestamp `json:"expiresAt,omitempty"`
}

type ResetResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
	ExpiresIn  string `json:"expiresIn"`
}

func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)

	var v validator
	v.username(req.Username)
	v.email(req.Email)
	v.password("password", req.Password)
	v.maxLen("firstName", req.FirstName, maxNameLength)
	v.maxLen("lastName", req.LastName, maxNameLength)
	if err := v.err(); err != nil {
		return nil, err
	}

	if err := ensureFree(ctx, s.users.FindByEmail, req.Email, "", "User with this email already exists"); err != nil {
		return nil, err
	}
	if err := ensureFree(ctx, s.users.FindByUsername, req.Username, "", "Username is already taken"); err != nil {
		return nil, err
	}

	hashed, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := model.NewTimestamp(s.now())
	user := &model.User{
		ID:             uuid.NewString(),
		Username:       req.Username,
		Email:          req.Email,
		HashedPassword: hashed,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Role:           model.RoleUser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) || common.IsUniqueViolation(err) {
			return nil, common.NewError(common.ErrConflict, "User with this email or username already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, _, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.bus.Emit(ctx, events.UserRegistered, user.ID, user.ID, map[string]string{"username": user.Username})

	return &AuthResponse{
		Message:   "User registered successfully",
		User:      user,
		Token:     token,
		ExpiresIn: formatTTL(s.tokens.TTL()),
	}, nil
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	identifier := strings.TrimSpace(req.Email)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Username)
	}
	if identifier == "" || req.Password == "" {
		return nil, common.Validation("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, identifier)
	if errors.Is(err, common.ErrNotFound) {
		user, err = s.users.FindByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Compare(user.HashedPassword, req.Password) {
		return nil, errInvalidCredentials
	}

	user.LastLogin = ptr(model.NewTimestamp(s.now()))
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	token, _, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		Message:   "Login successful",
		User:      user,
		Token:     token,
		ExpiresIn: formatTTL(s.tokens.TTL()),
	}, nil
}

// Refresh trades a live token for a new one and revokes the old session.
func (s *AuthService) Refresh(ctx context.Context, token string) (*TokenResponse, error) {
	principal, err := s.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.sessions.Revoke(ctx, principal.SessionID); err != nil {
		return nil, fmt.Errorf("failed to revoke session: %w", err)
	}
	newToken, _, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		Message:   "Token refreshed successfully",
		Token:     newToken,
		ExpiresIn: formatTTL(s.tokens.TTL()),
	}, nil
}

// Logout revokes the session behind token. Unknown or expired tokens are
// already logged out.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return common.Validation("Token is required")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (s *AuthService) Validate(ctx context.Context, token string) (*ValidateResponse, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return &ValidateResponse{Valid: false}, nil
	}
	if _, err := s.Authenticate(ctx, claims); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return &ValidateResponse{Valid: false}, nil
		}
		return nil, err
	}
	exp := model.NewTimestamp(claims.ExpiresAt)
	return &ValidateResponse{Valid: true, UserID: claims.UserID, ExpiresAt: &exp}, nil
}

// Authenticate checks that verified claims still belong to a live session.
func (s *AuthService) Authenticate(ctx context.Context, claims *security.Claims) (model.Principal, error) {
	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return model.Principal{}, errInvalidToken
		}
		return model.Principal{}, fmt.Errorf("failed to load session: %w", err)
	}
	if session.UserID != claims.UserID {
		return model.Principal{}, errInvalidToken
	}
	return model.Principal{UserID: claims.UserID, Role: claims.Role, SessionID: claims.SessionID}, nil
}

func (s *AuthService) resolveToken(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, common.NewError(common.ErrUnauthorized, "Token is required")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return model.Principal{}, errInvalidToken
	}
	return s.Authenticate(ctx, claims)
}

func (s *AuthService) issueSession(ctx context.Context, user *model.User) (string, time.Time, error) {
	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role, sessionID)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token: %w", err)
	}
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		CreatedAt: s.now().UTC(),
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to store session: %w", err)
	}
	return token, expiresAt, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return user, nil
}

// UpdateProfile changes the caller's own profile; the role is not editable here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req UserUpdate) (*model.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	req.Role = nil
	if err := applyUserUpdate(ctx, s.users, user, req); err != nil {
		return nil, err
	}
	user.UpdatedAt = model.NewTimestamp(s.now())
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) || common.IsUniqueViolation(err) {
			return nil, common.NewError(common.ErrConflict, "User with this email or username already exists")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, req ChangePasswordRequest) error {
	var v validator
	v.check(req.CurrentPassword != "", "currentPassword is required")
	v.password("newPassword", req.NewPassword)
	if err := v.err(); err != nil {
		return err
	}

	user, err := s.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Compare(user.HashedPassword, req.CurrentPassword) {
		return common.NewError(common.ErrBadRequest, "Current password is incorrect")
	}

	hashed, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = hashed
	user.UpdatedAt = model.NewTimestamp(s.now())
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.bus.Emit(ctx, events.PasswordChanged, user.ID, user.ID, nil)
	return nil
}

// ForgotPassword issues a single-use reset token. Delivery is out of band;
// the raw token is returned to the caller.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*ResetResponse, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, common.Validation("Email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	raw, hash, err := security.NewResetToken()
	if err != nil {
		return nil, err
	}
	expires := s.now().Add(s.resetTTL).UTC()
	user.ResetTokenHash = hash
	user.ResetTokenExpires = &expires
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}
	return &ResetResponse{
		Message:    "Password reset token generated",
		ResetToken: raw,
		ExpiresIn:  formatTTL(s.resetTTL),
	}, nil
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (s *AuthService) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	var v validator
	v.check(req.Token != "", "token is required")
	v.password("newPassword", req.NewPassword)
	if err := v.err(); err != nil {
		return err
	}

	user, err := s.users.FindByResetToken(ctx, security.HashResetToken(req.Token))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return errInvalidResetToken
		}
		return fmt.Errorf("failed to find reset token: %w", err)
	}
	if user.ResetTokenExpires == nil || !s.now().Before(*user.ResetTokenExpires) {
		return errInvalidResetToken
	}

	hashed, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.HashedPassword = hashed
	user.ResetTokenHash = ""
	user.ResetTokenExpires = nil
	user.UpdatedAt = model.NewTimestamp(s.now())
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.bus.Emit(ctx, events.PasswordReset, user.ID, user.ID, nil)
	return nil
}

// EnsureAdmin creates the bootstrap admin account, or promotes an existing
// account with the same email. It does nothing without an email and password.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == model.RoleAdmin {
			return nil
		}
		existing.Role = model.RoleAdmin
		existing.UpdatedAt = model.NewTimestamp(s.now())
		if err := s.users.Update(ctx, existing); err != nil {
			return fmt.Errorf("failed to promote admin: %w", err)
		}
		slog.InfoContext(ctx, "promoted existing user to admin", "user_id", existing.ID)
		return nil
	case !errors.Is(err, common.ErrNotFound):
		return fmt.Errorf("failed to look up admin: %w", err)
	}

	if username == "" {
		username = "admin"
	}
	resp, err := s.Register(ctx, RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	admin := resp.User
	admin.Role = model.RoleAdmin
	if err := s.users.Update(ctx, admin); err != nil {
		return fmt.Errorf("failed to promote admin: %w", err)
	}
	// Register opened a session nobody holds a token for.
	if err := s.sessions.RevokeAllForUser(ctx, admin.ID); err != nil {
		return fmt.Errorf("failed to revoke bootstrap session: %w", err)
	}
	slog.InfoContext(ctx, "bootstrap admin created", "user_id", admin.ID, "username", admin.Username)
	return nil
}
