package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/common/security"
	"taskmaster/internal/domain/model"
	"taskmaster/internal/domain/repository"
)

const (
	MinPasswordLength = 6
	MinUsernameLength = 3
	MaxUsernameLength = 30

	maxNameLength        = 50
	maxProjectName       = 100
	maxProjectDesc       = 1000
	maxTaskTitle         = 200
	maxTaskDesc          = 2000
	maxCommentLength     = 1000
	maxSubtaskTitle      = 200
	maxTagLength         = 30
	insightSearchLimit   = 20
	defaultProjectMember = model.MemberDeveloper
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// validator collects field problems and turns them into one 400 error.
type validator struct {
	details []string
}

func (v *validator) add(format string, args ...interface{}) {
	v.details = append(v.details, fmt.Sprintf(format, args...))
}

func (v *validator) check(ok bool, format string, args ...interface{}) {
	if !ok {
		v.add(format, args...)
	}
}

func (v *validator) err() error {
	if len(v.details) == 0 {
		return nil
	}
	return common.Validation("Validation failed: "+strings.Join(v.details, "; "), v.details...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return at > 0 && strings.Contains(email[at+1:], ".")
}

func (v *validator) email(email string) {
	switch {
	case email == "":
		v.add("email is required")
	case !validEmail(email):
		v.add("Please provide a valid email")
	}
}

func (v *validator) username(username string) {
	switch {
	case username == "":
		v.add("username is required")
	case len(username) < MinUsernameLength || len(username) > MaxUsernameLength:
		v.add("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength)
	case !usernamePattern.MatchString(username):
		v.add("username may only contain letters, digits, '.', '_' and '-'")
	}
}

func (v *validator) password(field, password string) {
	switch {
	case password == "":
		v.add("%s is required", field)
	case len(password) < MinPasswordLength:
		v.add("%s must be at least %d characters long", field, MinPasswordLength)
	case len(password) > security.MaxPasswordLength:
		v.add("%s must be at most %d characters long", field, security.MaxPasswordLength)
	}
}

func (v *validator) maxLen(field, value string, max int) {
	v.check(len([]rune(value)) <= max, "%s must be at most %d characters", field, max)
}

func (v *validator) tags(tags []string) {
	for _, t := range tags {
		if strings.TrimSpace(t) == "" {
			v.add("tags must not be empty")
			return
		}
		v.maxLen("tag", t, maxTagLength)
	}
}

func enumList[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func invalidStatus[T ~string](values []T) error {
	return common.Validation("Invalid status", "status must be one of: "+enumList(values))
}

func validSortOrder(order string) bool {
	return order == "" || order == model.SortAsc || order == model.SortDesc
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, strings.TrimSpace(t))
	}
	return out
}

// UserUpdate is a partial update of a user's profile fields.
type UserUpdate struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
}

// applyUserUpdate validates req and merges it into u, checking that a new
// email or username is not taken by another account.
func applyUserUpdate(ctx context.Context, users repository.UserRepository, u *model.User, req UserUpdate) error {
	var v validator
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		v.email(email)
		req.Email = &email
	}
	if req.Username != nil {
		v.username(strings.TrimSpace(*req.Username))
	}
	if req.FirstName != nil {
		v.maxLen("firstName", *req.FirstName, maxNameLength)
	}
	if req.LastName != nil {
		v.maxLen("lastName", *req.LastName, maxNameLength)
	}
	if req.Role != nil {
		v.check(model.IsValidRole(*req.Role), "role must be one of: %s, %s", model.RoleUser, model.RoleAdmin)
	}
	if err := v.err(); err != nil {
		return err
	}

	if req.Email != nil && !strings.EqualFold(*req.Email, u.Email) {
		if err := ensureFree(ctx, users.FindByEmail, *req.Email, u.ID, "User with this email already exists"); err != nil {
			return err
		}
		u.Email = *req.Email
	}
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if !strings.EqualFold(username, u.Username) {
			if err := ensureFree(ctx, users.FindByUsername, username, u.ID, "Username is already taken"); err != nil {
				return err
			}
		}
		u.Username = username
	}
	if req.FirstName != nil {
		u.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		u.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	return nil
}

func ensureFree(ctx context.Context, find func(context.Context, string) (*model.User, error), value, selfID, msg string) error {
	existing, err := find(ctx, value)
	switch {
	case errors.Is(err, common.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check uniqueness: %w", err)
	case existing.ID != selfID:
		return common.NewError(common.ErrConflict, msg)
	}
	return nil
}

// formatTTL renders a duration the way clients see it, e.g. "24h" or "90m".
func formatTTL(d time.Duration) string {
	switch {
	case d > 0 && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	}
	return d.String()
}

func ptr[T any](v T) *T {
	return &v
}
