package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
	"taskmaster/internal/domain/repository"
	"taskmaster/internal/platform/events"
)

type UserService struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	sessions repository.SessionStore
	bus      *events.Bus
	now      func() time.Time
}

func NewUserService(store *repository.Store, sessions repository.SessionStore, bus *events.Bus) *UserService {
	return &UserService{
		users:    store.Users,
		projects: store.Projects,
		tasks:    store.Tasks,
		sessions: sessions,
		bus:      bus,
		now:      time.Now,
	}
}

type UserStats struct {
	TotalUsers       int            `json:"totalUsers"`
	RoleDistribution map[string]int `json:"roleDistribution"`
}

func (s *UserService) List(ctx context.Context, q model.UserQuery) ([]model.User, model.Pagination, error) {
	if q.Role != "" && !model.IsValidRole(q.Role) {
		return nil, model.Pagination{}, common.Validation("Validation failed", "role must be one of: user, admin")
	}
	users, total, err := s.users.List(ctx, q)
	if err != nil {
		return nil, model.Pagination{}, fmt.Errorf("failed to list users: %w", err)
	}
	return users, model.NewPagination(q.Page, q.Limit, total), nil
}

func (s *UserService) Stats(ctx context.Context) (*UserStats, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	stats := &UserStats{RoleDistribution: map[string]int{model.RoleUser: 0, model.RoleAdmin: 0}}
	for role, n := range counts {
		stats.RoleDistribution[role] = n
		stats.TotalUsers += n
	}
	return stats, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("User not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// Update edits a user. Users may edit themselves; only admins edit others
// or change roles. Tokens carry the role, so a role change ends the user's
// sessions.
func (s *UserService) Update(ctx context.Context, actor model.Principal, id string, req UserUpdate) (*model.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, common.Forbidden("Access denied")
	}
	if req.Role != nil && !actor.IsAdmin() {
		return nil, common.Forbidden("Only admins can change roles")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previousRole := user.Role
	if err := applyUserUpdate(ctx, s.users, user, req); err != nil {
		return nil, err
	}
	user.UpdatedAt = model.NewTimestamp(s.now())
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) || common.IsUniqueViolation(err) {
			return nil, common.NewError(common.ErrConflict, "User with this email or username already exists")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if user.Role != previousRole {
		if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
	}
	return user, nil
}

// Delete removes a user, ends their sessions, drops them from every project
// team and unassigns their tasks. Projects they own are kept.
func (s *UserService) Delete(ctx context.Context, actor model.Principal, id string) error {
	if actor.UserID != id && !actor.IsAdmin() {
		return common.Forbidden("Access denied")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.NotFound("User not found")
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, id); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if err := s.tasks.UnassignUser(ctx, id); err != nil {
		return fmt.Errorf("failed to unassign tasks: %w", err)
	}
	if err := s.projects.RemoveUserFromAll(ctx, id); err != nil {
		return fmt.Errorf("failed to remove memberships: %w", err)
	}
	s.bus.Emit(ctx, events.UserDeleted, id, actor.UserID, nil)
	return nil
}
