package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
)

type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*model.User
	order []string
}

func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]*model.User)}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists: %w", user.ID, common.ErrConflict)
	}
	if err := r.checkUniqueLocked(user); err != nil {
		return err
	}
	r.users[user.ID] = user.Clone()
	r.order = append(r.order, user.ID)
	return nil
}

func (r *memoryUserRepository) checkUniqueLocked(user *model.User) error {
	for id, existing := range r.users {
		if id == user.ID {
			continue
		}
		if strings.EqualFold(existing.Email, user.Email) || strings.EqualFold(existing.Username, user.Username) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
	}
	return nil
}

func (r *memoryUserRepository) Update(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return common.ErrNotFound
	}
	if err := r.checkUniqueLocked(user); err != nil {
		return err
	}
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *memoryUserRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.users, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return nil
}

func (r *memoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.users[id]; ok {
		return u.Clone(), nil
	}
	return nil, common.ErrNotFound
}

func (r *memoryUserRepository) findBy(match func(*model.User) bool) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r *memoryUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findBy(func(u *model.User) bool { return strings.EqualFold(u.Username, username) })
}

func (r *memoryUserRepository) FindByResetToken(ctx context.Context, tokenHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, common.ErrNotFound
	}
	return r.findBy(func(u *model.User) bool { return u.ResetTokenHash == tokenHash })
}

func (r *memoryUserRepository) List(ctx context.Context, q model.UserQuery) ([]model.User, int, error) {
	r.mu.RLock()
	matched := make([]model.User, 0, len(r.order))
	for _, id := range r.order {
		u := r.users[id]
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		if q.Search != "" && !containsFold(u.Username, q.Search) && !containsFold(u.Email, q.Search) &&
			!containsFold(u.FirstName, q.Search) && !containsFold(u.LastName, q.Search) {
			continue
		}
		matched = append(matched, *u.Clone())
	}
	r.mu.RUnlock()

	sortStable(matched, func(a, b model.User) int { return a.CreatedAt.Compare(b.CreatedAt.Time) }, model.SortDesc)
	return paginate(matched, q.Page, q.Limit), len(matched), nil
}

func (r *memoryUserRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, u := range r.users {
		counts[u.Role]++
	}
	return counts, nil
}
