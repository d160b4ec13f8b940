package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
)

type memoryProjectRepository struct {
	mu       sync.RWMutex
	projects map[string]*model.Project
	order    []string
}

func NewMemoryProjectRepository() ProjectRepository {
	return &memoryProjectRepository{projects: make(map[string]*model.Project)}
}

func (r *memoryProjectRepository) Create(ctx context.Context, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.projects[p.ID]; exists {
		return fmt.Errorf("project %s already exists: %w", p.ID, common.ErrConflict)
	}
	r.projects[p.ID] = p.Clone()
	r.order = append(r.order, p.ID)
	return nil
}

func (r *memoryProjectRepository) Update(ctx context.Context, p *model.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.projects[p.ID]
	if !ok {
		return common.ErrNotFound
	}
	next := p.Clone()
	next.Members = current.Members
	r.projects[p.ID] = next
	return nil
}

func (r *memoryProjectRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.projects[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.projects, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
	return nil
}

func (r *memoryProjectRepository) FindByID(ctx context.Context, id string) (*model.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.projects[id]; ok {
		return p.Clone(), nil
	}
	return nil, common.ErrNotFound
}

func (r *memoryProjectRepository) List(ctx context.Context, q model.ProjectQuery) ([]model.Project, int, error) {
	r.mu.RLock()
	matched := make([]model.Project, 0, len(r.order))
	for _, id := range r.order {
		p := r.projects[id]
		if matchProject(p, q) {
			matched = append(matched, *p.Clone())
		}
	}
	r.mu.RUnlock()

	sortStable(matched, projectComparator(q.SortField), q.SortOrder)
	return paginate(matched, q.Page, q.Limit), len(matched), nil
}

func (r *memoryProjectRepository) AddMember(ctx context.Context, projectID string, member model.Member) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[projectID]
	if !ok {
		return nil, common.ErrNotFound
	}
	if _, exists := p.Member(member.UserID); !exists {
		p.Members = append(p.Members, member)
		p.UpdatedAt = member.JoinedAt
	}
	return p.Clone(), nil
}

func (r *memoryProjectRepository) RemoveMember(ctx context.Context, projectID, userID string) (*model.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[projectID]
	if !ok {
		return nil, common.ErrNotFound
	}
	p.Members = slices.DeleteFunc(p.Members, func(m model.Member) bool { return m.UserID == userID })
	return p.Clone(), nil
}

func (r *memoryProjectRepository) RemoveUserFromAll(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.projects {
		p.Members = slices.DeleteFunc(p.Members, func(m model.Member) bool { return m.UserID == userID })
	}
	return nil
}

func (r *memoryProjectRepository) SetProgress(ctx context.Context, projectID string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.projects[projectID]
	if !ok {
		return common.ErrNotFound
	}
	p.Progress = progress
	return nil
}
