package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
)

type memoryTaskRepository struct {
	mu    sync.RWMutex
	tasks map[string]*model.Task
	order []string
}

func NewMemoryTaskRepository() TaskRepository {
	return &memoryTaskRepository{tasks: make(map[string]*model.Task)}
}

func (r *memoryTaskRepository) Create(ctx context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists: %w", t.ID, common.ErrConflict)
	}
	r.tasks[t.ID] = t.Clone()
	r.order = append(r.order, t.ID)
	return nil
}

func (r *memoryTaskRepository) Update(ctx context.Context, t *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tasks[t.ID]
	if !ok {
		return common.ErrNotFound
	}
	next := t.Clone()
	next.Comments = current.Comments
	next.Subtasks = current.Subtasks
	r.tasks[t.ID] = next
	return nil
}

func (r *memoryTaskRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return common.ErrNotFound
	}
	r.deleteLocked(id)
	return nil
}

func (r *memoryTaskRepository) deleteLocked(id string) {
	delete(r.tasks, id)
	r.order = slices.DeleteFunc(r.order, func(v string) bool { return v == id })
}

func (r *memoryTaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.tasks[id]; ok {
		return t.Clone(), nil
	}
	return nil, common.ErrNotFound
}

func (r *memoryTaskRepository) List(ctx context.Context, q model.TaskQuery) ([]model.Task, int, error) {
	r.mu.RLock()
	matched := make([]model.Task, 0, len(r.order))
	for _, id := range r.order {
		t := r.tasks[id]
		if matchTask(t, q) {
			matched = append(matched, *t.Clone())
		}
	}
	r.mu.RUnlock()

	sortStable(matched, taskComparator(q.SortField), q.SortOrder)
	return paginate(matched, q.Page, q.Limit), len(matched), nil
}

func (r *memoryTaskRepository) AddComment(ctx context.Context, taskID string, c model.Comment) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, common.ErrNotFound
	}
	t.Comments = append(t.Comments, c)
	t.UpdatedAt = c.CreatedAt
	return t.Clone(), nil
}

func (r *memoryTaskRepository) AddSubtask(ctx context.Context, taskID string, s model.Subtask) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, common.ErrNotFound
	}
	t.Subtasks = append(t.Subtasks, s)
	t.UpdatedAt = s.CreatedAt
	return t.Clone(), nil
}

func (r *memoryTaskRepository) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, common.ErrNotFound
	}
	i := slices.IndexFunc(t.Subtasks, func(s model.Subtask) bool { return s.ID == subtaskID })
	if i < 0 {
		return nil, common.ErrNotFound
	}
	t.Subtasks[i].Completed = !t.Subtasks[i].Completed
	return t.Clone(), nil
}

func (r *memoryTaskRepository) DeleteByProject(ctx context.Context, projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tasks {
		if t.ProjectID == projectID {
			r.deleteLocked(id)
		}
	}
	return nil
}

func (r *memoryTaskRepository) UnassignUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tasks {
		if t.IsAssignedTo(userID) {
			t.AssignedTo = nil
		}
	}
	return nil
}
