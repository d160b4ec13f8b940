package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
	"taskmaster/internal/domain/repository"
	"taskmaster/internal/platform/events"

	"github.com/google/uuid"
)

var (
	errTaskNotFound = common.NotFound("Task not found")
	errInvalidUser  = common.NewError(common.ErrBadRequest, "Invalid user")
)

type TaskService struct {
	tasks    repository.TaskRepository
	projects repository.ProjectRepository
	users    repository.UserRepository
	bus      *events.Bus
	now      func() time.Time
}

func NewTaskService(store *repository.Store, bus *events.Bus) *TaskService {
	return &TaskService{
		tasks:    store.Tasks,
		projects: store.Projects,
		users:    store.Users,
		bus:      bus,
		now:      time.Now,
	}
}

// CreateTaskRequest accepts the project as either "projectId" or "project".
type CreateTaskRequest struct {
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	ProjectID      string             `json:"projectId"`
	Project        string             `json:"project"`
	Status         model.TaskStatus   `json:"status"`
	Priority       model.TaskPriority `json:"priority"`
	Type           model.TaskType     `json:"type"`
	AssignedTo     *string            `json:"assignedTo"`
	EstimatedHours float64            `json:"estimatedHours"`
	DueDate        *model.Timestamp   `json:"dueDate"`
	Tags           []string           `json:"tags"`
}

type UpdateTaskRequest struct {
	Title          *string             `json:"title"`
	Description    *string             `json:"description"`
	Status         *model.TaskStatus   `json:"status"`
	Priority       *model.TaskPriority `json:"priority"`
	Type           *model.TaskType     `json:"type"`
	AssignedTo     *string             `json:"assignedTo"`
	EstimatedHours *float64            `json:"estimatedHours"`
	ActualHours    *float64            `json:"actualHours"`
	DueDate        *model.Timestamp    `json:"dueDate"`
	Tags           *[]string           `json:"tags"`
}

func validateTask(v *validator, t *model.Task) {
	v.check(strings.TrimSpace(t.Title) != "", "title is required")
	v.maxLen("title", t.Title, maxTaskTitle)
	v.maxLen("description", t.Description, maxTaskDesc)
	v.check(t.Priority.Valid(), "priority must be one of: %s", enumList(model.TaskPriorities))
	v.check(t.Type.Valid(), "type must be one of: %s", enumList(model.TaskTypes))
	v.check(t.EstimatedHours >= 0, "estimatedHours must not be negative")
	v.check(t.ActualHours >= 0, "actualHours must not be negative")
	v.tags(t.Tags)
}

// normalizeTaskQuery validates list parameters and applies the default
// newest-first order.
func normalizeTaskQuery(q *model.TaskQuery) error {
	var v validator
	v.check(q.Status == "" || q.Status.Valid(), "status must be one of: %s", enumList(model.TaskStatuses))
	v.check(q.Priority == "" || q.Priority.Valid(), "priority must be one of: %s", enumList(model.TaskPriorities))
	switch q.SortField {
	case "", "date":
		q.SortField = model.TaskSortCreatedAt
	case model.TaskSortTitle, model.TaskSortCreatedAt, model.TaskSortUpdatedAt,
		model.TaskSortDueDate, model.TaskSortPriority, model.TaskSortStatus:
	default:
		v.add("sort field must be one of: title, date, createdAt, updatedAt, dueDate, priority, status")
	}
	v.check(validSortOrder(q.SortOrder), "order must be asc or desc")
	if err := v.err(); err != nil {
		return err
	}
	if q.SortOrder == "" {
		q.SortOrder = model.SortDesc
	}
	q.Search = strings.TrimSpace(q.Search)
	return nil
}

func (s *TaskService) loadProject(ctx context.Context, id string) (*model.Project, error) {
	p, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errProjectNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return p, nil
}

// requireUser resolves an assignee id, failing with "Invalid user".
func (s *TaskService) requireUser(ctx context.Context, id string) error {
	if id == "" {
		return errInvalidUser
	}
	if _, err := s.users.FindByID(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return errInvalidUser
		}
		return fmt.Errorf("failed to load assignee: %w", err)
	}
	return nil
}

func (s *TaskService) Create(ctx context.Context, actor model.Principal, req CreateTaskRequest) (*model.Task, error) {
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		projectID = strings.TrimSpace(req.Project)
	}

	now := model.NewTimestamp(s.now())
	t := &model.Task{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		ProjectID:      projectID,
		Status:         req.Status,
		Priority:       req.Priority,
		Type:           req.Type,
		Reporter:       actor.UserID,
		EstimatedHours: req.EstimatedHours,
		DueDate:        req.DueDate,
		Tags:           cleanTags(req.Tags),
		Comments:       []model.Comment{},
		Subtasks:       []model.Subtask{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if t.Status == "" {
		t.Status = model.TaskPending
	}
	if t.Priority == "" {
		t.Priority = model.TaskPriorityMedium
	}
	if t.Type == "" {
		t.Type = model.TaskFeature
	}

	var v validator
	v.check(projectID != "", "projectId is required")
	validateTask(&v, t)
	v.check(t.Status.Valid(), "status must be one of: %s", enumList(model.TaskStatuses))
	if err := v.err(); err != nil {
		return nil, err
	}

	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canViewProject(project, actor) {
		return nil, common.Forbidden("Access denied")
	}
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		if err := s.requireUser(ctx, *req.AssignedTo); err != nil {
			return nil, err
		}
		t.AssignedTo = ptr(*req.AssignedTo)
	}
	if t.Status == model.TaskCompleted {
		t.CompletedAt = ptr(now)
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	s.refreshProgress(ctx, projectID)
	s.bus.Emit(ctx, events.TaskCreated, t.ID, actor.UserID, map[string]string{"projectId": projectID, "title": t.Title})
	return t, nil
}

func (s *TaskService) find(ctx context.Context, id string) (*model.Task, error) {
	t, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	return t, nil
}

// canView allows admins, the reporter, the assignee and anyone on the
// task's project.
func (s *TaskService) canView(ctx context.Context, t *model.Task, actor model.Principal) (bool, error) {
	if actor.IsAdmin() || t.Reporter == actor.UserID || t.IsAssignedTo(actor.UserID) {
		return true, nil
	}
	p, err := s.projects.FindByID(ctx, t.ProjectID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load project: %w", err)
	}
	return p.Involves(actor.UserID), nil
}

func (s *TaskService) Get(ctx context.Context, actor model.Principal, id string) (*model.Task, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canView(ctx, t, actor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.Forbidden("Access denied")
	}
	return t, nil
}

// Update merges the non-nil fields of req. An empty assignedTo unassigns.
func (s *TaskService) Update(ctx context.Context, actor model.Principal, id string, req UpdateTaskRequest) (*model.Task, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, invalidStatus(model.TaskStatuses)
	}
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	previousStatus := t.Status
	previousAssignee := t.AssignedTo

	if req.Title != nil {
		t.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		t.Description = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.Type != nil {
		t.Type = *req.Type
	}
	if req.EstimatedHours != nil {
		t.EstimatedHours = *req.EstimatedHours
	}
	if req.ActualHours != nil {
		t.ActualHours = *req.ActualHours
	}
	if req.DueDate != nil {
		t.DueDate = req.DueDate
	}
	if req.Tags != nil {
		t.Tags = cleanTags(*req.Tags)
	}

	var v validator
	validateTask(&v, t)
	if err := v.err(); err != nil {
		return nil, err
	}

	if req.AssignedTo != nil {
		if *req.AssignedTo == "" {
			t.AssignedTo = nil
		} else {
			if err := s.requireUser(ctx, *req.AssignedTo); err != nil {
				return nil, err
			}
			t.AssignedTo = ptr(*req.AssignedTo)
		}
	}
	now := model.NewTimestamp(s.now())
	if req.Status != nil {
		t.Status = *req.Status
		markCompletion(t, previousStatus, now)
	}

	t.UpdatedAt = now
	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	s.bus.Emit(ctx, events.TaskUpdated, t.ID, actor.UserID, nil)
	if t.Status != previousStatus {
		s.refreshProgress(ctx, t.ProjectID)
		s.bus.Emit(ctx, events.TaskStatusSet, t.ID, actor.UserID, map[string]string{"from": string(previousStatus), "to": string(t.Status)})
	}
	if !sameAssignee(previousAssignee, t.AssignedTo) {
		s.bus.Emit(ctx, events.TaskAssigned, t.ID, actor.UserID, map[string]*string{"assignedTo": t.AssignedTo})
	}
	return t, nil
}

func markCompletion(t *model.Task, previous model.TaskStatus, now model.Timestamp) {
	switch {
	case t.Status == model.TaskCompleted && previous != model.TaskCompleted:
		t.CompletedAt = ptr(now)
	case t.Status != model.TaskCompleted:
		t.CompletedAt = nil
	}
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Delete is allowed for admins, the reporter and the project owner.
func (s *TaskService) Delete(ctx context.Context, actor model.Principal, id string) error {
	t, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	allowed := actor.IsAdmin() || t.Reporter == actor.UserID
	if !allowed {
		if p, err := s.projects.FindByID(ctx, t.ProjectID); err == nil && p.Owner == actor.UserID {
			allowed = true
		}
	}
	if !allowed {
		return common.Forbidden("Only the project owner, the reporter or an admin can delete this task")
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return errTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	s.refreshProgress(ctx, t.ProjectID)
	s.bus.Emit(ctx, events.TaskDeleted, id, actor.UserID, map[string]string{"projectId": t.ProjectID})
	return nil
}

// List returns tasks the actor reports or is assigned to; admins see all.
func (s *TaskService) List(ctx context.Context, actor model.Principal, q model.TaskQuery) ([]model.Task, model.Pagination, error) {
	if err := normalizeTaskQuery(&q); err != nil {
		return nil, model.Pagination{}, err
	}
	if !actor.IsAdmin() {
		q.InvolvedUser = actor.UserID
	}
	return s.list(ctx, q)
}

func (s *TaskService) MyTasks(ctx context.Context, actor model.Principal, q model.TaskQuery) ([]model.Task, model.Pagination, error) {
	if err := normalizeTaskQuery(&q); err != nil {
		return nil, model.Pagination{}, err
	}
	q.AssignedTo = actor.UserID
	q.InvolvedUser = ""
	return s.list(ctx, q)
}

func (s *TaskService) list(ctx context.Context, q model.TaskQuery) ([]model.Task, model.Pagination, error) {
	tasks, total, err := s.tasks.List(ctx, q)
	if err != nil {
		return nil, model.Pagination{}, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, model.NewPagination(q.Page, q.Limit, total), nil
}

func (s *TaskService) SetStatus(ctx context.Context, actor model.Principal, id string, status model.TaskStatus) (*model.Task, error) {
	return s.Update(ctx, actor, id, UpdateTaskRequest{Status: &status})
}

func (s *TaskService) Assign(ctx context.Context, actor model.Principal, id, userID string) (*model.Task, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, common.Validation("Validation failed: assignedTo is required", "assignedTo is required")
	}
	return s.Update(ctx, actor, id, UpdateTaskRequest{AssignedTo: &userID})
}

func (s *TaskService) Unassign(ctx context.Context, actor model.Principal, id string) (*model.Task, error) {
	return s.Update(ctx, actor, id, UpdateTaskRequest{AssignedTo: ptr("")})
}

func (s *TaskService) AddComment(ctx context.Context, actor model.Principal, id, text string) (*model.Task, error) {
	text = strings.TrimSpace(text)
	var v validator
	v.check(text != "", "text is required")
	v.maxLen("text", text, maxCommentLength)
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	comment := model.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    actor.UserID,
		CreatedAt: model.NewTimestamp(s.now()),
	}
	t, err := s.tasks.AddComment(ctx, id, comment)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errTaskNotFound
		}
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	s.bus.Emit(ctx, events.TaskCommented, id, actor.UserID, map[string]string{"commentId": comment.ID})
	return t, nil
}

func (s *TaskService) Comments(ctx context.Context, actor model.Principal, id string) ([]model.Comment, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return t.Comments, nil
}

func (s *TaskService) AddSubtask(ctx context.Context, actor model.Principal, id, title string) (*model.Task, error) {
	title = strings.TrimSpace(title)
	var v validator
	v.check(title != "", "title is required")
	v.maxLen("title", title, maxSubtaskTitle)
	if err := v.err(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}

	subtask := model.Subtask{ID: uuid.NewString(), Title: title, CreatedAt: model.NewTimestamp(s.now())}
	t, err := s.tasks.AddSubtask(ctx, id, subtask)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errTaskNotFound
		}
		return nil, fmt.Errorf("failed to add subtask: %w", err)
	}
	return t, nil
}

func (s *TaskService) ToggleSubtask(ctx context.Context, actor model.Principal, id, subtaskID string) (*model.Task, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	t, err := s.tasks.ToggleSubtask(ctx, id, subtaskID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.NotFound("Subtask not found")
		}
		return nil, fmt.Errorf("failed to toggle subtask: %w", err)
	}
	return t, nil
}

// refreshProgress recomputes a project's completion percentage. Failures are
// logged only.
func (s *TaskService) refreshProgress(ctx context.Context, projectID string) {
	tasks, _, err := s.tasks.List(ctx, model.TaskQuery{ProjectID: projectID})
	if err == nil {
		err = s.projects.SetProgress(ctx, projectID, progressOf(tasks))
	}
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		slog.WarnContext(ctx, "failed to refresh project progress", "project_id", projectID, "error", err)
	}
}

func progressOf(tasks []model.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range tasks {
		if t.Status == model.TaskCompleted {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(len(tasks)) * 100))
}
