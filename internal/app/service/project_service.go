package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
	"taskmaster/internal/domain/repository"
	"taskmaster/internal/platform/events"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var errProjectNotFound = common.NotFound("Project not found")

type ProjectService struct {
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	bus      *events.Bus
	now      func() time.Time
}

func NewProjectService(store *repository.Store, bus *events.Bus) *ProjectService {
	return &ProjectService{
		projects: store.Projects,
		tasks:    store.Tasks,
		bus:      bus,
		now:      time.Now,
	}
}

type MemberRequest struct {
	UserID string           `json:"userId"`
	Role   model.MemberRole `json:"role"`
}

type CreateProjectRequest struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Status      model.ProjectStatus   `json:"status"`
	Priority    model.ProjectPriority `json:"priority"`
	Tags        []string              `json:"tags"`
	Budget      *model.Budget         `json:"budget"`
	StartDate   *model.Timestamp      `json:"startDate"`
	EndDate     *model.Timestamp      `json:"endDate"`
	Members     []MemberRequest       `json:"members"`
}

type UpdateProjectRequest struct {
	Name        *string                `json:"name"`
	Description *string                `json:"description"`
	Status      *model.ProjectStatus   `json:"status"`
	Priority    *model.ProjectPriority `json:"priority"`
	Tags        *[]string              `json:"tags"`
	Budget      *model.Budget          `json:"budget"`
	StartDate   *model.Timestamp       `json:"startDate"`
	EndDate     *model.Timestamp       `json:"endDate"`
}

func canViewProject(p *model.Project, actor model.Principal) bool {
	return actor.IsAdmin() || p.Involves(actor.UserID)
}

// canManageProject covers deletion and team changes: admins, the owner and
// team leads.
func canManageProject(p *model.Project, actor model.Principal) bool {
	if actor.IsAdmin() || p.Owner == actor.UserID {
		return true
	}
	m, ok := p.Member(actor.UserID)
	return ok && m.Role == model.MemberLead
}

func validateProject(v *validator, p *model.Project) {
	v.check(strings.TrimSpace(p.Name) != "", "name is required")
	v.maxLen("name", p.Name, maxProjectName)
	v.check(strings.TrimSpace(p.Description) != "", "description is required")
	v.maxLen("description", p.Description, maxProjectDesc)
	v.check(p.Status.Valid(), "status must be one of: %s", enumList(model.ProjectStatuses))
	v.check(p.Priority.Valid(), "priority must be one of: %s", enumList(model.ProjectPriorities))
	v.check(p.Budget.Allocated >= 0 && p.Budget.Spent >= 0, "budget values must not be negative")
	if p.StartDate != nil && p.EndDate != nil {
		v.check(!p.EndDate.Before(p.StartDate.Time), "endDate must not be before startDate")
	}
	v.tags(p.Tags)
}

func (s *ProjectService) Create(ctx context.Context, actor model.Principal, req CreateProjectRequest) (*model.Project, error) {
	now := model.NewTimestamp(s.now())
	p := &model.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Status:      req.Status,
		Priority:    req.Priority,
		Owner:       actor.UserID,
		Members:     []model.Member{},
		Tags:        cleanTags(req.Tags),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.Status == "" {
		p.Status = model.ProjectActive
	}
	if p.Priority == "" {
		p.Priority = model.ProjectPriorityMedium
	}
	if req.Budget != nil {
		p.Budget = *req.Budget
	}

	var v validator
	validateProject(&v, p)
	for _, m := range req.Members {
		v.check(m.UserID != "", "members[].userId is required")
		v.check(m.Role == "" || m.Role.Valid(), "members[].role must be one of: %s", enumList(model.MemberRoles))
	}
	if err := v.err(); err != nil {
		return nil, err
	}
	p.Slug = slug.Make(p.Name)

	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	for _, m := range req.Members {
		role := m.Role
		if role == "" {
			role = defaultProjectMember
		}
		updated, err := s.projects.AddMember(ctx, p.ID, model.Member{UserID: m.UserID, Role: role, JoinedAt: now})
		if err != nil {
			return nil, fmt.Errorf("failed to add project member: %w", err)
		}
		p = updated
	}
	s.bus.Emit(ctx, events.ProjectCreated, p.ID, actor.UserID, map[string]string{"name": p.Name})
	return p, nil
}

func (s *ProjectService) find(ctx context.Context, id string) (*model.Project, error) {
	p, err := s.projects.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errProjectNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return p, nil
}

func (s *ProjectService) Get(ctx context.Context, actor model.Principal, id string) (*model.Project, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canViewProject(p, actor) {
		return nil, common.Forbidden("Access denied")
	}
	return p, nil
}

// Update merges the non-nil fields of req into the project.
func (s *ProjectService) Update(ctx context.Context, actor model.Principal, id string, req UpdateProjectRequest) (*model.Project, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, invalidStatus(model.ProjectStatuses)
	}
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	previousStatus := p.Status

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
		p.Slug = slug.Make(p.Name)
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Status != nil {
		p.Status = *req.Status
	}
	if req.Priority != nil {
		p.Priority = *req.Priority
	}
	if req.Tags != nil {
		p.Tags = cleanTags(*req.Tags)
	}
	if req.Budget != nil {
		p.Budget = *req.Budget
	}
	if req.StartDate != nil {
		p.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		p.EndDate = req.EndDate
	}

	var v validator
	validateProject(&v, p)
	if err := v.err(); err != nil {
		return nil, err
	}

	p.UpdatedAt = model.NewTimestamp(s.now())
	if err := s.projects.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	s.bus.Emit(ctx, events.ProjectUpdated, p.ID, actor.UserID, nil)
	if p.Status != previousStatus {
		s.bus.Emit(ctx, events.ProjectStatusSet, p.ID, actor.UserID, map[string]string{"from": string(previousStatus), "to": string(p.Status)})
	}
	return p, nil
}

// Delete removes the project and all of its tasks.
func (s *ProjectService) Delete(ctx context.Context, actor model.Principal, id string) error {
	p, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !canManageProject(p, actor) {
		return common.Forbidden("Only the project owner, a team lead or an admin can delete this project")
	}
	if err := s.tasks.DeleteByProject(ctx, id); err != nil {
		return fmt.Errorf("failed to delete project tasks: %w", err)
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return errProjectNotFound
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}
	s.bus.Emit(ctx, events.ProjectDeleted, id, actor.UserID, nil)
	return nil
}

// List returns the projects visible to actor. Sorting defaults to newest
// first; "date" is accepted as an alias of createdAt.
func (s *ProjectService) List(ctx context.Context, actor model.Principal, q model.ProjectQuery) ([]model.Project, model.Pagination, error) {
	var v validator
	v.check(q.Status == "" || q.Status.Valid(), "status must be one of: %s", enumList(model.ProjectStatuses))
	v.check(q.Priority == "" || q.Priority.Valid(), "priority must be one of: %s", enumList(model.ProjectPriorities))
	switch q.SortField {
	case "":
		q.SortField = model.ProjectSortCreatedAt
	case "date":
		q.SortField = model.ProjectSortCreatedAt
	case model.ProjectSortName, model.ProjectSortCreatedAt, model.ProjectSortUpdatedAt,
		model.ProjectSortPriority, model.ProjectSortStatus:
	default:
		v.add("sort field must be one of: name, date, createdAt, updatedAt, priority, status")
	}
	v.check(validSortOrder(q.SortOrder), "order must be asc or desc")
	if err := v.err(); err != nil {
		return nil, model.Pagination{}, err
	}
	if q.SortOrder == "" {
		q.SortOrder = model.SortDesc
	}
	q.Search = strings.TrimSpace(q.Search)
	if !actor.IsAdmin() {
		q.MemberID = actor.UserID
	}

	projects, total, err := s.projects.List(ctx, q)
	if err != nil {
		return nil, model.Pagination{}, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, model.NewPagination(q.Page, q.Limit, total), nil
}

// AddMember adds a user to the team. Adding a present member changes nothing.
func (s *ProjectService) AddMember(ctx context.Context, actor model.Principal, projectID string, req MemberRequest) (*model.Project, error) {
	var v validator
	v.check(strings.TrimSpace(req.UserID) != "", "userId is required")
	v.check(req.Role == "" || req.Role.Valid(), "role must be one of: %s", enumList(model.MemberRoles))
	if err := v.err(); err != nil {
		return nil, err
	}
	p, err := s.find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canManageProject(p, actor) {
		return nil, common.Forbidden("Only the project owner, a team lead or an admin can manage members")
	}

	role := req.Role
	if role == "" {
		role = defaultProjectMember
	}
	_, existed := p.Member(req.UserID)
	member := model.Member{UserID: strings.TrimSpace(req.UserID), Role: role, JoinedAt: model.NewTimestamp(s.now())}
	updated, err := s.projects.AddMember(ctx, projectID, member)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errProjectNotFound
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}
	if !existed {
		s.bus.Emit(ctx, events.ProjectMemberAdded, projectID, actor.UserID, member)
	}
	return updated, nil
}

// RemoveMember is idempotent: removing an absent user succeeds.
func (s *ProjectService) RemoveMember(ctx context.Context, actor model.Principal, projectID, userID string) (*model.Project, error) {
	p, err := s.find(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canManageProject(p, actor) {
		return nil, common.Forbidden("Only the project owner, a team lead or an admin can manage members")
	}
	_, existed := p.Member(userID)
	updated, err := s.projects.RemoveMember(ctx, projectID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, errProjectNotFound
		}
		return nil, fmt.Errorf("failed to remove member: %w", err)
	}
	if existed {
		s.bus.Emit(ctx, events.ProjectMemberGone, projectID, actor.UserID, map[string]string{"userId": userID})
	}
	return updated, nil
}

func (s *ProjectService) SetStatus(ctx context.Context, actor model.Principal, id string, status model.ProjectStatus) (*model.Project, error) {
	return s.Update(ctx, actor, id, UpdateProjectRequest{Status: &status})
}

// Tasks lists the tasks of a project the actor can see.
func (s *ProjectService) Tasks(ctx context.Context, actor model.Principal, id string, q model.TaskQuery) ([]model.Task, model.Pagination, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, model.Pagination{}, err
	}
	q.ProjectID = id
	q.InvolvedUser = ""
	if err := normalizeTaskQuery(&q); err != nil {
		return nil, model.Pagination{}, err
	}
	tasks, total, err := s.tasks.List(ctx, q)
	if err != nil {
		return nil, model.Pagination{}, fmt.Errorf("failed to list project tasks: %w", err)
	}
	return tasks, model.NewPagination(q.Page, q.Limit, total), nil
}
