package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
	"taskmaster/internal/domain/repository"
)

// Time windows accepted by the statistics and performance reports.
const (
	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeYear  = "year"

	SearchAll      = "all"
	SearchTasks    = "tasks"
	SearchProjects = "projects"
	SearchUsers    = "users"
)

var rangeWindows = map[string]time.Duration{
	RangeDay:   24 * time.Hour,
	RangeWeek:  7 * 24 * time.Hour,
	RangeMonth: 30 * 24 * time.Hour,
	RangeYear:  365 * 24 * time.Hour,
}

// InsightService computes read-only reports over the stores.
type InsightService struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	tasks    repository.TaskRepository
	now      func() time.Time
}

func NewInsightService(store *repository.Store) *InsightService {
	return &InsightService{
		users:    store.Users,
		projects: store.Projects,
		tasks:    store.Tasks,
		now:      time.Now,
	}
}

type TaskStatistics struct {
	Total          int            `json:"total"`
	Completed      int            `json:"completed"`
	Overdue        int            `json:"overdue"`
	CompletionRate float64        `json:"completionRate"`
	ByStatus       map[string]int `json:"byStatus"`
	ByPriority     map[string]int `json:"byPriority"`
	ByType         map[string]int `json:"byType"`
	EstimatedHours float64        `json:"estimatedHours"`
	ActualHours    float64        `json:"actualHours"`
}

type ProjectStatistics struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"byStatus"`
	ByPriority      map[string]int `json:"byPriority"`
	AverageProgress float64        `json:"averageProgress"`
}

type UserWorkload struct {
	UserID         string  `json:"userId"`
	Username       string  `json:"username"`
	Assigned       int     `json:"assigned"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"inProgress"`
	EstimatedHours float64 `json:"estimatedHours"`
}

type StatsFilters struct {
	ProjectID string `json:"projectId,omitempty"`
	TimeRange string `json:"timeRange,omitempty"`
}

type Stats struct {
	TaskStatistics     TaskStatistics    `json:"taskStatistics"`
	ProjectStatistics  ProjectStatistics `json:"projectStatistics"`
	WorkloadStatistics []UserWorkload    `json:"workloadStatistics"`
	Filters            StatsFilters      `json:"filters"`
}

type SearchResults struct {
	Tasks    []model.Task    `json:"tasks,omitempty"`
	Projects []model.Project `json:"projects,omitempty"`
	Users    []model.User    `json:"users,omitempty"`
}

type SearchResponse struct {
	Query   string        `json:"query"`
	Type    string        `json:"type"`
	Results SearchResults `json:"results"`
}

type TrendPoint struct {
	Date      string `json:"date"`
	Completed int    `json:"completed"`
}

type Productivity struct {
	UserID             string  `json:"userId"`
	Username           string  `json:"username"`
	Total              int     `json:"total"`
	Completed          int     `json:"completed"`
	CompletionRate     float64 `json:"completionRate"`
	AvgCompletionHours float64 `json:"avgCompletionHours"`
}

type Performance struct {
	TimeRange        string         `json:"timeRange"`
	CompletionTrends []TrendPoint   `json:"completionTrends"`
	TeamProductivity []Productivity `json:"teamProductivity"`
}

func (s *InsightService) since(timeRange string) (time.Time, error) {
	if timeRange == "" {
		return time.Time{}, nil
	}
	window, ok := rangeWindows[timeRange]
	if !ok {
		return time.Time{}, common.Validation("Validation failed", "timeRange must be one of: day, week, month, year")
	}
	return s.now().Add(-window), nil
}

// scopedTasks returns the tasks the actor may see, optionally narrowed to a
// project and to tasks created after since.
func (s *InsightService) scopedTasks(ctx context.Context, actor model.Principal, projectID string, since time.Time) ([]model.Task, error) {
	q := model.TaskQuery{ProjectID: projectID, SortField: model.TaskSortCreatedAt, SortOrder: model.SortAsc}
	if !actor.IsAdmin() {
		q.InvolvedUser = actor.UserID
	}
	tasks, _, err := s.tasks.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	if since.IsZero() {
		return tasks, nil
	}
	return slices.DeleteFunc(tasks, func(t model.Task) bool { return t.CreatedAt.Before(since) }), nil
}

func (s *InsightService) scopedProjects(ctx context.Context, actor model.Principal) ([]model.Project, error) {
	q := model.ProjectQuery{SortField: model.ProjectSortCreatedAt, SortOrder: model.SortAsc}
	if !actor.IsAdmin() {
		q.MemberID = actor.UserID
	}
	projects, _, err := s.projects.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

func (s *InsightService) Stats(ctx context.Context, actor model.Principal, projectID, timeRange string) (*Stats, error) {
	since, err := s.since(timeRange)
	if err != nil {
		return nil, err
	}
	tasks, err := s.scopedTasks(ctx, actor, projectID, since)
	if err != nil {
		return nil, err
	}
	projects, err := s.scopedProjects(ctx, actor)
	if err != nil {
		return nil, err
	}
	if projectID != "" {
		projects = slices.DeleteFunc(projects, func(p model.Project) bool { return p.ID != projectID })
	}

	workload, err := s.workload(ctx, tasks)
	if err != nil {
		return nil, err
	}
	return &Stats{
		TaskStatistics:     s.taskStatistics(tasks),
		ProjectStatistics:  projectStatistics(projects),
		WorkloadStatistics: workload,
		Filters:            StatsFilters{ProjectID: projectID, TimeRange: timeRange},
	}, nil
}

func (s *InsightService) taskStatistics(tasks []model.Task) TaskStatistics {
	now := s.now()
	stats := TaskStatistics{
		Total:      len(tasks),
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
		ByType:     make(map[string]int),
	}
	for _, t := range tasks {
		stats.ByStatus[string(t.Status)]++
		stats.ByPriority[string(t.Priority)]++
		stats.ByType[string(t.Type)]++
		stats.EstimatedHours += t.EstimatedHours
		stats.ActualHours += t.ActualHours
		if t.Status == model.TaskCompleted {
			stats.Completed++
		} else if t.DueDate != nil && t.DueDate.Before(now) {
			stats.Overdue++
		}
	}
	stats.CompletionRate = percent(stats.Completed, stats.Total)
	return stats
}

func projectStatistics(projects []model.Project) ProjectStatistics {
	stats := ProjectStatistics{
		Total:      len(projects),
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
	}
	progress := 0
	for _, p := range projects {
		stats.ByStatus[string(p.Status)]++
		stats.ByPriority[string(p.Priority)]++
		progress += p.Progress
	}
	if len(projects) > 0 {
		stats.AverageProgress = round2(float64(progress) / float64(len(projects)))
	}
	return stats
}

// workload groups assigned tasks per assignee, busiest first.
func (s *InsightService) workload(ctx context.Context, tasks []model.Task) ([]UserWorkload, error) {
	byUser := make(map[string]*UserWorkload)
	order := []string{}
	for _, t := range tasks {
		if t.AssignedTo == nil {
			continue
		}
		w, ok := byUser[*t.AssignedTo]
		if !ok {
			w = &UserWorkload{UserID: *t.AssignedTo}
			byUser[*t.AssignedTo] = w
			order = append(order, *t.AssignedTo)
		}
		w.Assigned++
		w.EstimatedHours += t.EstimatedHours
		switch t.Status {
		case model.TaskCompleted:
			w.Completed++
		case model.TaskInProgress:
			w.InProgress++
		}
	}

	out := make([]UserWorkload, 0, len(order))
	for _, id := range order {
		w := byUser[id]
		name, err := s.username(ctx, id)
		if err != nil {
			return nil, err
		}
		w.Username = name
		out = append(out, *w)
	}
	slices.SortStableFunc(out, func(a, b UserWorkload) int { return cmp.Compare(b.Assigned, a.Assigned) })
	return out, nil
}

func (s *InsightService) username(ctx context.Context, id string) (string, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	return u.Username, nil
}

// Search matches q against tasks, projects and users visible to the actor,
// returning at most a handful of each.
func (s *InsightService) Search(ctx context.Context, actor model.Principal, q, kind string) (*SearchResponse, error) {
	q = strings.TrimSpace(q)
	if kind == "" {
		kind = SearchAll
	}
	var v validator
	v.check(q != "", "q is required")
	v.check(slices.Contains([]string{SearchAll, SearchTasks, SearchProjects, SearchUsers}, kind),
		"type must be one of: all, tasks, projects, users")
	if len(v.details) > 0 {
		return nil, common.Validation("Validation failed", v.details...)
	}

	resp := &SearchResponse{Query: q, Type: kind}
	if kind == SearchAll || kind == SearchTasks {
		tq := model.TaskQuery{Search: q, SortField: model.TaskSortUpdatedAt, SortOrder: model.SortDesc, Page: 1, Limit: insightSearchLimit}
		if !actor.IsAdmin() {
			tq.InvolvedUser = actor.UserID
		}
		tasks, _, err := s.tasks.List(ctx, tq)
		if err != nil {
			return nil, fmt.Errorf("failed to search tasks: %w", err)
		}
		resp.Results.Tasks = tasks
	}
	if kind == SearchAll || kind == SearchProjects {
		pq := model.ProjectQuery{Search: q, SortField: model.ProjectSortUpdatedAt, SortOrder: model.SortDesc, Page: 1, Limit: insightSearchLimit}
		if !actor.IsAdmin() {
			pq.MemberID = actor.UserID
		}
		projects, _, err := s.projects.List(ctx, pq)
		if err != nil {
			return nil, fmt.Errorf("failed to search projects: %w", err)
		}
		resp.Results.Projects = projects
	}
	if kind == SearchAll || kind == SearchUsers {
		users, _, err := s.users.List(ctx, model.UserQuery{Search: q, Page: 1, Limit: insightSearchLimit})
		if err != nil {
			return nil, fmt.Errorf("failed to search users: %w", err)
		}
		resp.Results.Users = users
	}
	return resp, nil
}

// Performance reports daily completions and per-assignee throughput for
// tasks created within timeRange (default month).
func (s *InsightService) Performance(ctx context.Context, actor model.Principal, timeRange string) (*Performance, error) {
	if timeRange == "" {
		timeRange = RangeMonth
	}
	since, err := s.since(timeRange)
	if err != nil {
		return nil, err
	}
	tasks, err := s.scopedTasks(ctx, actor, "", time.Time{})
	if err != nil {
		return nil, err
	}

	perDay := make(map[string]int)
	type tally struct {
		total, completed int
		hours            float64
	}
	byUser := make(map[string]*tally)
	var users []string
	for _, t := range tasks {
		if t.CompletedAt != nil && !t.CompletedAt.Before(since) {
			perDay[t.CompletedAt.UTC().Format(time.DateOnly)]++
		}
		if t.AssignedTo == nil || t.CreatedAt.Before(since) {
			continue
		}
		u, ok := byUser[*t.AssignedTo]
		if !ok {
			u = &tally{}
			byUser[*t.AssignedTo] = u
			users = append(users, *t.AssignedTo)
		}
		u.total++
		if t.CompletedAt != nil {
			u.completed++
			u.hours += t.CompletedAt.Sub(t.CreatedAt.Time).Hours()
		}
	}

	perf := &Performance{
		TimeRange:        timeRange,
		CompletionTrends: make([]TrendPoint, 0, len(perDay)),
		TeamProductivity: make([]Productivity, 0, len(users)),
	}
	for day, n := range perDay {
		perf.CompletionTrends = append(perf.CompletionTrends, TrendPoint{Date: day, Completed: n})
	}
	slices.SortFunc(perf.CompletionTrends, func(a, b TrendPoint) int { return strings.Compare(a.Date, b.Date) })

	for _, id := range users {
		u := byUser[id]
		name, err := s.username(ctx, id)
		if err != nil {
			return nil, err
		}
		p := Productivity{
			UserID:         id,
			Username:       name,
			Total:          u.total,
			Completed:      u.completed,
			CompletionRate: percent(u.completed, u.total),
		}
		if u.completed > 0 {
			p.AvgCompletionHours = round2(u.hours / float64(u.completed))
		}
		perf.TeamProductivity = append(perf.TeamProductivity, p)
	}
	slices.SortStableFunc(perf.TeamProductivity, func(a, b Productivity) int { return cmp.Compare(b.Completed, a.Completed) })
	return perf, nil
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
