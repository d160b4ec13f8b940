package repository

import (
	"cmp"
	"slices"
	"strings"

	"taskmaster/internal/domain/model"
)

// In-memory counterparts of the WHERE / ORDER BY clauses built by the
// Postgres repositories. Both sides must agree on ordering: ties keep
// insertion order in either direction.

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matchProject(p *model.Project, q model.ProjectQuery) bool {
	if q.Status != "" && p.Status != q.Status {
		return false
	}
	if q.Priority != "" && p.Priority != q.Priority {
		return false
	}
	if q.MemberID != "" && !p.Involves(q.MemberID) {
		return false
	}
	if q.Search != "" && !containsFold(p.Name, q.Search) && !containsFold(p.Description, q.Search) {
		return false
	}
	return true
}

func projectComparator(field string) func(a, b model.Project) int {
	switch field {
	case model.ProjectSortName:
		return func(a, b model.Project) int { return strings.Compare(a.Name, b.Name) }
	case model.ProjectSortUpdatedAt:
		return func(a, b model.Project) int { return a.UpdatedAt.Compare(b.UpdatedAt.Time) }
	case model.ProjectSortPriority:
		return func(a, b model.Project) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
	case model.ProjectSortStatus:
		return func(a, b model.Project) int { return strings.Compare(string(a.Status), string(b.Status)) }
	default:
		return func(a, b model.Project) int { return a.CreatedAt.Compare(b.CreatedAt.Time) }
	}
}

func matchTask(t *model.Task, q model.TaskQuery) bool {
	if q.ProjectID != "" && t.ProjectID != q.ProjectID {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Priority != "" && t.Priority != q.Priority {
		return false
	}
	if q.AssignedTo != "" && !t.IsAssignedTo(q.AssignedTo) {
		return false
	}
	if q.InvolvedUser != "" && t.Reporter != q.InvolvedUser && !t.IsAssignedTo(q.InvolvedUser) {
		return false
	}
	if q.Search != "" && !containsFold(t.Title, q.Search) && !containsFold(t.Description, q.Search) {
		return false
	}
	return true
}

func taskComparator(field string) func(a, b model.Task) int {
	switch field {
	case model.TaskSortTitle:
		return func(a, b model.Task) int { return strings.Compare(a.Title, b.Title) }
	case model.TaskSortUpdatedAt:
		return func(a, b model.Task) int { return a.UpdatedAt.Compare(b.UpdatedAt.Time) }
	case model.TaskSortPriority:
		return func(a, b model.Task) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
	case model.TaskSortStatus:
		return func(a, b model.Task) int { return strings.Compare(string(a.Status), string(b.Status)) }
	case model.TaskSortDueDate:
		// Tasks without a due date sort last in ascending order.
		return func(a, b model.Task) int {
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return 0
			case a.DueDate == nil:
				return 1
			case b.DueDate == nil:
				return -1
			}
			return a.DueDate.Compare(b.DueDate.Time)
		}
	default:
		return func(a, b model.Task) int { return a.CreatedAt.Compare(b.CreatedAt.Time) }
	}
}

// sortStable orders items in place. Descending order negates the comparator
// so equal keys stay in their original relative order.
func sortStable[T any](items []T, compare func(a, b T) int, order string) {
	if order == model.SortAsc {
		slices.SortStableFunc(items, compare)
		return
	}
	slices.SortStableFunc(items, func(a, b T) int { return -compare(a, b) })
}

// paginate applies page/limit to an already ordered result; limit 0 keeps all.
func paginate[T any](items []T, page, limit int) []T {
	if limit <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return items[start:end]
}
