package model

import "slices"

type TaskStatus string
type TaskPriority string
type TaskType string

const (
	TaskPending    TaskStatus = "pending"
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskReview     TaskStatus = "review"
	TaskTesting    TaskStatus = "testing"
	TaskCompleted  TaskStatus = "completed"
	TaskBlocked    TaskStatus = "blocked"

	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"

	TaskFeature       TaskType = "feature"
	TaskBug           TaskType = "bug"
	TaskImprovement   TaskType = "improvement"
	TaskDocumentation TaskType = "documentation"
	TaskTestingType   TaskType = "testing"
)

var (
	TaskStatuses   = []TaskStatus{TaskPending, TaskTodo, TaskInProgress, TaskReview, TaskTesting, TaskCompleted, TaskBlocked}
	TaskPriorities = []TaskPriority{TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent}
	TaskTypes      = []TaskType{TaskFeature, TaskBug, TaskImprovement, TaskDocumentation, TaskTestingType}
)

func (s TaskStatus) Valid() bool   { return slices.Contains(TaskStatuses, s) }
func (p TaskPriority) Valid() bool { return slices.Contains(TaskPriorities, p) }
func (t TaskType) Valid() bool     { return slices.Contains(TaskTypes, t) }
func (p TaskPriority) Rank() int   { return slices.Index(TaskPriorities, p) }

type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt Timestamp `json:"createdAt"`
}

type Subtask struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt Timestamp `json:"createdAt"`
}

type Task struct {
	ID             string       `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	ProjectID      string       `json:"projectId"`
	Status         TaskStatus   `json:"status"`
	Priority       TaskPriority `json:"priority"`
	Type           TaskType     `json:"type"`
	AssignedTo     *string      `json:"assignedTo"`
	Reporter       string       `json:"reporter"`
	EstimatedHours float64      `json:"estimatedHours"`
	ActualHours    float64      `json:"actualHours"`
	DueDate        *Timestamp   `json:"dueDate,omitempty"`
	Tags           []string     `json:"tags"`
	Comments       []Comment    `json:"comments"`
	Subtasks       []Subtask    `json:"subtasks"`
	CompletedAt    *Timestamp   `json:"completedAt,omitempty"`
	CreatedAt      Timestamp    `json:"createdAt"`
	UpdatedAt      Timestamp    `json:"updatedAt"`
}

func (t *Task) IsAssignedTo(userID string) bool {
	return t.AssignedTo != nil && *t.AssignedTo == userID
}

func (t *Task) Clone() *Task {
	c := *t
	if t.AssignedTo != nil {
		a := *t.AssignedTo
		c.AssignedTo = &a
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	c.Tags = nonNil(slices.Clone(t.Tags))
	c.Comments = nonNil(slices.Clone(t.Comments))
	c.Subtasks = nonNil(slices.Clone(t.Subtasks))
	return &c
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Task list sort fields.
const (
	TaskSortTitle     = "title"
	TaskSortCreatedAt = "createdAt"
	TaskSortUpdatedAt = "updatedAt"
	TaskSortDueDate   = "dueDate"
	TaskSortPriority  = "priority"
	TaskSortStatus    = "status"
)

type TaskQuery struct {
	ProjectID  string
	Status     TaskStatus
	Priority   TaskPriority
	AssignedTo string
	// InvolvedUser keeps tasks the user reports or is assigned to.
	InvolvedUser string
	Search       string
	SortField    string
	SortOrder    string
	Page         int
	Limit        int
}
