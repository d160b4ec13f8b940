package model

import "slices"

type ProjectStatus string
type ProjectPriority string
type MemberRole string

const (
	ProjectPlanning   ProjectStatus = "planning"
	ProjectActive     ProjectStatus = "active"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectTesting    ProjectStatus = "testing"
	ProjectCompleted  ProjectStatus = "completed"
	ProjectOnHold     ProjectStatus = "on-hold"

	ProjectPriorityLow      ProjectPriority = "low"
	ProjectPriorityMedium   ProjectPriority = "medium"
	ProjectPriorityHigh     ProjectPriority = "high"
	ProjectPriorityCritical ProjectPriority = "critical"

	MemberLead      MemberRole = "lead"
	MemberDeveloper MemberRole = "developer"
	MemberTester    MemberRole = "tester"
	MemberDesigner  MemberRole = "designer"
)

var (
	ProjectStatuses   = []ProjectStatus{ProjectPlanning, ProjectActive, ProjectInProgress, ProjectTesting, ProjectCompleted, ProjectOnHold}
	ProjectPriorities = []ProjectPriority{ProjectPriorityLow, ProjectPriorityMedium, ProjectPriorityHigh, ProjectPriorityCritical}
	MemberRoles       = []MemberRole{MemberLead, MemberDeveloper, MemberTester, MemberDesigner}
)

func (s ProjectStatus) Valid() bool   { return slices.Contains(ProjectStatuses, s) }
func (p ProjectPriority) Valid() bool { return slices.Contains(ProjectPriorities, p) }
func (r MemberRole) Valid() bool      { return slices.Contains(MemberRoles, r) }
func (p ProjectPriority) Rank() int   { return slices.Index(ProjectPriorities, p) }

type Member struct {
	UserID   string     `json:"userId"`
	Role     MemberRole `json:"role"`
	JoinedAt Timestamp  `json:"joinedAt"`
}

type Budget struct {
	Allocated float64 `json:"allocated"`
	Spent     float64 `json:"spent"`
}

type Project struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Status      ProjectStatus   `json:"status"`
	Priority    ProjectPriority `json:"priority"`
	Owner       string          `json:"owner"`
	Members     []Member        `json:"members"`
	Tags        []string        `json:"tags"`
	Progress    int             `json:"progress"`
	Budget      Budget          `json:"budget"`
	StartDate   *Timestamp      `json:"startDate,omitempty"`
	EndDate     *Timestamp      `json:"endDate,omitempty"`
	CreatedAt   Timestamp       `json:"createdAt"`
	UpdatedAt   Timestamp       `json:"updatedAt"`
}

func (p *Project) Member(userID string) (Member, bool) {
	for _, m := range p.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

// Involves reports whether userID owns the project or is on its team.
func (p *Project) Involves(userID string) bool {
	if p.Owner == userID {
		return true
	}
	_, ok := p.Member(userID)
	return ok
}

func (p *Project) Clone() *Project {
	c := *p
	c.Members = slices.Clone(p.Members)
	if c.Members == nil {
		c.Members = []Member{}
	}
	c.Tags = slices.Clone(p.Tags)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if p.StartDate != nil {
		d := *p.StartDate
		c.StartDate = &d
	}
	if p.EndDate != nil {
		d := *p.EndDate
		c.EndDate = &d
	}
	return &c
}

// Project list sort fields.
const (
	ProjectSortName      = "name"
	ProjectSortCreatedAt = "createdAt"
	ProjectSortUpdatedAt = "updatedAt"
	ProjectSortPriority  = "priority"
	ProjectSortStatus    = "status"
)

type ProjectQuery struct {
	Status   ProjectStatus
	Priority ProjectPriority
	Search   string
	// MemberID restricts results to projects owned by or shared with the user.
	MemberID  string
	SortField string
	SortOrder string
	Page      int
	Limit     int
}
