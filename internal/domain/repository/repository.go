package repository

import (
	"context"

	"taskmaster/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByResetToken(ctx context.Context, tokenHash string) (*model.User, error)
	List(ctx context.Context, q model.UserQuery) ([]model.User, int, error)
	CountByRole(ctx context.Context) (map[string]int, error)
}

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	// Update persists scalar fields. Members are changed through AddMember
	// and RemoveMember only.
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Project, error)
	List(ctx context.Context, q model.ProjectQuery) ([]model.Project, int, error)
	AddMember(ctx context.Context, projectID string, member model.Member) (*model.Project, error)
	RemoveMember(ctx context.Context, projectID, userID string) (*model.Project, error)
	RemoveUserFromAll(ctx context.Context, userID string) error
	SetProgress(ctx context.Context, projectID string, progress int) error
}

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	// Update persists scalar fields; comments and subtasks have their own calls.
	Update(ctx context.Context, task *model.Task) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.Task, error)
	List(ctx context.Context, q model.TaskQuery) ([]model.Task, int, error)
	AddComment(ctx context.Context, taskID string, comment model.Comment) (*model.Task, error)
	AddSubtask(ctx context.Context, taskID string, subtask model.Subtask) (*model.Task, error)
	ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error)
	DeleteByProject(ctx context.Context, projectID string) error
	UnassignUser(ctx context.Context, userID string) error
}

// SessionStore tracks live bearer-token sessions.
type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	// Get returns common.ErrNotFound for unknown, revoked or expired sessions.
	Get(ctx context.Context, id string) (*model.Session, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Store groups the repositories one storage driver provides.
type Store struct {
	Users    UserRepository
	Projects ProjectRepository
	Tasks    TaskRepository
}
