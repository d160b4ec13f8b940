package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"

	"github.com/jackc/pgx/v5/pgtype"
)

const taskColumns = `t.id, t.title, t.description, t.project_id, t.status, t.priority, t.type, t.assigned_to,
	t.reporter_id, t.estimated_hours, t.actual_hours, t.due_date, t.tags, t.completed_at, t.created_at, t.updated_at`

type pgTaskRepository struct {
	db      *sql.DB
	typeMap *pgtype.Map
}

func NewPgTaskRepository(db *sql.DB) TaskRepository {
	return &pgTaskRepository{db: db, typeMap: pgtype.NewMap()}
}

func (r *pgTaskRepository) Create(ctx context.Context, t *model.Task) error {
	query := `INSERT INTO tasks (id, title, description, project_id, status, priority, type, assigned_to, reporter_id,
	            estimated_hours, actual_hours, due_date, tags, completed_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.Title, t.Description, t.ProjectID, t.Status, t.Priority, t.Type,
		nullString(t.AssignedTo), t.Reporter, t.EstimatedHours, t.ActualHours, nullTime(t.DueDate), nonNilTags(t.Tags),
		nullTime(t.CompletedAt), t.CreatedAt.Time, t.UpdatedAt.Time)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("task %s already exists: %w", t.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgTaskRepository.Create: %w", err)
	}
	return nil
}

func (r *pgTaskRepository) Update(ctx context.Context, t *model.Task) error {
	query := `UPDATE tasks SET
	            title = $1, description = $2, project_id = $3, status = $4, priority = $5, type = $6, assigned_to = $7,
	            estimated_hours = $8, actual_hours = $9, due_date = $10, tags = $11, completed_at = $12, updated_at = $13
	          WHERE id = $14`
	res, err := r.db.ExecContext(ctx, query, t.Title, t.Description, t.ProjectID, t.Status, t.Priority, t.Type,
		nullString(t.AssignedTo), t.EstimatedHours, t.ActualHours, nullTime(t.DueDate), nonNilTags(t.Tags),
		nullTime(t.CompletedAt), t.UpdatedAt.Time, t.ID)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.Update: %w", err)
	}
	return expectAffected(res, "pgTaskRepository.Update")
}

func (r *pgTaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.Delete: %w", err)
	}
	return expectAffected(res, "pgTaskRepository.Delete")
}

func (r *pgTaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`
	t, err := r.scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTaskRepository.FindByID: %w", err)
	}
	if err := r.loadChildren(ctx, []*model.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *pgTaskRepository) List(ctx context.Context, q model.TaskQuery) ([]model.Task, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	add := func(cond string, arg interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argID))
		args = append(args, arg)
		argID++
	}
	if q.ProjectID != "" {
		add("t.project_id = $%d", q.ProjectID)
	}
	if q.Status != "" {
		add("t.status = $%d", q.Status)
	}
	if q.Priority != "" {
		add("t.priority = $%d", q.Priority)
	}
	if q.AssignedTo != "" {
		add("t.assigned_to = $%d", q.AssignedTo)
	}
	if q.InvolvedUser != "" {
		add("(t.reporter_id = $%[1]d OR t.assigned_to = $%[1]d)", q.InvolvedUser)
	}
	if q.Search != "" {
		add("(t.title ILIKE $%[1]d OR t.description ILIKE $%[1]d)", likePattern(q.Search))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks t`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgTaskRepository.List count: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t` + where +
		fmt.Sprintf(" ORDER BY %s %s, t.seq ASC", taskOrderExpr(q.SortField), orderDirection(q.SortOrder))
	query, args = appendLimit(query, args, argID, q.Page, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgTaskRepository.List query: %w", err)
	}
	defer rows.Close()

	var ptrs []*model.Task
	for rows.Next() {
		t, err := r.scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgTaskRepository.List scan: %w", err)
		}
		ptrs = append(ptrs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgTaskRepository.List rows: %w", err)
	}
	if err := r.loadChildren(ctx, ptrs); err != nil {
		return nil, 0, err
	}

	tasks := make([]model.Task, 0, len(ptrs))
	for _, t := range ptrs {
		tasks = append(tasks, *t)
	}
	return tasks, total, nil
}

func taskOrderExpr(field string) string {
	switch field {
	case model.TaskSortTitle:
		return `t.title COLLATE "C"`
	case model.TaskSortUpdatedAt:
		return "t.updated_at"
	case model.TaskSortDueDate:
		return "t.due_date"
	case model.TaskSortPriority:
		return strings.ReplaceAll(priorityRank, "priority", "t.priority")
	case model.TaskSortStatus:
		return `t.status COLLATE "C"`
	default:
		return "t.created_at"
	}
}

func (r *pgTaskRepository) AddComment(ctx context.Context, taskID string, c model.Comment) (*model.Task, error) {
	if _, err := r.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pgTaskRepository.AddComment begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO task_comments (id, task_id, author_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, taskID, c.Author, c.Text, c.CreatedAt.Time); err != nil {
		return nil, fmt.Errorf("pgTaskRepository.AddComment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = $1 WHERE id = $2`, c.CreatedAt.Time, taskID); err != nil {
		return nil, fmt.Errorf("pgTaskRepository.AddComment touch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("pgTaskRepository.AddComment commit: %w", err)
	}
	return r.FindByID(ctx, taskID)
}

func (r *pgTaskRepository) AddSubtask(ctx context.Context, taskID string, s model.Subtask) (*model.Task, error) {
	if _, err := r.FindByID(ctx, taskID); err != nil {
		return nil, err
	}
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO task_subtasks (id, task_id, title, completed, created_at) VALUES ($1, $2, $3, $4, $5)`,
		s.ID, taskID, s.Title, s.Completed, s.CreatedAt.Time); err != nil {
		return nil, fmt.Errorf("pgTaskRepository.AddSubtask: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE tasks SET updated_at = $1 WHERE id = $2`, s.CreatedAt.Time, taskID); err != nil {
		return nil, fmt.Errorf("pgTaskRepository.AddSubtask touch: %w", err)
	}
	return r.FindByID(ctx, taskID)
}

func (r *pgTaskRepository) ToggleSubtask(ctx context.Context, taskID, subtaskID string) (*model.Task, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE task_subtasks SET completed = NOT completed WHERE id = $1 AND task_id = $2`, subtaskID, taskID)
	if err != nil {
		return nil, fmt.Errorf("pgTaskRepository.ToggleSubtask: %w", err)
	}
	if err := expectAffected(res, "pgTaskRepository.ToggleSubtask"); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, taskID)
}

func (r *pgTaskRepository) DeleteByProject(ctx context.Context, projectID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("pgTaskRepository.DeleteByProject: %w", err)
	}
	return nil
}

func (r *pgTaskRepository) UnassignUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE tasks SET assigned_to = NULL WHERE assigned_to = $1`, userID); err != nil {
		return fmt.Errorf("pgTaskRepository.UnassignUser: %w", err)
	}
	return nil
}

func (r *pgTaskRepository) scanTask(row rowScanner) (*model.Task, error) {
	t := &model.Task{}
	var tags []string
	var assigned sql.NullString
	var due, completed sql.NullTime
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.ProjectID, &t.Status, &t.Priority, &t.Type, &assigned,
		&t.Reporter, &t.EstimatedHours, &t.ActualHours, &due, r.typeMap.SQLScanner(&tags), &completed,
		&t.CreatedAt.Time, &t.UpdatedAt.Time)
	if err != nil {
		return nil, err
	}
	if assigned.Valid {
		a := assigned.String
		t.AssignedTo = &a
	}
	t.Tags = nonNilTags(tags)
	t.Comments = []model.Comment{}
	t.Subtasks = []model.Subtask{}
	t.DueDate = timestampFromNull(due)
	t.CompletedAt = timestampFromNull(completed)
	t.CreatedAt = model.NewTimestamp(t.CreatedAt.Time)
	t.UpdatedAt = model.NewTimestamp(t.UpdatedAt.Time)
	return t, nil
}

// loadChildren fills comments and subtasks for the given tasks.
func (r *pgTaskRepository) loadChildren(ctx context.Context, tasks []*model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	byID := make(map[string]*model.Task, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, id, author_id, text, created_at FROM task_comments
		 WHERE task_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.loadChildren comments: %w", err)
	}
	for rows.Next() {
		var taskID string
		var c model.Comment
		if err := rows.Scan(&taskID, &c.ID, &c.Author, &c.Text, &c.CreatedAt.Time); err != nil {
			rows.Close()
			return fmt.Errorf("pgTaskRepository.loadChildren comment scan: %w", err)
		}
		c.CreatedAt = model.NewTimestamp(c.CreatedAt.Time)
		byID[taskID].Comments = append(byID[taskID].Comments, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("pgTaskRepository.loadChildren comments: %w", err)
	}

	rows, err = r.db.QueryContext(ctx,
		`SELECT task_id, id, title, completed, created_at FROM task_subtasks
		 WHERE task_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return fmt.Errorf("pgTaskRepository.loadChildren subtasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var taskID string
		var s model.Subtask
		if err := rows.Scan(&taskID, &s.ID, &s.Title, &s.Completed, &s.CreatedAt.Time); err != nil {
			return fmt.Errorf("pgTaskRepository.loadChildren subtask scan: %w", err)
		}
		s.CreatedAt = model.NewTimestamp(s.CreatedAt.Time)
		byID[taskID].Subtasks = append(byID[taskID].Subtasks, s)
	}
	return rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
