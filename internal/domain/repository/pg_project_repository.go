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

const projectColumns = `p.id, p.name, p.slug, p.description, p.status, p.priority, p.owner_id, p.tags,
	p.progress, p.budget_allocated, p.budget_spent, p.start_date, p.end_date, p.created_at, p.updated_at`

type pgProjectRepository struct {
	db      *sql.DB
	typeMap *pgtype.Map
}

func NewPgProjectRepository(db *sql.DB) ProjectRepository {
	return &pgProjectRepository{db: db, typeMap: pgtype.NewMap()}
}

func (r *pgProjectRepository) Create(ctx context.Context, p *model.Project) error {
	query := `INSERT INTO projects (id, name, slug, description, status, priority, owner_id, tags, progress,
	            budget_allocated, budget_spent, start_date, end_date, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Slug, p.Description, p.Status, p.Priority, p.Owner,
		nonNilTags(p.Tags), p.Progress, p.Budget.Allocated, p.Budget.Spent, nullTime(p.StartDate), nullTime(p.EndDate),
		p.CreatedAt.Time, p.UpdatedAt.Time)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("project %s already exists: %w", p.ID, common.ErrConflict)
		}
		return fmt.Errorf("pgProjectRepository.Create: %w", err)
	}
	return nil
}

func (r *pgProjectRepository) Update(ctx context.Context, p *model.Project) error {
	query := `UPDATE projects SET
	            name = $1, slug = $2, description = $3, status = $4, priority = $5, owner_id = $6, tags = $7,
	            progress = $8, budget_allocated = $9, budget_spent = $10, start_date = $11, end_date = $12, updated_at = $13
	          WHERE id = $14`
	res, err := r.db.ExecContext(ctx, query, p.Name, p.Slug, p.Description, p.Status, p.Priority, p.Owner,
		nonNilTags(p.Tags), p.Progress, p.Budget.Allocated, p.Budget.Spent, nullTime(p.StartDate), nullTime(p.EndDate),
		p.UpdatedAt.Time, p.ID)
	if err != nil {
		return fmt.Errorf("pgProjectRepository.Update: %w", err)
	}
	return expectAffected(res, "pgProjectRepository.Update")
}

func (r *pgProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgProjectRepository.Delete: %w", err)
	}
	return expectAffected(res, "pgProjectRepository.Delete")
}

func (r *pgProjectRepository) FindByID(ctx context.Context, id string) (*model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects p WHERE p.id = $1`
	p, err := r.scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgProjectRepository.FindByID: %w", err)
	}
	if err := r.loadMembers(ctx, []*model.Project{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *pgProjectRepository) List(ctx context.Context, q model.ProjectQuery) ([]model.Project, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if q.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argID))
		args = append(args, q.Status)
		argID++
	}
	if q.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("p.priority = $%d", argID))
		args = append(args, q.Priority)
		argID++
	}
	if q.MemberID != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(p.owner_id = $%[1]d OR EXISTS (SELECT 1 FROM project_members pm WHERE pm.project_id = p.id AND pm.user_id = $%[1]d))", argID))
		args = append(args, q.MemberID)
		argID++
	}
	if q.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%[1]d OR p.description ILIKE $%[1]d)", argID))
		args = append(args, likePattern(q.Search))
		argID++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects p`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgProjectRepository.List count: %w", err)
	}

	query := `SELECT ` + projectColumns + ` FROM projects p` + where +
		fmt.Sprintf(" ORDER BY %s %s, p.seq ASC", projectOrderExpr(q.SortField), orderDirection(q.SortOrder))
	query, args = appendLimit(query, args, argID, q.Page, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgProjectRepository.List query: %w", err)
	}
	defer rows.Close()

	var ptrs []*model.Project
	for rows.Next() {
		p, err := r.scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgProjectRepository.List scan: %w", err)
		}
		ptrs = append(ptrs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgProjectRepository.List rows: %w", err)
	}
	if err := r.loadMembers(ctx, ptrs); err != nil {
		return nil, 0, err
	}

	projects := make([]model.Project, 0, len(ptrs))
	for _, p := range ptrs {
		projects = append(projects, *p)
	}
	return projects, total, nil
}

func projectOrderExpr(field string) string {
	switch field {
	case model.ProjectSortName:
		return `p.name COLLATE "C"`
	case model.ProjectSortUpdatedAt:
		return "p.updated_at"
	case model.ProjectSortPriority:
		return strings.ReplaceAll(priorityRank, "priority", "p.priority")
	case model.ProjectSortStatus:
		return `p.status COLLATE "C"`
	default:
		return "p.created_at"
	}
}

func (r *pgProjectRepository) AddMember(ctx context.Context, projectID string, m model.Member) (*model.Project, error) {
	if _, err := r.FindByID(ctx, projectID); err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (project_id, user_id) DO NOTHING`,
		projectID, m.UserID, m.Role, m.JoinedAt.Time)
	if err != nil {
		return nil, fmt.Errorf("pgProjectRepository.AddMember: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if _, err := r.db.ExecContext(ctx, `UPDATE projects SET updated_at = $1 WHERE id = $2`, m.JoinedAt.Time, projectID); err != nil {
			return nil, fmt.Errorf("pgProjectRepository.AddMember touch: %w", err)
		}
	}
	return r.FindByID(ctx, projectID)
}

func (r *pgProjectRepository) RemoveMember(ctx context.Context, projectID, userID string) (*model.Project, error) {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID); err != nil {
		return nil, fmt.Errorf("pgProjectRepository.RemoveMember: %w", err)
	}
	return r.FindByID(ctx, projectID)
}

func (r *pgProjectRepository) RemoveUserFromAll(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM project_members WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("pgProjectRepository.RemoveUserFromAll: %w", err)
	}
	return nil
}

func (r *pgProjectRepository) SetProgress(ctx context.Context, projectID string, progress int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE projects SET progress = $1 WHERE id = $2`, progress, projectID)
	if err != nil {
		return fmt.Errorf("pgProjectRepository.SetProgress: %w", err)
	}
	return expectAffected(res, "pgProjectRepository.SetProgress")
}

func (r *pgProjectRepository) scanProject(row rowScanner) (*model.Project, error) {
	p := &model.Project{}
	var tags []string
	var start, end sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Description, &p.Status, &p.Priority, &p.Owner,
		r.typeMap.SQLScanner(&tags), &p.Progress, &p.Budget.Allocated, &p.Budget.Spent, &start, &end,
		&p.CreatedAt.Time, &p.UpdatedAt.Time)
	if err != nil {
		return nil, err
	}
	p.Tags = nonNilTags(tags)
	p.Members = []model.Member{}
	p.StartDate = timestampFromNull(start)
	p.EndDate = timestampFromNull(end)
	p.CreatedAt = model.NewTimestamp(p.CreatedAt.Time)
	p.UpdatedAt = model.NewTimestamp(p.UpdatedAt.Time)
	return p, nil
}

// loadMembers fills Members for all given projects with one query.
func (r *pgProjectRepository) loadMembers(ctx context.Context, projects []*model.Project) error {
	if len(projects) == 0 {
		return nil
	}
	byID := make(map[string]*model.Project, len(projects))
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT project_id, user_id, role, joined_at FROM project_members
		 WHERE project_id = ANY($1) ORDER BY position`, ids)
	if err != nil {
		return fmt.Errorf("pgProjectRepository.loadMembers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var projectID string
		var m model.Member
		if err := rows.Scan(&projectID, &m.UserID, &m.Role, &m.JoinedAt.Time); err != nil {
			return fmt.Errorf("pgProjectRepository.loadMembers scan: %w", err)
		}
		m.JoinedAt = model.NewTimestamp(m.JoinedAt.Time)
		if p, ok := byID[projectID]; ok {
			p.Members = append(p.Members, m)
		}
	}
	return rows.Err()
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullTime(ts *model.Timestamp) sql.NullTime {
	if ts == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: ts.Time, Valid: true}
}

func timestampFromNull(nt sql.NullTime) *model.Timestamp {
	if !nt.Valid {
		return nil
	}
	return model.TimestampPtr(&nt.Time)
}
