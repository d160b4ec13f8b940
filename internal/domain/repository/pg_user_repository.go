package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"taskmaster/internal/common"
	"taskmaster/internal/domain/model"
)

const userColumns = `id, username, email, hashed_password, first_name, last_name, role,
	reset_token_hash, reset_token_expires, last_login, created_at, updated_at`

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) Create(ctx context.Context, u *model.User) error {
	query := `INSERT INTO users (id, username, email, hashed_password, first_name, last_name, role, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.ExecContext(ctx, query, u.ID, u.Username, u.Email, u.HashedPassword,
		u.FirstName, u.LastName, u.Role, u.CreatedAt.Time, u.UpdatedAt.Time)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %w", err)
	}
	return nil
}

func (r *pgUserRepository) Update(ctx context.Context, u *model.User) error {
	query := `UPDATE users SET
	            username = $1, email = $2, hashed_password = $3, first_name = $4, last_name = $5,
	            role = $6, reset_token_hash = $7, reset_token_expires = $8, last_login = $9, updated_at = $10
	          WHERE id = $11`

	var resetHash sql.NullString
	if u.ResetTokenHash != "" {
		resetHash = sql.NullString{String: u.ResetTokenHash, Valid: true}
	}
	var lastLogin sql.NullTime
	if u.LastLogin != nil {
		lastLogin = sql.NullTime{Time: u.LastLogin.Time, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, u.Username, u.Email, u.HashedPassword, u.FirstName, u.LastName,
		u.Role, resetHash, u.ResetTokenExpires, lastLogin, u.UpdatedAt.Time, u.ID)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user with given username or email already exists: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Update: %w", err)
	}
	return expectAffected(res, "pgUserRepository.Update")
}

func (r *pgUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgUserRepository.Delete: %w", err)
	}
	return expectAffected(res, "pgUserRepository.Delete")
}

func (r *pgUserRepository) findOne(ctx context.Context, op, where string, arg interface{}) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.%s: %w", op, err)
	}
	return u, nil
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "FindByID", "id = $1", id)
}

func (r *pgUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, "FindByEmail", "email = LOWER($1)", email)
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "FindByUsername", "LOWER(username) = LOWER($1)", username)
}

func (r *pgUserRepository) FindByResetToken(ctx context.Context, tokenHash string) (*model.User, error) {
	if tokenHash == "" {
		return nil, common.ErrNotFound
	}
	return r.findOne(ctx, "FindByResetToken", "reset_token_hash = $1", tokenHash)
}

func (r *pgUserRepository) List(ctx context.Context, q model.UserQuery) ([]model.User, int, error) {
	var conditions []string
	var args []interface{}
	argID := 1

	if q.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argID))
		args = append(args, q.Role)
		argID++
	}
	if q.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(username ILIKE $%[1]d OR email ILIKE $%[1]d OR first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d)", argID))
		args = append(args, likePattern(q.Search))
		argID++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List count: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + where + ` ORDER BY created_at DESC, id`
	query, args = appendLimit(query, args, argID, q.Page, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List query: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("pgUserRepository.List scan: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("pgUserRepository.List rows: %w", err)
	}
	return users, total, nil
}

func (r *pgUserRepository) CountByRole(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("pgUserRepository.CountByRole: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("pgUserRepository.CountByRole scan: %w", err)
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var resetHash sql.NullString
	var resetExpires, lastLogin sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword, &u.FirstName, &u.LastName, &u.Role,
		&resetHash, &resetExpires, &lastLogin, &u.CreatedAt.Time, &u.UpdatedAt.Time)
	if err != nil {
		return nil, err
	}
	u.ResetTokenHash = resetHash.String
	if resetExpires.Valid {
		t := resetExpires.Time
		u.ResetTokenExpires = &t
	}
	if lastLogin.Valid {
		u.LastLogin = model.TimestampPtr(&lastLogin.Time)
	}
	u.CreatedAt = model.NewTimestamp(u.CreatedAt.Time)
	u.UpdatedAt = model.NewTimestamp(u.UpdatedAt.Time)
	return u, nil
}
