package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const userColumns = `id, email, name, photo_url, role, status, created_at, updated_at`

// UserRepository provides database access for user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by case-insensitive email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.TrimSpace(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// List returns users based on filters with total count.
func (r *UserRepository) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	baseQuery := `FROM users WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(email) LIKE $%d OR LOWER(name) LIKE $%d)", len(args), len(args)))
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", userColumns, baseQuery, pageSize, offset)

	var users []models.User
	if err := r.db.SelectContext(ctx, &users, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	return users, total, nil
}

// Upsert inserts the user or refreshes the profile fields of the existing account with the same
// email. Role and status of an existing account are never overwritten here.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.Email = models.NormalizeEmail(user.Email)
	if user.Role == "" {
		user.Role = models.RoleStudent
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}
	user.CreatedAt, user.UpdatedAt = now, now

	query := `INSERT INTO users (` + userColumns + `)
	VALUES (:id, :email, :name, :photo_url, :role, :status, :created_at, :updated_at)
	ON CONFLICT ((LOWER(email))) DO UPDATE SET name = EXCLUDED.name, photo_url = EXCLUDED.photo_url, updated_at = EXCLUDED.updated_at
	RETURNING ` + userColumns
	rows, err := r.db.NamedQueryContext(ctx, query, user)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	defer rows.Close()

	var stored models.User
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("upsert user: %w", err)
		}
		return nil, fmt.Errorf("upsert user: no row returned")
	}
	if err := rows.StructScan(&stored); err != nil {
		return nil, fmt.Errorf("scan upserted user: %w", err)
	}
	return &stored, nil
}

// UpdateRole sets a user's role.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	return r.updateColumn(ctx, "role", id, role)
}

// UpdateStatus blocks or unblocks a user.
func (r *UserRepository) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	return r.updateColumn(ctx, "status", id, status)
}

func (r *UserRepository) updateColumn(ctx context.Context, column, id string, value interface{}) error {
	query := fmt.Sprintf(`UPDATE users SET %s = $2, updated_at = $3 WHERE id = $1`, column)
	res, err := r.db.ExecContext(ctx, query, id, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user %s rows: %w", column, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
