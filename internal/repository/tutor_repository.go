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

const tutorColumns = `id, email, name, subjects, qualifications, experience, location, status, rating, review_count, created_at, updated_at`

// TutorRepository persists tutor profiles.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs the repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// Create inserts a tutor profile. Derived rating columns always start at zero.
func (r *TutorRepository) Create(ctx context.Context, tutor *models.Tutor) error {
	if tutor.ID == "" {
		tutor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tutor.Email = models.NormalizeEmail(tutor.Email)
	tutor.Status = models.TutorStatusPending
	tutor.Rating, tutor.ReviewCount = 0, 0
	tutor.CreatedAt, tutor.UpdatedAt = now, now

	const query = `INSERT INTO tutors (id, email, name, subjects, qualifications, experience, location, status, rating, review_count, created_at, updated_at)
	VALUES (:id, :email, :name, :subjects, :qualifications, :experience, :location, :status, :rating, :review_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tutor); err != nil {
		return wrapWrite("create tutor", err)
	}
	return nil
}

// FindByID fetches a tutor by identifier.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, `SELECT `+tutorColumns+` FROM tutors WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find tutor: %w", err)
	}
	return &tutor, nil
}

// FindByEmail fetches a tutor by case-insensitive email.
func (r *TutorRepository) FindByEmail(ctx context.Context, email string) (*models.Tutor, error) {
	var tutor models.Tutor
	if err := r.db.GetContext(ctx, &tutor, `SELECT `+tutorColumns+` FROM tutors WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find tutor by email: %w", err)
	}
	return &tutor, nil
}

// List returns tutors matching the filter, best rated first.
func (r *TutorRepository) List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error) {
	baseQuery := `FROM tutors WHERE 1=1`
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Subject != "" {
		args = append(args, strings.ToLower(filter.Subject))
		baseQuery += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM unnest(subjects) s WHERE LOWER(s) = $%d)", len(args))
	}
	if filter.Location != "" {
		args = append(args, "%"+strings.ToLower(filter.Location)+"%")
		baseQuery += fmt.Sprintf(" AND LOWER(location) LIKE $%d", len(args))
	}

	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY rating DESC, review_count DESC, created_at DESC LIMIT %d OFFSET %d", tutorColumns, baseQuery, pageSize, offset)

	var tutors []models.Tutor
	if err := r.db.SelectContext(ctx, &tutors, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list tutors: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tutors: %w", err)
	}
	return tutors, total, nil
}

// UpdateStatus records the admin review of a tutor profile.
func (r *TutorRepository) UpdateStatus(ctx context.Context, id string, status models.TutorStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tutors SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update tutor status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tutor status rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
