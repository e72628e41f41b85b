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

const tuitionColumns = `id, student_email, subject, class_level, location, salary, schedule, description, status, applied_tutors, created_at, updated_at`

// TuitionRepository persists tuition requests.
type TuitionRepository struct {
	db *sqlx.DB
}

// NewTuitionRepository constructs the repository.
func NewTuitionRepository(db *sqlx.DB) *TuitionRepository {
	return &TuitionRepository{db: db}
}

// Create inserts a new pending tuition.
func (r *TuitionRepository) Create(ctx context.Context, tuition *models.Tuition) error {
	if tuition.ID == "" {
		tuition.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tuition.StudentEmail = models.NormalizeEmail(tuition.StudentEmail)
	tuition.Status = models.TuitionStatusPending
	if tuition.AppliedTutors == nil {
		tuition.AppliedTutors = []string{}
	}
	tuition.CreatedAt, tuition.UpdatedAt = now, now

	const query = `INSERT INTO tuitions (id, student_email, subject, class_level, location, salary, schedule, description, status, applied_tutors, created_at, updated_at)
	VALUES (:id, :student_email, :subject, :class_level, :location, :salary, :schedule, :description, :status, :applied_tutors, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tuition); err != nil {
		return wrapWrite("create tuition", err)
	}
	return nil
}

// FindByID fetches a tuition by identifier.
func (r *TuitionRepository) FindByID(ctx context.Context, id string) (*models.Tuition, error) {
	var tuition models.Tuition
	if err := r.db.GetContext(ctx, &tuition, `SELECT `+tuitionColumns+` FROM tuitions WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find tuition: %w", err)
	}
	return &tuition, nil
}

// List returns tuitions matching the filter, newest first.
func (r *TuitionRepository) List(ctx context.Context, filter models.TuitionFilter) ([]models.Tuition, int, error) {
	baseQuery := `FROM tuitions WHERE 1=1`
	var args []interface{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		baseQuery += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.StudentEmail != "" {
		args = append(args, models.NormalizeEmail(filter.StudentEmail))
		baseQuery += fmt.Sprintf(" AND student_email = $%d", len(args))
	}
	if filter.Subject != "" {
		args = append(args, "%"+strings.ToLower(filter.Subject)+"%")
		baseQuery += fmt.Sprintf(" AND LOWER(subject) LIKE $%d", len(args))
	}
	if filter.Location != "" {
		args = append(args, "%"+strings.ToLower(filter.Location)+"%")
		baseQuery += fmt.Sprintf(" AND LOWER(location) LIKE $%d", len(args))
	}

	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", tuitionColumns, baseQuery, pageSize, offset)

	var tuitions []models.Tuition
	if err := r.db.SelectContext(ctx, &tuitions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list tuitions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count tuitions: %w", err)
	}
	return tuitions, total, nil
}

// Update applies an owner patch unless the tuition has been assigned meanwhile.
func (r *TuitionRepository) Update(ctx context.Context, id string, patch models.TuitionPatch) error {
	sets := []string{}
	args := map[string]interface{}{"id": id, "updated_at": time.Now().UTC(), "assigned": models.TuitionStatusAssigned}
	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = :%s", column, column))
		args[column] = value
	}
	if patch.Subject != nil {
		add("subject", *patch.Subject)
	}
	if patch.ClassLevel != nil {
		add("class_level", *patch.ClassLevel)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.Salary != nil {
		add("salary", *patch.Salary)
	}
	if patch.Schedule != nil {
		add("schedule", *patch.Schedule)
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = :updated_at")
	query := fmt.Sprintf("UPDATE tuitions SET %s WHERE id = :id AND status <> :assigned", strings.Join(sets, ", "))
	res, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update tuition: %w", err)
	}
	return expectOneRow(res, "update tuition")
}

// UpdateStatus moves a tuition from one status to another; a mismatch yields ErrStaleState.
func (r *TuitionRepository) UpdateStatus(ctx context.Context, id string, from, to models.TuitionStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tuitions SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update tuition status: %w", err)
	}
	return expectOneRow(res, "update tuition status")
}

// Delete removes a tuition that has not been assigned.
func (r *TuitionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tuitions WHERE id = $1 AND status <> $2`, id, models.TuitionStatusAssigned)
	if err != nil {
		return fmt.Errorf("delete tuition: %w", err)
	}
	return expectOneRow(res, "delete tuition")
}

func expectOneRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if affected == 0 {
		return ErrStaleState
	}
	return nil
}
