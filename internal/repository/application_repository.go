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

const applicationColumns = `id, tuition_id, tutor_email, tutor_name, qualifications, experience, expected_salary, status, created_at, updated_at`

// ApplicationRepository persists tutor applications outside the approval transaction.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts a pending application. A second pending application from the same tutor for
// the same tuition violates applications_one_pending_per_tutor and yields ErrDuplicate.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	app.TutorEmail = models.NormalizeEmail(app.TutorEmail)
	app.Status = models.ApplicationStatusPending
	app.CreatedAt, app.UpdatedAt = now, now

	const query = `INSERT INTO applications (id, tuition_id, tutor_email, tutor_name, qualifications, experience, expected_salary, status, created_at, updated_at)
	VALUES (:id, :tuition_id, :tutor_email, :tutor_name, :qualifications, :experience, :expected_salary, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		return wrapWrite("create application", err)
	}
	return nil
}

// FindByID fetches an application by identifier.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	if err := r.db.GetContext(ctx, &app, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find application: %w", err)
	}
	return &app, nil
}

// HasPending reports whether tutorEmail already has a pending application for tuitionID.
func (r *ApplicationRepository) HasPending(ctx context.Context, tuitionID, tutorEmail string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM applications WHERE tuition_id = $1 AND tutor_email = $2 AND status = $3)`
	if err := r.db.GetContext(ctx, &exists, query, tuitionID, models.NormalizeEmail(tutorEmail), models.ApplicationStatusPending); err != nil {
		return false, fmt.Errorf("check pending application: %w", err)
	}
	return exists, nil
}

// List returns applications matching the filter, newest first.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE 1=1`
	var args []interface{}
	if filter.TuitionID != "" {
		args = append(args, filter.TuitionID)
		query += fmt.Sprintf(" AND tuition_id = $%d", len(args))
	}
	if filter.TutorEmail != "" {
		args = append(args, models.NormalizeEmail(filter.TutorEmail))
		query += fmt.Sprintf(" AND tutor_email = $%d", len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// Update applies patch unless the application is approved. ErrStaleState means the row is
// missing or was approved concurrently.
func (r *ApplicationRepository) Update(ctx context.Context, id string, patch models.ApplicationPatch) error {
	sets := []string{}
	args := map[string]interface{}{"id": id, "updated_at": time.Now().UTC(), "approved": models.ApplicationStatusApproved}
	add := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = :%s", column, column))
		args[column] = value
	}
	if patch.TutorName != nil {
		add("tutor_name", *patch.TutorName)
	}
	if patch.Qualifications != nil {
		add("qualifications", *patch.Qualifications)
	}
	if patch.Experience != nil {
		add("experience", *patch.Experience)
	}
	if patch.ExpectedSalary != nil {
		add("expected_salary", *patch.ExpectedSalary)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = :updated_at")
	query := fmt.Sprintf("UPDATE applications SET %s WHERE id = :id AND status <> :approved", strings.Join(sets, ", "))
	res, err := r.db.NamedExecContext(ctx, query, args)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	return expectOneRow(res, "update application")
}

// Delete removes an application unless it is approved.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1 AND status <> $2`, id, models.ApplicationStatusApproved)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	return expectOneRow(res, "delete application")
}
