package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const reviewColumns = `id, tutor_id, reviewer_email, rating, comment, created_at`

// ReviewRepository persists reviews and keeps the tutor aggregate in step.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Record inserts review and recomputes the tutor's rating from every stored review in one
// transaction. The tutor row lock serialises concurrent reviews of the same tutor. Returns
// sql.ErrNoRows when the tutor does not exist.
func (r *ReviewRepository) Record(ctx context.Context, review *models.Review) (*models.TutorRating, error) {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	review.ReviewerEmail = models.NormalizeEmail(review.ReviewerEmail)
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var tutorID string
	if err := tx.GetContext(ctx, &tutorID, `SELECT id FROM tutors WHERE id = $1 FOR UPDATE`, review.TutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock tutor: %w", err)
	}

	const insert = `INSERT INTO reviews (` + reviewColumns + `) VALUES (:id, :tutor_id, :reviewer_email, :rating, :comment, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insert, review); err != nil {
		return nil, wrapWrite("insert review", err)
	}

	var ratings []int
	if err := tx.SelectContext(ctx, &ratings, `SELECT rating FROM reviews WHERE tutor_id = $1`, tutorID); err != nil {
		return nil, fmt.Errorf("load tutor ratings: %w", err)
	}
	aggregate := models.NewTutorRating(tutorID, ratings)

	if _, err := tx.ExecContext(ctx,
		`UPDATE tutors SET rating = $2, review_count = $3, updated_at = $4 WHERE id = $1`,
		tutorID, aggregate.Rating, aggregate.ReviewCount, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("update tutor rating: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review tx: %w", err)
	}
	return &aggregate, nil
}

// ListByTutor returns a tutor's reviews, newest first.
func (r *ReviewRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error) {
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, `SELECT `+reviewColumns+` FROM reviews WHERE tutor_id = $1 ORDER BY created_at DESC`, tutorID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
