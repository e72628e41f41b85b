package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/pkg/payment"
)

// CheckoutSessionRepository stores the metadata of issued checkout sessions. It implements
// payment.SessionStore.
type CheckoutSessionRepository struct {
	db *sqlx.DB
}

// NewCheckoutSessionRepository constructs the repository.
func NewCheckoutSessionRepository(db *sqlx.DB) *CheckoutSessionRepository {
	return &CheckoutSessionRepository{db: db}
}

// SaveSession inserts a session record.
func (r *CheckoutSessionRepository) SaveSession(ctx context.Context, record *payment.SessionRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO checkout_sessions (reference, application_id, tuition_id, student_email, tutor_email, tutor_name, tuition_name, amount, currency, redirect_url, created_at)
	VALUES (:reference, :application_id, :tuition_id, :student_email, :tutor_email, :tutor_name, :tuition_name, :amount, :currency, :redirect_url, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return wrapWrite("save checkout session", err)
	}
	return nil
}

// FindSession loads a session record; unknown references yield payment.ErrSessionNotFound.
func (r *CheckoutSessionRepository) FindSession(ctx context.Context, reference string) (*payment.SessionRecord, error) {
	const query = `SELECT reference, application_id, tuition_id, student_email, tutor_email, tutor_name, tuition_name, amount, currency, redirect_url, created_at
	FROM checkout_sessions WHERE reference = $1`
	var record payment.SessionRecord
	if err := r.db.GetContext(ctx, &record, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, payment.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find checkout session: %w", err)
	}
	return &record, nil
}
