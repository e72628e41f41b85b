package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const paymentColumns = `id, transaction_id, application_id, tuition_id, student_email, tutor_email, tutor_name, tuition_name, amount, currency, payment_status, paid_at`

// PaymentRepository reads settled payments. Inserts happen inside the workflow transaction.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// FindByTransactionID returns the payment recorded for an external transaction.
func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by transaction: %w", err)
	}
	return &payment, nil
}

// FindByID returns a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	return &payment, nil
}

// List returns payments for the filter, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	where, args := paymentWhere(filter)
	_, pageSize, offset := pageBounds(filter.Page, filter.PageSize)
	listQuery := fmt.Sprintf("SELECT %s FROM payments%s ORDER BY paid_at DESC LIMIT %d OFFSET %d", paymentColumns, where, pageSize, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// Each streams every payment matching the filter to fn, oldest first, ignoring pagination.
func (r *PaymentRepository) Each(ctx context.Context, filter models.PaymentFilter, fn func(models.Payment) error) error {
	where, args := paymentWhere(filter)
	rows, err := r.db.QueryxContext(ctx, "SELECT "+paymentColumns+" FROM payments"+where+" ORDER BY paid_at ASC", args...)
	if err != nil {
		return fmt.Errorf("stream payments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var payment models.Payment
		if err := rows.StructScan(&payment); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		if err := fn(payment); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate payments: %w", err)
	}
	return nil
}

func paymentWhere(filter models.PaymentFilter) (string, []interface{}) {
	var args []interface{}
	where := ""
	add := func(clause string, value interface{}) {
		args = append(args, value)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(clause, len(args))
	}
	if filter.StudentEmail != "" {
		add("student_email = $%d", models.NormalizeEmail(filter.StudentEmail))
	}
	if filter.TutorEmail != "" {
		add("tutor_email = $%d", models.NormalizeEmail(filter.TutorEmail))
	}
	return where, args
}
