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

// WorkflowTx exposes the row-locking primitives the approval and settlement sequences run on.
// Callers must lock the tuition before the application so concurrent workflows on the same
// tuition serialise without deadlocking.
type WorkflowTx interface {
	LockTuition(ctx context.Context, id string) (*models.Tuition, error)
	LockApplication(ctx context.Context, id string) (*models.Application, error)
	AssignTuition(ctx context.Context, id string) error
	SetApplicationStatus(ctx context.Context, id string, from, to models.ApplicationStatus) error
	RejectSiblings(ctx context.Context, tuitionID, keepID string) (int64, error)
	InsertPayment(ctx context.Context, payment *models.Payment) (bool, error)
	FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
}

// WorkflowRepository runs workflow sequences inside a single database transaction.
type WorkflowRepository struct {
	db *sqlx.DB
}

// NewWorkflowRepository constructs the repository.
func NewWorkflowRepository(db *sqlx.DB) *WorkflowRepository {
	return &WorkflowRepository{db: db}
}

// RunInTx executes fn in a read-committed transaction, committing only when fn returns nil.
func (r *WorkflowRepository) RunInTx(ctx context.Context, fn func(WorkflowTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin workflow tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&workflowTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit workflow tx: %w", err)
	}
	return nil
}

type workflowTx struct {
	tx *sqlx.Tx
}

func (w *workflowTx) LockTuition(ctx context.Context, id string) (*models.Tuition, error) {
	var tuition models.Tuition
	if err := w.tx.GetContext(ctx, &tuition, `SELECT `+tuitionColumns+` FROM tuitions WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock tuition: %w", err)
	}
	return &tuition, nil
}

func (w *workflowTx) LockApplication(ctx context.Context, id string) (*models.Application, error) {
	var app models.Application
	if err := w.tx.GetContext(ctx, &app, `SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock application: %w", err)
	}
	return &app, nil
}

// AssignTuition is a compare-and-swap on the assignment state: it fails with ErrStaleState
// when the tuition is already assigned.
func (w *workflowTx) AssignTuition(ctx context.Context, id string) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE tuitions SET status = $2, updated_at = $3 WHERE id = $1 AND status <> $2`,
		id, models.TuitionStatusAssigned, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("assign tuition: %w", err)
	}
	return expectOneRow(res, "assign tuition")
}

func (w *workflowTx) SetApplicationStatus(ctx context.Context, id string, from, to models.ApplicationStatus) error {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE applications SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, from, to, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("set application status: %w", ErrDuplicate)
		}
		return fmt.Errorf("set application status: %w", err)
	}
	return expectOneRow(res, "set application status")
}

func (w *workflowTx) RejectSiblings(ctx context.Context, tuitionID, keepID string) (int64, error) {
	res, err := w.tx.ExecContext(ctx,
		`UPDATE applications SET status = $3, updated_at = $4 WHERE tuition_id = $1 AND id <> $2 AND status = $5`,
		tuitionID, keepID, models.ApplicationStatusRejected, time.Now().UTC(), models.ApplicationStatusPending)
	if err != nil {
		return 0, fmt.Errorf("reject sibling applications: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reject sibling applications rows: %w", err)
	}
	return affected, nil
}

// InsertPayment records a payment, reporting false when the transaction id is already recorded.
func (w *workflowTx) InsertPayment(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = time.Now().UTC()
	}
	const query = `INSERT INTO payments (id, transaction_id, application_id, tuition_id, student_email, tutor_email, tutor_name, tuition_name, amount, currency, payment_status, paid_at)
	VALUES (:id, :transaction_id, :application_id, :tuition_id, :student_email, :tutor_email, :tutor_name, :tuition_name, :amount, :currency, :payment_status, :paid_at)
	ON CONFLICT (transaction_id) DO NOTHING`
	res, err := w.tx.NamedExecContext(ctx, query, payment)
	if err != nil {
		return false, fmt.Errorf("insert payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert payment rows: %w", err)
	}
	return affected == 1, nil
}

func (w *workflowTx) FindPaymentByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := w.tx.GetContext(ctx, &payment, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by transaction: %w", err)
	}
	return &payment, nil
}
