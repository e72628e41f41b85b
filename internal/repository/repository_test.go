package repository

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	// "postgres" keeps sqlx named queries bound with $N placeholders.
	return sqlx.NewDb(db, "postgres"), mock, func() { db.Close() }
}

var (
	tuitionCols     = []string{"id", "student_email", "subject", "class_level", "location", "salary", "schedule", "description", "status", "applied_tutors", "created_at", "updated_at"}
	applicationCols = []string{"id", "tuition_id", "tutor_email", "tutor_name", "qualifications", "experience", "expected_salary", "status", "created_at", "updated_at"}
	paymentCols     = []string{"id", "transaction_id", "application_id", "tuition_id", "student_email", "tutor_email", "tutor_name", "tuition_name", "amount", "currency", "payment_status", "paid_at"}
)
