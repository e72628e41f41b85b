package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func TestReviewRepositoryRecordRecomputesAggregate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM tutors WHERE id = $1 FOR UPDATE")).
		WithArgs("tutor-x").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tutor-x"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO reviews")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT rating FROM reviews WHERE tutor_id = $1")).
		WithArgs("tutor-x").
		WillReturnRows(sqlmock.NewRows([]string{"rating"}).AddRow(4).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE tutors SET rating = $2, review_count = $3")).
		WithArgs("tutor-x", 3.0, 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	agg, err := repo.Record(context.Background(), &models.Review{TutorID: "tutor-x", ReviewerEmail: "S@example.com", Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, agg.Rating)
	assert.Equal(t, 2, agg.ReviewCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepositoryRecordUnknownTutor(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM tutors WHERE id = $1 FOR UPDATE")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Record(context.Background(), &models.Review{TutorID: "missing", Rating: 5})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
