package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type mockTuitionRepo struct {
	tuitions map[string]*models.Tuition
	filter   models.TuitionFilter
	// assignOnWrite simulates an approval landing between the read and the guarded write.
	assignOnWrite bool
}

func newMockTuitionRepo() *mockTuitionRepo {
	return &mockTuitionRepo{tuitions: make(map[string]*models.Tuition)}
}

func (m *mockTuitionRepo) add(owner string, status models.TuitionStatus) *models.Tuition {
	t := &models.Tuition{ID: uuid.NewString(), StudentEmail: owner, Subject: "Chemistry", Status: status}
	m.tuitions[t.ID] = t
	return t
}

func (m *mockTuitionRepo) Create(ctx context.Context, tuition *models.Tuition) error {
	tuition.ID = uuid.NewString()
	tuition.Status = models.TuitionStatusPending
	copy := *tuition
	m.tuitions[tuition.ID] = &copy
	return nil
}

func (m *mockTuitionRepo) FindByID(ctx context.Context, id string) (*models.Tuition, error) {
	t, ok := m.tuitions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *t
	return &copy, nil
}

func (m *mockTuitionRepo) List(ctx context.Context, filter models.TuitionFilter) ([]models.Tuition, int, error) {
	m.filter = filter
	var out []models.Tuition
	for _, t := range m.tuitions {
		if filter.StudentEmail != "" && t.StudentEmail != filter.StudentEmail {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (m *mockTuitionRepo) Update(ctx context.Context, id string, patch models.TuitionPatch) error {
	t, ok := m.tuitions[id]
	if !ok || t.Status == models.TuitionStatusAssigned || m.assignOnWrite {
		return repository.ErrStaleState
	}
	if patch.Subject != nil {
		t.Subject = *patch.Subject
	}
	return nil
}

func (m *mockTuitionRepo) UpdateStatus(ctx context.Context, id string, from, to models.TuitionStatus) error {
	t, ok := m.tuitions[id]
	if !ok || t.Status != from {
		return repository.ErrStaleState
	}
	t.Status = to
	return nil
}

func (m *mockTuitionRepo) Delete(ctx context.Context, id string) error {
	t, ok := m.tuitions[id]
	if !ok || t.Status == models.TuitionStatusAssigned {
		return repository.ErrStaleState
	}
	delete(m.tuitions, id)
	return nil
}

type mockApplicationLister struct {
	apps []models.Application
}

func (m *mockApplicationLister) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error) {
	var out []models.Application
	for _, a := range m.apps {
		if a.TuitionID == filter.TuitionID {
			out = append(out, a)
		}
	}
	return out, nil
}

var tuitionOwner = &models.JWTClaims{Email: "owner@example.com", Role: models.RoleStudent}

func TestTuitionServiceCreateForcesPending(t *testing.T) {
	repo := newMockTuitionRepo()
	svc := NewTuitionService(repo, &mockApplicationLister{}, nil, nil)

	tuition, err := svc.Create(context.Background(), dto.CreateTuitionRequest{Subject: "Chemistry", ClassLevel: "Grade 11", Location: "Dhaka", Salary: 5000}, tuitionOwner)
	require.NoError(t, err)
	assert.Equal(t, models.TuitionStatusPending, tuition.Status)
	assert.Equal(t, tuitionOwner.Email, tuition.StudentEmail)

	_, err = svc.Create(context.Background(), dto.CreateTuitionRequest{Subject: "Chemistry"}, tuitionOwner)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTuitionServiceUpdateGuards(t *testing.T) {
	repo := newMockTuitionRepo()
	svc := NewTuitionService(repo, &mockApplicationLister{}, nil, nil)
	open := repo.add(tuitionOwner.Email, models.TuitionStatusActive)
	assigned := repo.add(tuitionOwner.Email, models.TuitionStatusAssigned)
	subject := "Biology"
	req := dto.UpdateTuitionRequest{Subject: &subject}

	require.NoError(t, svc.Update(context.Background(), open.ID, req, tuitionOwner))
	assert.Equal(t, "Biology", repo.tuitions[open.ID].Subject)

	err := svc.Update(context.Background(), open.ID, req, &models.JWTClaims{Email: "x@example.com", Role: models.RoleAdmin})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = svc.Update(context.Background(), assigned.ID, req, tuitionOwner)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	repo.assignOnWrite = true
	err = svc.Update(context.Background(), open.ID, req, tuitionOwner)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestTuitionServiceUpdateStatusOnlyPublishes(t *testing.T) {
	repo := newMockTuitionRepo()
	svc := NewTuitionService(repo, &mockApplicationLister{}, nil, nil)
	pending := repo.add(tuitionOwner.Email, models.TuitionStatusPending)
	assigned := repo.add(tuitionOwner.Email, models.TuitionStatusAssigned)

	require.NoError(t, svc.UpdateStatus(context.Background(), pending.ID, dto.UpdateTuitionStatusRequest{Status: "active"}))
	assert.Equal(t, models.TuitionStatusActive, repo.tuitions[pending.ID].Status)
	require.NoError(t, svc.UpdateStatus(context.Background(), pending.ID, dto.UpdateTuitionStatusRequest{Status: "active"}))

	err := svc.UpdateStatus(context.Background(), pending.ID, dto.UpdateTuitionStatusRequest{Status: "assigned"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	err = svc.UpdateStatus(context.Background(), assigned.ID, dto.UpdateTuitionStatusRequest{Status: "active"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
}

func TestTuitionServiceDelete(t *testing.T) {
	repo := newMockTuitionRepo()
	svc := NewTuitionService(repo, &mockApplicationLister{}, nil, nil)
	open := repo.add(tuitionOwner.Email, models.TuitionStatusActive)
	assigned := repo.add(tuitionOwner.Email, models.TuitionStatusAssigned)

	err := svc.Delete(context.Background(), assigned.ID, &models.JWTClaims{Email: "admin@example.com", Role: models.RoleAdmin})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	err = svc.Delete(context.Background(), open.ID, &models.JWTClaims{Email: "x@example.com", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.Delete(context.Background(), open.ID, tuitionOwner))
	_, err = svc.Get(context.Background(), open.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTuitionServiceApplicationsOwnerOnly(t *testing.T) {
	repo := newMockTuitionRepo()
	tu := repo.add(tuitionOwner.Email, models.TuitionStatusActive)
	lister := &mockApplicationLister{apps: []models.Application{{ID: "a-1", TuitionID: tu.ID}, {ID: "a-2", TuitionID: "other"}}}
	svc := NewTuitionService(repo, lister, nil, nil)

	apps, err := svc.Applications(context.Background(), tu.ID, tuitionOwner)
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	_, err = svc.Applications(context.Background(), tu.ID, &models.JWTClaims{Email: "tutor@example.com", Role: models.RoleTutor})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestTuitionServiceListFilters(t *testing.T) {
	repo := newMockTuitionRepo()
	svc := NewTuitionService(repo, &mockApplicationLister{}, nil, nil)
	repo.add(tuitionOwner.Email, models.TuitionStatusActive)
	repo.add("other@example.com", models.TuitionStatusActive)

	_, _, err := svc.List(context.Background(), dto.TuitionQuery{Status: "archived"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, _, err = svc.List(context.Background(), dto.TuitionQuery{Status: "active", Subject: " Chemistry "})
	require.NoError(t, err)
	require.NotNil(t, repo.filter.Status)
	assert.Equal(t, models.TuitionStatusActive, *repo.filter.Status)
	assert.Equal(t, "Chemistry", repo.filter.Subject)

	mine, _, err := svc.ListMine(context.Background(), dto.TuitionQuery{}, tuitionOwner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
