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
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type mockUserRepo struct {
	users   map[string]*models.User
	listErr error
	filter  models.UserFilter
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.filter = filter
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	var users []models.User
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *models.User) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			u.Name = user.Name
			u.PhotoURL = user.PhotoURL
			copy := *u
			return &copy, nil
		}
	}
	user.ID = uuid.NewString()
	user.Status = models.UserStatusActive
	copy := *user
	m.users[user.ID] = &copy
	return user, nil
}

func (m *mockUserRepo) UpdateRole(ctx context.Context, id string, role models.UserRole) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Role = role
	return nil
}

func (m *mockUserRepo) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.Status = status
	return nil
}

func TestUserServiceRegisterDefaultsToStudent(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Register(context.Background(), dto.RegisterUserRequest{Name: " Amy "}, &models.JWTClaims{Email: "amy@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.Equal(t, "Amy", user.Name)
	assert.Equal(t, "amy@example.com", user.Email)
}

func TestUserServiceRegisterRejectsAdminRole(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	_, err := svc.Register(context.Background(), dto.RegisterUserRequest{Name: "Mallory", Role: "admin"}, &models.JWTClaims{Email: "m@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestUserServiceRegisterKeepsExistingRole(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u-1", Email: "amy@example.com", Role: models.RoleAdmin, Status: models.UserStatusActive})
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Register(context.Background(), dto.RegisterUserRequest{Name: "Amy", Role: "tutor"}, &models.JWTClaims{Email: "amy@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)
}

func TestUserServiceRegisterRequiresActor(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)
	_, err := svc.Register(context.Background(), dto.RegisterUserRequest{Name: "Amy"}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestUserServiceMeNotRegistered(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)
	_, err := svc.Me(context.Background(), &models.JWTClaims{Email: "ghost@example.com"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestUserServiceListValidatesFilters(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u-1", Email: "a@example.com"})
	svc := NewUserService(repo, nil, nil)

	_, _, err := svc.List(context.Background(), dto.UserQuery{Role: "superuser"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	users, pagination, err := svc.List(context.Background(), dto.UserQuery{Role: "tutor", Page: 2, PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	require.NotNil(t, repo.filter.Role)
	assert.Equal(t, models.RoleTutor, *repo.filter.Role)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestUserServiceUpdateStatus(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u-1", Email: "a@example.com", Status: models.UserStatusActive})
	svc := NewUserService(repo, nil, nil)
	admin := &models.JWTClaims{UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}

	require.NoError(t, svc.UpdateStatus(context.Background(), "u-1", dto.UpdateUserStatusRequest{Status: "blocked"}, admin))
	assert.Equal(t, models.UserStatusBlocked, repo.users["u-1"].Status)

	err := svc.UpdateStatus(context.Background(), "missing", dto.UpdateUserStatusRequest{Status: "blocked"}, admin)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	err = svc.UpdateStatus(context.Background(), "admin-1", dto.UpdateUserStatusRequest{Status: "blocked"}, admin)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}

func TestUserServiceUpdateRole(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u-1", Email: "a@example.com", Role: models.RoleStudent})
	svc := NewUserService(repo, nil, nil)

	require.NoError(t, svc.UpdateRole(context.Background(), "u-1", dto.UpdateUserRoleRequest{Role: "tutor"}, &models.JWTClaims{UserID: "admin-1"}))
	assert.Equal(t, models.RoleTutor, repo.users["u-1"].Role)

	err := svc.UpdateRole(context.Background(), "u-1", dto.UpdateUserRoleRequest{Role: "root"}, nil)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
