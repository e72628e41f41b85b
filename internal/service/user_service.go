package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) (*models.User, error)
	UpdateRole(ctx context.Context, id string, role models.UserRole) error
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
}

// UserService handles account registration and administration.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// Register creates the caller's account or refreshes its profile. The requested role only
// applies on first registration and can never be admin.
func (s *UserService) Register(ctx context.Context, req dto.RegisterUserRequest, actor *models.JWTClaims) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req, "invalid user payload"); err != nil {
		return nil, err
	}
	role := models.UserRole(req.Role)
	if role == "" {
		role = models.RoleStudent
	}
	user, err := s.repo.Upsert(ctx, &models.User{
		Email:    actor.Email,
		Name:     strings.TrimSpace(req.Name),
		PhotoURL: req.PhotoURL,
		Role:     role,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to register user")
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Me returns the caller's account.
func (s *UserService) Me(ctx context.Context, actor *models.JWTClaims) (*models.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByEmail(ctx, actor.Email)
	if err != nil {
		return nil, storeError(err, "user not registered", "failed to load user")
	}
	return user, nil
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, query dto.UserQuery) ([]models.User, *models.Pagination, error) {
	filter := models.UserFilter{Search: strings.TrimSpace(query.Search), Page: query.Page, PageSize: query.PageSize}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		if !role.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid role filter")
		}
		filter.Role = &role
	}
	if query.Status != "" {
		status := models.UserStatus(query.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	return users, newPagination(filter.Page, filter.PageSize, total), nil
}

// UpdateRole changes a user's role.
func (s *UserService) UpdateRole(ctx context.Context, id string, req dto.UpdateUserRoleRequest, actor *models.JWTClaims) error {
	if err := validate(s.validator, req, "invalid role payload"); err != nil {
		return err
	}
	if actor != nil && actor.UserID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "admins cannot change their own role")
	}
	if err := s.repo.UpdateRole(ctx, id, models.UserRole(req.Role)); err != nil {
		return storeError(err, "user not found", "failed to update role")
	}
	s.logger.Info("user role changed", zap.String("user_id", id), zap.String("role", req.Role))
	return nil
}

// UpdateStatus blocks or unblocks a user.
func (s *UserService) UpdateStatus(ctx context.Context, id string, req dto.UpdateUserStatusRequest, actor *models.JWTClaims) error {
	if err := validate(s.validator, req, "invalid status payload"); err != nil {
		return err
	}
	if actor != nil && actor.UserID == id {
		return appErrors.Clone(appErrors.ErrForbidden, "admins cannot change their own status")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.UserStatus(req.Status)); err != nil {
		return storeError(err, "user not found", "failed to update status")
	}
	s.logger.Info("user status changed", zap.String("user_id", id), zap.String("status", req.Status))
	return nil
}
