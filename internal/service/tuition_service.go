package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type tuitionRepository interface {
	Create(ctx context.Context, tuition *models.Tuition) error
	FindByID(ctx context.Context, id string) (*models.Tuition, error)
	List(ctx context.Context, filter models.TuitionFilter) ([]models.Tuition, int, error)
	Update(ctx context.Context, id string, patch models.TuitionPatch) error
	UpdateStatus(ctx context.Context, id string, from, to models.TuitionStatus) error
	Delete(ctx context.Context, id string) error
}

type applicationLister interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
}

// TuitionService manages tuition requests outside the approval workflow. Assignment only ever
// happens through WorkflowService.
type TuitionService struct {
	repo         tuitionRepository
	applications applicationLister
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewTuitionService constructs a TuitionService.
func NewTuitionService(repo tuitionRepository, applications applicationLister, validate *validator.Validate, logger *zap.Logger) *TuitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TuitionService{repo: repo, applications: applications, validator: validate, logger: logger}
}

// Create posts a tuition request owned by the calling student.
func (s *TuitionService) Create(ctx context.Context, req dto.CreateTuitionRequest, actor *models.JWTClaims) (*models.Tuition, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req, "invalid tuition payload"); err != nil {
		return nil, err
	}
	tuition := &models.Tuition{
		StudentEmail: actor.Email,
		Subject:      strings.TrimSpace(req.Subject),
		ClassLevel:   strings.TrimSpace(req.ClassLevel),
		Location:     strings.TrimSpace(req.Location),
		Salary:       req.Salary,
		Schedule:     req.Schedule,
		Description:  req.Description,
	}
	if err := s.repo.Create(ctx, tuition); err != nil {
		return nil, appErrors.Internal(err, "failed to create tuition")
	}
	s.logger.Info("tuition created", zap.String("tuition_id", tuition.ID))
	return tuition, nil
}

// List returns tuitions matching the query.
func (s *TuitionService) List(ctx context.Context, query dto.TuitionQuery) ([]models.Tuition, *models.Pagination, error) {
	filter := models.TuitionFilter{
		Subject:  strings.TrimSpace(query.Subject),
		Location: strings.TrimSpace(query.Location),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if query.Status != "" {
		status := models.TuitionStatus(query.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}
	tuitions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list tuitions")
	}
	return tuitions, newPagination(filter.Page, filter.PageSize, total), nil
}

// ListMine returns the caller's own tuition requests.
func (s *TuitionService) ListMine(ctx context.Context, query dto.TuitionQuery, actor *models.JWTClaims) ([]models.Tuition, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter := models.TuitionFilter{StudentEmail: actor.Email, Page: query.Page, PageSize: query.PageSize}
	tuitions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list tuitions")
	}
	return tuitions, newPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a tuition by id.
func (s *TuitionService) Get(ctx context.Context, id string) (*models.Tuition, error) {
	tuition, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "tuition not found", "failed to load tuition")
	}
	return tuition, nil
}

// Update applies an owner patch. Assigned tuitions are frozen.
func (s *TuitionService) Update(ctx context.Context, id string, req dto.UpdateTuitionRequest, actor *models.JWTClaims) error {
	if err := validate(s.validator, req, "invalid tuition payload"); err != nil {
		return err
	}
	tuition, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Owns(tuition.StudentEmail) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner can edit this tuition")
	}
	if tuition.Status == models.TuitionStatusAssigned {
		return appErrors.Clone(appErrors.ErrForbidden, "assigned tuitions cannot be modified")
	}
	patch := models.TuitionPatch{
		Subject:     req.Subject,
		ClassLevel:  req.ClassLevel,
		Location:    req.Location,
		Salary:      req.Salary,
		Schedule:    req.Schedule,
		Description: req.Description,
	}
	if err := s.repo.Update(ctx, id, patch); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return appErrors.Clone(appErrors.ErrForbidden, "assigned tuitions cannot be modified")
		}
		return appErrors.Internal(err, "failed to update tuition")
	}
	return nil
}

// UpdateStatus publishes a pending tuition. Assignment is not reachable from here.
func (s *TuitionService) UpdateStatus(ctx context.Context, id string, req dto.UpdateTuitionStatusRequest) error {
	if err := validate(s.validator, req, "invalid tuition status payload"); err != nil {
		return err
	}
	tuition, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	next := models.TuitionStatus(req.Status)
	if tuition.Status == next {
		return nil
	}
	if !tuition.Status.CanTransitionTo(next) {
		return appErrors.Clone(appErrors.ErrConflict, "tuition cannot move from "+string(tuition.Status)+" to "+string(next))
	}
	if err := s.repo.UpdateStatus(ctx, id, tuition.Status, next); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return appErrors.Clone(appErrors.ErrConflict, "tuition changed concurrently")
		}
		return appErrors.Internal(err, "failed to update tuition status")
	}
	s.logger.Info("tuition status changed", zap.String("tuition_id", id), zap.String("status", req.Status))
	return nil
}

// Delete removes an unassigned tuition.
func (s *TuitionService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	tuition, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !actor.Owns(tuition.StudentEmail) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner can delete this tuition")
	}
	if tuition.Status == models.TuitionStatusAssigned {
		return appErrors.Clone(appErrors.ErrForbidden, "assigned tuitions cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return appErrors.Clone(appErrors.ErrForbidden, "assigned tuitions cannot be deleted")
		}
		return appErrors.Internal(err, "failed to delete tuition")
	}
	s.logger.Info("tuition deleted", zap.String("tuition_id", id))
	return nil
}

// Applications lists the applications received by a tuition. Owner or admin only.
func (s *TuitionService) Applications(ctx context.Context, id string, actor *models.JWTClaims) ([]models.Application, error) {
	tuition, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(tuition.StudentEmail) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner can view applications")
	}
	apps, err := s.applications.List(ctx, models.ApplicationFilter{TuitionID: id})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list applications")
	}
	return apps, nil
}
