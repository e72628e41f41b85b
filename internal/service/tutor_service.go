package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

const tutorCacheScope = "tutors"

type tutorRepository interface {
	Create(ctx context.Context, tutor *models.Tutor) error
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	List(ctx context.Context, filter models.TutorFilter) ([]models.Tutor, int, error)
	UpdateStatus(ctx context.Context, id string, status models.TutorStatus) error
}

// TutorPage is a cached page of the public tutor directory.
type TutorPage struct {
	Tutors     []models.Tutor     `json:"tutors"`
	Pagination *models.Pagination `json:"pagination"`
}

// TutorService manages tutor profiles and the public directory.
type TutorService struct {
	repo      tutorRepository
	cache     *CacheService
	ttl       time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTutorService constructs a TutorService. cache may be nil.
func NewTutorService(repo tutorRepository, cache *CacheService, ttl time.Duration, validate *validator.Validate, logger *zap.Logger) *TutorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TutorService{repo: repo, cache: cache, ttl: ttl, validator: validate, logger: logger}
}

// Create registers the caller's tutor profile in pending state.
func (s *TutorService) Create(ctx context.Context, req dto.CreateTutorRequest, actor *models.JWTClaims) (*models.Tutor, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req, "invalid tutor payload"); err != nil {
		return nil, err
	}
	subjects := make(pq.StringArray, 0, len(req.Subjects))
	for _, subject := range req.Subjects {
		subjects = append(subjects, strings.TrimSpace(subject))
	}
	tutor := &models.Tutor{
		Email:          actor.Email,
		Name:           strings.TrimSpace(req.Name),
		Subjects:       subjects,
		Qualifications: req.Qualifications,
		Experience:     req.Experience,
		Location:       req.Location,
	}
	if err := s.repo.Create(ctx, tutor); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "tutor profile already exists")
		}
		return nil, appErrors.Internal(err, "failed to create tutor")
	}
	s.logger.Info("tutor profile created", zap.String("tutor_id", tutor.ID))
	return tutor, nil
}

// List returns the approved tutors of the public directory, served from cache when possible.
func (s *TutorService) List(ctx context.Context, query dto.TutorQuery) ([]models.Tutor, *models.Pagination, error) {
	approved := models.TutorStatusApproved
	filter := models.TutorFilter{
		Status:   &approved,
		Subject:  strings.TrimSpace(query.Subject),
		Location: strings.TrimSpace(query.Location),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	pagination := newPagination(filter.Page, filter.PageSize, 0)
	key := s.cache.Key(tutorCacheScope, "list", strings.ToLower(filter.Subject), strings.ToLower(filter.Location),
		fmt.Sprintf("%d", pagination.Page), fmt.Sprintf("%d", pagination.PageSize))

	var cached TutorPage
	if s.cache.Get(ctx, key, &cached) {
		return cached.Tutors, cached.Pagination, nil
	}

	tutors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list tutors")
	}
	pagination.TotalCount = total
	s.cache.Set(ctx, key, TutorPage{Tutors: tutors, Pagination: pagination}, s.ttl)
	return tutors, pagination, nil
}

// Get returns a tutor. Profiles that are not approved are only visible to their owner and admins.
func (s *TutorService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Tutor, error) {
	tutor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "tutor not found", "failed to load tutor")
	}
	if tutor.Status != models.TutorStatusApproved && !actor.IsAdmin() && !actor.Owns(tutor.Email) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "tutor not found")
	}
	return tutor, nil
}

// UpdateStatus records the admin review of a tutor profile.
func (s *TutorService) UpdateStatus(ctx context.Context, id string, req dto.UpdateTutorStatusRequest) error {
	if err := validate(s.validator, req, "invalid tutor status payload"); err != nil {
		return err
	}
	if err := s.repo.UpdateStatus(ctx, id, models.TutorStatus(req.Status)); err != nil {
		return storeError(err, "tutor not found", "failed to update tutor status")
	}
	s.InvalidateDirectory(ctx)
	s.logger.Info("tutor status changed", zap.String("tutor_id", id), zap.String("status", req.Status))
	return nil
}

// InvalidateDirectory drops every cached directory page.
func (s *TutorService) InvalidateDirectory(ctx context.Context) {
	s.cache.Invalidate(ctx, tutorCacheScope, "*")
}
