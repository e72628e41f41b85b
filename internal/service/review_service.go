package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/events"
)

type reviewRepository interface {
	Record(ctx context.Context, review *models.Review) (*models.TutorRating, error)
	ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error)
}

type directoryInvalidator interface {
	InvalidateDirectory(ctx context.Context)
}

// ReviewResult is returned after a review has been recorded.
type ReviewResult struct {
	InsertedID  string  `json:"insertedId"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"reviewCount"`
}

// ReviewService records tutor reviews and keeps the derived rating in step.
type ReviewService struct {
	repo      reviewRepository
	directory directoryInvalidator
	publisher events.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs a ReviewService. directory and publisher may be nil.
func NewReviewService(repo reviewRepository, directory directoryInvalidator, publisher events.Publisher, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &ReviewService{repo: repo, directory: directory, publisher: publisher, validator: validate, logger: logger}
}

// Record stores a review and recomputes the tutor's rating and review count atomically.
func (s *ReviewService) Record(ctx context.Context, req dto.CreateReviewRequest, actor *models.JWTClaims) (*ReviewResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req, "invalid review payload"); err != nil {
		return nil, err
	}
	review := &models.Review{
		TutorID:       req.TutorID,
		ReviewerEmail: actor.Email,
		Rating:        req.Rating,
		Comment:       strings.TrimSpace(req.Comment),
	}
	rating, err := s.repo.Record(ctx, review)
	if err != nil {
		return nil, storeError(err, "tutor not found", "failed to record review")
	}

	if s.directory != nil {
		s.directory.InvalidateDirectory(ctx)
	}
	if err := s.publisher.Publish(ctx, events.ReviewRecorded, rating); err != nil {
		s.logger.Warn("publish event failed", zap.String("event", events.ReviewRecorded), zap.Error(err))
	}
	s.logger.Info("review recorded",
		zap.String("tutor_id", rating.TutorID),
		zap.Float64("rating", rating.Rating),
		zap.Int("review_count", rating.ReviewCount),
	)
	return &ReviewResult{InsertedID: review.ID, Rating: rating.Rating, ReviewCount: rating.ReviewCount}, nil
}

// ListByTutor returns a tutor's reviews, newest first.
func (s *ReviewService) ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error) {
	reviews, err := s.repo.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list reviews")
	}
	return reviews, nil
}
