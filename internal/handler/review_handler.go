package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type reviewRecorder interface {
	Record(ctx context.Context, req dto.CreateReviewRequest, actor *models.JWTClaims) (*service.ReviewResult, error)
	ListByTutor(ctx context.Context, tutorID string) ([]models.Review, error)
}

// ReviewHandler records and lists tutor reviews.
type ReviewHandler struct {
	reviews reviewRecorder
}

// NewReviewHandler constructs a ReviewHandler.
func NewReviewHandler(reviews reviewRecorder) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// Create godoc
// @Summary Review a tutor
// @Tags Reviews
// @Accept json
// @Produce json
// @Param payload body dto.CreateReviewRequest true "Review"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /reviews [post]
func (h *ReviewHandler) Create(c *gin.Context) {
	var req dto.CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.reviews.Record(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListByTutor godoc
// @Summary List a tutor's reviews
// @Tags Reviews
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/reviews [get]
func (h *ReviewHandler) ListByTutor(c *gin.Context) {
	id, ok := pathID(c, "tutor not found")
	if !ok {
		return
	}
	reviews, err := h.reviews.ListByTutor(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reviews, nil)
}
