package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type tutorDirectory interface {
	Create(ctx context.Context, req dto.CreateTutorRequest, actor *models.JWTClaims) (*models.Tutor, error)
	List(ctx context.Context, query dto.TutorQuery) ([]models.Tutor, *models.Pagination, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Tutor, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateTutorStatusRequest) error
}

// TutorHandler serves tutor profiles.
type TutorHandler struct {
	tutors tutorDirectory
}

// NewTutorHandler constructs a TutorHandler.
func NewTutorHandler(tutors tutorDirectory) *TutorHandler {
	return &TutorHandler{tutors: tutors}
}

// Create godoc
// @Summary Create my tutor profile
// @Tags Tutors
// @Accept json
// @Produce json
// @Param payload body dto.CreateTutorRequest true "Profile"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tutors [post]
func (h *TutorHandler) Create(c *gin.Context) {
	var req dto.CreateTutorRequest
	if !bindJSON(c, &req) {
		return
	}
	tutor, err := h.tutors.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tutor)
}

// List godoc
// @Summary List approved tutors
// @Tags Tutors
// @Produce json
// @Param subject query string false "Subject"
// @Param location query string false "Location"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tutors [get]
func (h *TutorHandler) List(c *gin.Context) {
	var query dto.TutorQuery
	if !bindQuery(c, &query) {
		return
	}
	tutors, pagination, err := h.tutors.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutors, pagination)
}

// Get godoc
// @Summary Get a tutor profile
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/{id} [get]
func (h *TutorHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "tutor not found")
	if !ok {
		return
	}
	tutor, err := h.tutors.Get(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tutor, nil)
}

// UpdateStatus godoc
// @Summary Approve or reject a tutor profile
// @Tags Tutors
// @Accept json
// @Produce json
// @Param id path string true "Tutor ID"
// @Param payload body dto.UpdateTutorStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/status [patch]
func (h *TutorHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateTutorStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := pathID(c, "tutor not found")
	if !ok {
		return
	}
	if err := h.tutors.UpdateStatus(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "tutor status updated")
}
