package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type tuitionBoard interface {
	Create(ctx context.Context, req dto.CreateTuitionRequest, actor *models.JWTClaims) (*models.Tuition, error)
	List(ctx context.Context, query dto.TuitionQuery) ([]models.Tuition, *models.Pagination, error)
	ListMine(ctx context.Context, query dto.TuitionQuery, actor *models.JWTClaims) ([]models.Tuition, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Tuition, error)
	Update(ctx context.Context, id string, req dto.UpdateTuitionRequest, actor *models.JWTClaims) error
	UpdateStatus(ctx context.Context, id string, req dto.UpdateTuitionStatusRequest) error
	Delete(ctx context.Context, id string, actor *models.JWTClaims) error
	Applications(ctx context.Context, id string, actor *models.JWTClaims) ([]models.Application, error)
}

// TuitionHandler serves tuition requests.
type TuitionHandler struct {
	tuitions tuitionBoard
}

// NewTuitionHandler constructs a TuitionHandler.
func NewTuitionHandler(tuitions tuitionBoard) *TuitionHandler {
	return &TuitionHandler{tuitions: tuitions}
}

// Create godoc
// @Summary Post a tuition request
// @Tags Tuitions
// @Accept json
// @Produce json
// @Param payload body dto.CreateTuitionRequest true "Tuition"
// @Success 201 {object} response.Envelope
// @Router /tuitions [post]
func (h *TuitionHandler) Create(c *gin.Context) {
	var req dto.CreateTuitionRequest
	if !bindJSON(c, &req) {
		return
	}
	tuition, err := h.tuitions.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.InsertedResponse{InsertedID: tuition.ID})
}

// List godoc
// @Summary List tuitions
// @Tags Tuitions
// @Produce json
// @Param status query string false "pending, active or assigned"
// @Param subject query string false "Subject"
// @Param location query string false "Location"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /tuitions [get]
func (h *TuitionHandler) List(c *gin.Context) {
	var query dto.TuitionQuery
	if !bindQuery(c, &query) {
		return
	}
	tuitions, pagination, err := h.tuitions.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tuitions, pagination)
}

// Mine godoc
// @Summary List my tuition requests
// @Tags Tuitions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tuitions/mine [get]
func (h *TuitionHandler) Mine(c *gin.Context) {
	var query dto.TuitionQuery
	if !bindQuery(c, &query) {
		return
	}
	tuitions, pagination, err := h.tuitions.ListMine(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tuitions, pagination)
}

// Get godoc
// @Summary Get a tuition
// @Tags Tuitions
// @Produce json
// @Param id path string true "Tuition ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tuitions/{id} [get]
func (h *TuitionHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "tuition not found")
	if !ok {
		return
	}
	tuition, err := h.tuitions.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tuition, nil)
}

// Update godoc
// @Summary Edit my tuition
// @Tags Tuitions
// @Accept json
// @Produce json
// @Param id path string true "Tuition ID"
// @Param payload body dto.UpdateTuitionRequest true "Patch"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tuitions/{id} [patch]
func (h *TuitionHandler) Update(c *gin.Context) {
	var req dto.UpdateTuitionRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := pathID(c, "tuition not found")
	if !ok {
		return
	}
	if err := h.tuitions.Update(c.Request.Context(), id, req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "tuition updated")
}

// UpdateStatus godoc
// @Summary Publish a pending tuition
// @Tags Tuitions
// @Accept json
// @Produce json
// @Param id path string true "Tuition ID"
// @Param payload body dto.UpdateTuitionStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tuitions/{id}/status [patch]
func (h *TuitionHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateTuitionStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := pathID(c, "tuition not found")
	if !ok {
		return
	}
	if err := h.tuitions.UpdateStatus(c.Request.Context(), id, req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "tuition status updated")
}

// Delete godoc
// @Summary Delete a tuition
// @Tags Tuitions
// @Produce json
// @Param id path string true "Tuition ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /tuitions/{id} [delete]
func (h *TuitionHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "tuition not found")
	if !ok {
		return
	}
	if err := h.tuitions.Delete(c.Request.Context(), id, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "tuition deleted")
}

// Applications godoc
// @Summary List applications received by a tuition
// @Tags Tuitions
// @Produce json
// @Param id path string true "Tuition ID"
// @Success 200 {object} response.Envelope
// @Router /tuitions/{id}/applications [get]
func (h *TuitionHandler) Applications(c *gin.Context) {
	id, ok := pathID(c, "tuition not found")
	if !ok {
		return
	}
	apps, err := h.tuitions.Applications(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}
