package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type applicationWorkflow interface {
	SubmitApplication(ctx context.Context, req dto.SubmitApplicationRequest, actor *models.JWTClaims) (*models.Application, error)
	ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Application, error)
	ApproveApplication(ctx context.Context, id string, actor *models.JWTClaims) (*models.ApprovalResult, error)
	RejectApplication(ctx context.Context, id string, actor *models.JWTClaims) (*models.ApprovalResult, error)
	UpdateApplication(ctx context.Context, id string, req dto.UpdateApplicationRequest, actor *models.JWTClaims) error
	DeleteApplication(ctx context.Context, id string, actor *models.JWTClaims) error
}

// ApplicationHandler exposes tutor applications and the approval decisions on them.
type ApplicationHandler struct {
	workflow applicationWorkflow
}

// NewApplicationHandler constructs an ApplicationHandler.
func NewApplicationHandler(workflow applicationWorkflow) *ApplicationHandler {
	return &ApplicationHandler{workflow: workflow}
}

// Submit godoc
// @Summary Apply to a tuition
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body dto.SubmitApplicationRequest true "Application"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req dto.SubmitApplicationRequest
	if !bindJSON(c, &req) {
		return
	}
	app, err := h.workflow.SubmitApplication(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.InsertedResponse{InsertedID: app.ID})
}

// Mine godoc
// @Summary List my applications
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applications/mine [get]
func (h *ApplicationHandler) Mine(c *gin.Context) {
	apps, err := h.workflow.ListMine(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Approve godoc
// @Summary Approve an application
// @Description Assigns the tuition and rejects every other pending application for it.
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/approve/{id} [patch]
func (h *ApplicationHandler) Approve(c *gin.Context) {
	id, ok := pathID(c, "application not found")
	if !ok {
		return
	}
	result, err := h.workflow.ApproveApplication(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /applications/reject/{id} [patch]
func (h *ApplicationHandler) Reject(c *gin.Context) {
	id, ok := pathID(c, "application not found")
	if !ok {
		return
	}
	result, err := h.workflow.RejectApplication(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Edit a pending application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.UpdateApplicationRequest true "Patch"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /applications/{id} [patch]
func (h *ApplicationHandler) Update(c *gin.Context) {
	var req dto.UpdateApplicationRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := pathID(c, "application not found")
	if !ok {
		return
	}
	if err := h.workflow.UpdateApplication(c.Request.Context(), id, req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "application updated")
}

// Delete godoc
// @Summary Withdraw an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) Delete(c *gin.Context) {
	id, ok := pathID(c, "application not found")
	if !ok {
		return
	}
	if err := h.workflow.DeleteApplication(c.Request.Context(), id, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "application deleted")
}
