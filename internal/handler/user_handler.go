package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type userAccounts interface {
	Register(ctx context.Context, req dto.RegisterUserRequest, actor *models.JWTClaims) (*models.User, error)
	Me(ctx context.Context, actor *models.JWTClaims) (*models.User, error)
	List(ctx context.Context, query dto.UserQuery) ([]models.User, *models.Pagination, error)
	UpdateRole(ctx context.Context, id string, req dto.UpdateUserRoleRequest, actor *models.JWTClaims) error
	UpdateStatus(ctx context.Context, id string, req dto.UpdateUserStatusRequest, actor *models.JWTClaims) error
}

// UserHandler handles account endpoints.
type UserHandler struct {
	users userAccounts
}

// NewUserHandler creates a new user handler.
func NewUserHandler(users userAccounts) *UserHandler {
	return &UserHandler{users: users}
}

// Register godoc
// @Summary Register or refresh my account
// @Description Upserts the caller's user row. Only student and tutor can be self-assigned.
// @Tags Users
// @Accept json
// @Produce json
// @Param payload body dto.RegisterUserRequest true "Account"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /users [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req dto.RegisterUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.Register(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Me godoc
// @Summary Get my account
// @Tags Users
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.users.Me(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param status query string false "Status filter"
// @Param search query string false "Search term"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /users [get]
func (h *UserHandler) List(c *gin.Context) {
	var query dto.UserQuery
	if !bindQuery(c, &query) {
		return
	}
	users, pagination, err := h.users.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// UpdateRole godoc
// @Summary Change a user's role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateUserRoleRequest true "Role"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/role [patch]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req dto.UpdateUserRoleRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := pathID(c, "user not found")
	if !ok {
		return
	}
	if err := h.users.UpdateRole(c.Request.Context(), id, req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "role updated")
}

// UpdateStatus godoc
// @Summary Block or unblock a user
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body dto.UpdateUserStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/status [patch]
func (h *UserHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateUserStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := pathID(c, "user not found")
	if !ok {
		return
	}
	if err := h.users.UpdateStatus(c.Request.Context(), id, req, claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "status updated")
}
