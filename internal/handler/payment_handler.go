package handler

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/payment"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type checkoutFlow interface {
	CreateCheckoutSession(ctx context.Context, req dto.CreateCheckoutSessionRequest, actor *models.JWTClaims) (*models.CheckoutResult, error)
	SettlePayment(ctx context.Context, reference string) (*models.SettlementResult, error)
	HandleNotification(ctx context.Context, n payment.Notification) error
}

type paymentReader interface {
	List(ctx context.Context, query dto.PaymentQuery, actor *models.JWTClaims) ([]models.Payment, *models.Pagination, error)
	ExportCSV(ctx context.Context, w io.Writer) (int, error)
	Receipt(ctx context.Context, id string, actor *models.JWTClaims) ([]byte, string, error)
}

// PaymentHandler serves checkout, settlement and payment history endpoints.
type PaymentHandler struct {
	checkout checkoutFlow
	payments paymentReader
	logger   *zap.Logger
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(checkout checkoutFlow, payments paymentReader, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{checkout: checkout, payments: payments, logger: logger}
}

// CreateCheckoutSession godoc
// @Summary Open a hosted checkout for an application
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body dto.CreateCheckoutSessionRequest true "Checkout"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /create-tutor-checkout-session [post]
func (h *PaymentHandler) CreateCheckoutSession(c *gin.Context) {
	var req dto.CreateCheckoutSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.checkout.CreateCheckoutSession(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Success godoc
// @Summary Settle a completed checkout
// @Description Idempotent per transaction: repeated calls report the recorded payment.
// @Tags Payments
// @Produce json
// @Param session_id query string true "Checkout session reference"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /tutor-payment-success [patch]
func (h *PaymentHandler) Success(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	if sessionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "session_id is required"))
		return
	}
	result, err := h.checkout.SettlePayment(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Notification godoc
// @Summary Gateway payment notification
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /payments/notifications [post]
func (h *PaymentHandler) Notification(c *gin.Context) {
	var n payment.Notification
	if !bindJSON(c, &n) {
		return
	}
	if err := h.checkout.HandleNotification(c.Request.Context(), n); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "notification accepted")
}

// List godoc
// @Summary List payments visible to the caller
// @Tags Payments
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var query dto.PaymentQuery
	if !bindQuery(c, &query) {
		return
	}
	payments, pagination, err := h.payments.List(c.Request.Context(), query, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// Export godoc
// @Summary Export all payments as CSV
// @Tags Payments
// @Produce text/csv
// @Success 200 {file} file
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	filename := "payments-" + time.Now().UTC().Format("20060102-150405") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	rows, err := h.payments.ExportCSV(c.Request.Context(), c.Writer)
	if err != nil {
		// Headers are already on the wire; the truncated body is all the client will see.
		h.logger.Error("payment export aborted", zap.Int("rows", rows), zap.Error(err))
		_ = c.Error(err)
	}
}

// Receipt godoc
// @Summary Download a payment receipt
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	id, ok := pathID(c, "payment not found")
	if !ok {
		return
	}
	body, filename, err := h.payments.Receipt(c.Request.Context(), id, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, "application/pdf", body)
}
