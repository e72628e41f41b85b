package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/events"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/payment"
	"github.com/noah-isme/tutorhub-api/pkg/telemetry"
)

// SettlementJobType identifies queued webhook settlements.
const SettlementJobType = "payment.settle"

// errNotYetCompleted makes the settlement queue retry a session the provider still reports open.
var errNotYetCompleted = errors.New("checkout session not completed yet")

// CreateCheckoutSession opens a hosted checkout for a pending application of the caller's tuition.
func (s *WorkflowService) CreateCheckoutSession(ctx context.Context, req dto.CreateCheckoutSessionRequest, actor *models.JWTClaims) (*models.CheckoutResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req, "invalid checkout payload"); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "workflow.checkout", trace.WithAttributes(
		attribute.String("application.id", req.ApplicationID),
		attribute.String("tuition.id", req.TuitionID),
	))
	var err error
	defer func() { telemetry.EndSpan(span, err) }()

	tuition, err := s.tuitions.FindByID(ctx, req.TuitionID)
	if err != nil {
		err = storeError(err, "tuition not found", "failed to load tuition")
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(tuition.StudentEmail) {
		err = appErrors.Clone(appErrors.ErrForbidden, "only the tuition owner can pay for it")
		return nil, err
	}
	app, err := s.applications.FindByID(ctx, req.ApplicationID)
	if err != nil {
		err = storeError(err, "application not found", "failed to load application")
		return nil, err
	}
	if app.TuitionID != tuition.ID {
		err = appErrors.Clone(appErrors.ErrValidation, "application does not belong to tuition")
		return nil, err
	}
	if app.Status != models.ApplicationStatusPending || tuition.Status == models.TuitionStatusAssigned {
		err = appErrors.Clone(appErrors.ErrConflict, "application is no longer open for payment")
		return nil, err
	}

	tutorName := strings.TrimSpace(req.TutorName)
	if tutorName == "" {
		tutorName = app.TutorName
	}
	// The payer is the tuition owner; an admin opening checkout on their behalf has no name to offer.
	var customerName string
	if actor.Owns(tuition.StudentEmail) {
		customerName = actor.Name
	}
	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		Amount:        req.Amount,
		Currency:      s.config.Currency,
		CustomerEmail: tuition.StudentEmail,
		CustomerName:  customerName,
		ItemName:      tuitionName(tuition),
		Metadata: payment.Metadata{
			ApplicationID: app.ID,
			TuitionID:     tuition.ID,
			StudentEmail:  tuition.StudentEmail,
			TutorEmail:    app.TutorEmail,
			TutorName:     tutorName,
			TuitionName:   tuitionName(tuition),
		},
	})
	if err != nil {
		err = appErrors.Upstream(err, "failed to open checkout session")
		return nil, err
	}
	s.logger.Info("checkout session opened",
		zap.String("reference", session.Reference),
		zap.String("application_id", app.ID),
	)
	return &models.CheckoutResult{URL: session.CheckoutURL, SessionID: session.Reference}, nil
}

// SettlePayment records the payment of a completed checkout session and approves the paid
// application in the same transaction. It is idempotent per provider transaction id; a session
// that has not completed yields Success=false without an error.
func (s *WorkflowService) SettlePayment(ctx context.Context, reference string) (result *models.SettlementResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "workflow.settle", trace.WithAttributes(attribute.String("checkout.reference", reference)))
	defer func() {
		outcome := outcomeOf(err)
		if err == nil {
			switch {
			case !result.Success:
				outcome = OutcomeNotCompleted
			case result.AlreadyRecorded:
				outcome = OutcomeAlreadyRecorded
			default:
				outcome = OutcomeSettled
			}
		}
		s.metrics.ObserveWorkflow("settle", outcome, time.Since(start))
		telemetry.EndSpan(span, err)
	}()

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "session_id is required")
	}
	details, err := s.gateway.RetrieveSession(ctx, reference)
	if err != nil {
		if errors.Is(err, payment.ErrSessionNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "checkout session not found")
		}
		return nil, appErrors.Upstream(err, "failed to retrieve checkout session")
	}
	if !details.Completed() {
		return &models.SettlementResult{Success: false, Message: "payment not completed"}, nil
	}

	transactionID := details.PaymentIntentID
	if transactionID == "" {
		transactionID = details.Reference
	}
	span.SetAttributes(attribute.String("payment.transaction_id", transactionID))

	existing, err := s.payments.FindByTransactionID(ctx, transactionID)
	switch {
	case err == nil:
		return recordedResult(existing), nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, appErrors.Internal(err, "failed to look up payment")
	}

	meta := details.Metadata
	var approved *models.ApprovalResult
	err = s.tx.RunInTx(ctx, func(tx repository.WorkflowTx) error {
		tuition, err := tx.LockTuition(ctx, meta.TuitionID)
		if err != nil {
			return storeError(err, "tuition not found", "failed to lock tuition")
		}
		app, err := tx.LockApplication(ctx, meta.ApplicationID)
		if err != nil {
			return storeError(err, "application not found", "failed to lock application")
		}
		if app.TuitionID != tuition.ID {
			return appErrors.Clone(appErrors.ErrConflict, "checkout session does not match its application")
		}
		switch {
		case app.Status == models.ApplicationStatusRejected:
			return appErrors.Clone(appErrors.ErrConflict, "paid application has been rejected")
		case app.Status == models.ApplicationStatusPending && tuition.Status == models.TuitionStatusAssigned:
			return appErrors.Clone(appErrors.ErrConflict, "tuition is already assigned to another tutor")
		}

		record := &models.Payment{
			TransactionID: transactionID,
			ApplicationID: app.ID,
			TuitionID:     tuition.ID,
			StudentEmail:  tuition.StudentEmail,
			TutorEmail:    app.TutorEmail,
			TutorName:     firstNonEmpty(meta.TutorName, app.TutorName),
			TuitionName:   firstNonEmpty(meta.TuitionName, tuitionName(tuition)),
			Amount:        details.AmountTotal,
			Currency:      details.Currency,
			PaymentStatus: string(details.PaymentStatus),
		}
		inserted, err := tx.InsertPayment(ctx, record)
		if err != nil {
			return appErrors.Internal(err, "failed to record payment")
		}
		if !inserted {
			stored, err := tx.FindPaymentByTransactionID(ctx, transactionID)
			if err != nil {
				return appErrors.Internal(err, "failed to load recorded payment")
			}
			result = recordedResult(stored)
			return nil
		}

		result = &models.SettlementResult{
			Success:       true,
			Message:       "payment recorded",
			TransactionID: transactionID,
			TuitionName:   record.TuitionName,
			TutorName:     record.TutorName,
		}
		if app.Status == models.ApplicationStatusApproved {
			return nil
		}
		rejected, err := approveWithinTx(ctx, tx, tuition.ID, app.ID)
		if err != nil {
			return err
		}
		approved = &models.ApprovalResult{
			ApplicationID:    app.ID,
			TuitionID:        tuition.ID,
			Status:           models.ApplicationStatusApproved,
			RejectedSiblings: rejected,
			Message:          "application approved",
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			s.logger.Error("completed payment could not be settled; manual refund required",
				zap.String("reference", reference),
				zap.String("transaction_id", transactionID),
				zap.String("application_id", meta.ApplicationID),
				zap.Error(err),
			)
		}
		return nil, err
	}

	if !result.AlreadyRecorded {
		s.logger.Info("payment settled",
			zap.String("reference", reference),
			zap.String("transaction_id", transactionID),
			zap.String("trace_id", telemetry.TraceIDFromContext(ctx)),
		)
		s.publish(ctx, events.PaymentSettled, result)
	}
	if approved != nil {
		s.publish(ctx, events.ApplicationApproved, approved)
	}
	return result, nil
}

// HandleNotification verifies a provider webhook and schedules settlement of completed sessions.
func (s *WorkflowService) HandleNotification(ctx context.Context, n payment.Notification) error {
	if !payment.VerifyNotification(n, s.config.ServerKey) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "invalid notification signature")
	}
	if n.Status() != payment.StatusCompleted {
		s.logger.Info("payment notification ignored",
			zap.String("order_id", n.OrderID),
			zap.String("transaction_status", n.TransactionStatus),
		)
		return nil
	}
	if s.queue == nil {
		_, err := s.SettlePayment(ctx, n.OrderID)
		return err
	}
	err := s.queue.Enqueue(jobs.Job{Key: n.OrderID, Type: SettlementJobType, Payload: n.OrderID})
	if err != nil && !errors.Is(err, jobs.ErrDuplicate) {
		return appErrors.Internal(err, "failed to schedule settlement")
	}
	return nil
}

// ProcessSettlementJob is the settlement queue handler. Only transient failures are returned so
// the queue retries them; business rejections are logged and dropped.
func (s *WorkflowService) ProcessSettlementJob(ctx context.Context, job jobs.Job) error {
	reference, ok := job.Payload.(string)
	if !ok || reference == "" {
		s.logger.Error("settlement job without reference", zap.String("job_id", job.ID))
		return nil
	}
	result, err := s.SettlePayment(ctx, reference)
	if err != nil {
		appErr := appErrors.FromError(err)
		if appErr.Status >= http.StatusInternalServerError {
			return err
		}
		s.logger.Warn("settlement job dropped", zap.String("reference", reference), zap.Error(err))
		return nil
	}
	if !result.Success {
		return fmt.Errorf("settle %s: %w", reference, errNotYetCompleted)
	}
	return nil
}

func recordedResult(p *models.Payment) *models.SettlementResult {
	return &models.SettlementResult{
		Success:         true,
		Message:         "payment already recorded",
		TransactionID:   p.TransactionID,
		TuitionName:     p.TuitionName,
		TutorName:       p.TutorName,
		AlreadyRecorded: true,
	}
}

func tuitionName(t *models.Tuition) string {
	if t.ClassLevel == "" {
		return t.Subject
	}
	return t.Subject + " (" + t.ClassLevel + ")"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
