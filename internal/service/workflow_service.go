package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
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

type workflowApplicationStore interface {
	Create(ctx context.Context, app *models.Application) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	HasPending(ctx context.Context, tuitionID, tutorEmail string) (bool, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, error)
	Update(ctx context.Context, id string, patch models.ApplicationPatch) error
	Delete(ctx context.Context, id string) error
}

type workflowTuitionReader interface {
	FindByID(ctx context.Context, id string) (*models.Tuition, error)
}

type paymentLookup interface {
	FindByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error)
}

type workflowTxRunner interface {
	RunInTx(ctx context.Context, fn func(repository.WorkflowTx) error) error
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// WorkflowConfig carries the payment settings the workflow needs.
type WorkflowConfig struct {
	Currency  string
	ServerKey string
}

// WorkflowService owns every application and tuition assignment transition and payment
// settlement. Multi-row changes run in one database transaction that locks the tuition row
// before the application row.
type WorkflowService struct {
	applications workflowApplicationStore
	tuitions     workflowTuitionReader
	payments     paymentLookup
	tx           workflowTxRunner
	gateway      payment.Gateway
	publisher    events.Publisher
	metrics      *MetricsService
	tracer       trace.Tracer
	queue        jobEnqueuer
	validator    *validator.Validate
	logger       *zap.Logger
	config       WorkflowConfig
}

// WorkflowServiceOption customises the workflow service.
type WorkflowServiceOption func(*WorkflowService)

// WithPublisher sets the domain event publisher.
func WithPublisher(p events.Publisher) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithMetrics records workflow outcomes.
func WithMetrics(m *MetricsService) WorkflowServiceOption {
	return func(s *WorkflowService) {
		s.metrics = m
	}
}

// WithTracer overrides the tracer used for workflow spans.
func WithTracer(t trace.Tracer) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithValidator overrides the payload validator.
func WithValidator(v *validator.Validate) WorkflowServiceOption {
	return func(s *WorkflowService) {
		if v != nil {
			s.validator = v
		}
	}
}

// NewWorkflowService wires the workflow engine.
func NewWorkflowService(
	applications workflowApplicationStore,
	tuitions workflowTuitionReader,
	payments paymentLookup,
	tx workflowTxRunner,
	gateway payment.Gateway,
	cfg WorkflowConfig,
	logger *zap.Logger,
	opts ...WorkflowServiceOption,
) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &WorkflowService{
		applications: applications,
		tuitions:     tuitions,
		payments:     payments,
		tx:           tx,
		gateway:      gateway,
		publisher:    events.Nop{},
		tracer:       otel.Tracer("github.com/noah-isme/tutorhub-api/internal/service"),
		validator:    validator.New(),
		logger:       logger,
		config:       cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// UseSettlementQueue routes webhook settlements through q instead of settling inline.
func (s *WorkflowService) UseSettlementQueue(q jobEnqueuer) {
	s.queue = q
}

// SubmitApplication records a pending application from a tutor.
func (s *WorkflowService) SubmitApplication(ctx context.Context, req dto.SubmitApplicationRequest, actor *models.JWTClaims) (*models.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validate(s.validator, req, "invalid application payload"); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.Owns(req.TutorEmail) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "tutors can only apply for themselves")
	}

	tuition, err := s.tuitions.FindByID(ctx, req.TuitionID)
	if err != nil {
		return nil, storeError(err, "tuition not found", "failed to load tuition")
	}
	if tuition.Status == models.TuitionStatusAssigned {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tuition is already assigned")
	}
	tutorEmail := models.NormalizeEmail(req.TutorEmail)
	pending, err := s.applications.HasPending(ctx, tuition.ID, tutorEmail)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check existing applications")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "tutor already has a pending application for this tuition")
	}

	app := &models.Application{
		TuitionID:      tuition.ID,
		TutorEmail:     tutorEmail,
		TutorName:      strings.TrimSpace(req.TutorName),
		Qualifications: req.Qualifications,
		Experience:     req.Experience,
		ExpectedSalary: req.ExpectedSalary,
	}
	if err := s.applications.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "tutor already has a pending application for this tuition")
		}
		return nil, appErrors.Internal(err, "failed to submit application")
	}
	s.logger.Info("application submitted", zap.String("application_id", app.ID), zap.String("tuition_id", tuition.ID))
	return app, nil
}

// ListMine returns the calling tutor's applications.
func (s *WorkflowService) ListMine(ctx context.Context, actor *models.JWTClaims) ([]models.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	apps, err := s.applications.List(ctx, models.ApplicationFilter{TutorEmail: actor.Email})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list applications")
	}
	return apps, nil
}

// ApproveApplication approves a pending application, assigns its tuition and rejects the
// remaining pending applications in one transaction. Approving a non-pending application is
// reported as already processed without writing anything.
func (s *WorkflowService) ApproveApplication(ctx context.Context, id string, actor *models.JWTClaims) (result *models.ApprovalResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "workflow.approve", trace.WithAttributes(attribute.String("application.id", id)))
	defer func() {
		s.observe("approve", result, err, start)
		telemetry.EndSpan(span, err)
	}()

	app, tuition, err := s.loadForDecision(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if app.Status != models.ApplicationStatusPending {
		return alreadyProcessed(app), nil
	}

	result = &models.ApprovalResult{ApplicationID: app.ID, TuitionID: tuition.ID}
	err = s.tx.RunInTx(ctx, func(tx repository.WorkflowTx) error {
		lockedTuition, err := tx.LockTuition(ctx, tuition.ID)
		if err != nil {
			return storeError(err, "tuition not found", "failed to lock tuition")
		}
		locked, err := tx.LockApplication(ctx, app.ID)
		if err != nil {
			return storeError(err, "application not found", "failed to lock application")
		}
		if locked.Status != models.ApplicationStatusPending {
			result = alreadyProcessed(locked)
			return nil
		}
		if lockedTuition.Status == models.TuitionStatusAssigned {
			return appErrors.Clone(appErrors.ErrConflict, "tuition is already assigned to another tutor")
		}
		rejected, err := approveWithinTx(ctx, tx, lockedTuition.ID, locked.ID)
		if err != nil {
			return err
		}
		result.Status = models.ApplicationStatusApproved
		result.RejectedSiblings = rejected
		result.Message = "application approved"
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("workflow.already_processed", result.AlreadyProcessed))
	if !result.AlreadyProcessed {
		s.logger.Info("application approved",
			zap.String("application_id", result.ApplicationID),
			zap.String("tuition_id", result.TuitionID),
			zap.Int64("rejected_siblings", result.RejectedSiblings),
			zap.String("trace_id", telemetry.TraceIDFromContext(ctx)),
		)
		s.publish(ctx, events.ApplicationApproved, result)
	}
	return result, nil
}

// RejectApplication rejects a pending application. Rejecting a rejected application is a no-op;
// approved applications cannot be rejected.
func (s *WorkflowService) RejectApplication(ctx context.Context, id string, actor *models.JWTClaims) (result *models.ApprovalResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "workflow.reject", trace.WithAttributes(attribute.String("application.id", id)))
	defer func() {
		s.observe("reject", result, err, start)
		telemetry.EndSpan(span, err)
	}()

	app, tuition, err := s.loadForDecision(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	switch app.Status {
	case models.ApplicationStatusApproved:
		return nil, errImmutable()
	case models.ApplicationStatusRejected:
		return alreadyProcessed(app), nil
	}

	result = &models.ApprovalResult{ApplicationID: app.ID, TuitionID: tuition.ID}
	err = s.tx.RunInTx(ctx, func(tx repository.WorkflowTx) error {
		if _, err := tx.LockTuition(ctx, tuition.ID); err != nil {
			return storeError(err, "tuition not found", "failed to lock tuition")
		}
		locked, err := tx.LockApplication(ctx, app.ID)
		if err != nil {
			return storeError(err, "application not found", "failed to lock application")
		}
		switch locked.Status {
		case models.ApplicationStatusApproved:
			return errImmutable()
		case models.ApplicationStatusRejected:
			result = alreadyProcessed(locked)
			return nil
		}
		if err := transition(ctx, tx, locked, models.ApplicationStatusRejected); err != nil {
			return err
		}
		result.Status = models.ApplicationStatusRejected
		result.Message = "application rejected"
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.AlreadyProcessed {
		s.logger.Info("application rejected", zap.String("application_id", result.ApplicationID))
		s.publish(ctx, events.ApplicationRejected, result)
	}
	return result, nil
}

// UpdateApplication patches a pending or rejected application owned by the caller.
func (s *WorkflowService) UpdateApplication(ctx context.Context, id string, req dto.UpdateApplicationRequest, actor *models.JWTClaims) error {
	if err := validate(s.validator, req, "invalid application payload"); err != nil {
		return err
	}
	patch := models.ApplicationPatch{
		TutorName:      req.TutorName,
		Qualifications: req.Qualifications,
		Experience:     req.Experience,
		ExpectedSalary: req.ExpectedSalary,
	}
	if patch.Empty() {
		return appErrors.Clone(appErrors.ErrValidation, "no fields to update")
	}
	if _, err := s.loadMutable(ctx, id, actor); err != nil {
		return err
	}
	if err := s.applications.Update(ctx, id, patch); err != nil {
		return s.guardFailure(ctx, id, err, "failed to update application")
	}
	return nil
}

// DeleteApplication removes an application that has not been approved.
func (s *WorkflowService) DeleteApplication(ctx context.Context, id string, actor *models.JWTClaims) error {
	if _, err := s.loadMutable(ctx, id, actor); err != nil {
		return err
	}
	if err := s.applications.Delete(ctx, id); err != nil {
		return s.guardFailure(ctx, id, err, "failed to delete application")
	}
	s.logger.Info("application deleted", zap.String("application_id", id))
	return nil
}

// loadForDecision loads an application and its tuition and checks the caller may decide on it.
func (s *WorkflowService) loadForDecision(ctx context.Context, id string, actor *models.JWTClaims) (*models.Application, *models.Tuition, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	app, err := s.applications.FindByID(ctx, id)
	if err != nil {
		return nil, nil, storeError(err, "application not found", "failed to load application")
	}
	tuition, err := s.tuitions.FindByID(ctx, app.TuitionID)
	if err != nil {
		return nil, nil, storeError(err, "tuition not found", "failed to load tuition")
	}
	if !actor.IsAdmin() && !actor.Owns(tuition.StudentEmail) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the tuition owner can decide on applications")
	}
	return app, tuition, nil
}

// loadMutable loads an application the caller may edit or delete.
func (s *WorkflowService) loadMutable(ctx context.Context, id string, actor *models.JWTClaims) (*models.Application, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	app, err := s.applications.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "application not found", "failed to load application")
	}
	if !actor.IsAdmin() && !actor.Owns(app.TutorEmail) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the applicant can modify this application")
	}
	if app.Status == models.ApplicationStatusApproved {
		return nil, errImmutable()
	}
	return app, nil
}

// guardFailure explains a guarded write that matched no row: the application either vanished
// or was approved in the meantime.
func (s *WorkflowService) guardFailure(ctx context.Context, id string, err error, message string) error {
	if !errors.Is(err, repository.ErrStaleState) {
		return appErrors.Internal(err, message)
	}
	if _, findErr := s.applications.FindByID(ctx, id); errors.Is(findErr, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return errImmutable()
}

// approveWithinTx runs the approval sequence on rows already locked by the caller.
func approveWithinTx(ctx context.Context, tx repository.WorkflowTx, tuitionID, applicationID string) (int64, error) {
	if err := tx.AssignTuition(ctx, tuitionID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return 0, appErrors.Clone(appErrors.ErrConflict, "tuition is already assigned to another tutor")
		}
		return 0, appErrors.Internal(err, "failed to assign tuition")
	}
	if err := transition(ctx, tx, &models.Application{ID: applicationID, Status: models.ApplicationStatusPending}, models.ApplicationStatusApproved); err != nil {
		return 0, err
	}
	rejected, err := tx.RejectSiblings(ctx, tuitionID, applicationID)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to reject sibling applications")
	}
	return rejected, nil
}

// transition applies a status change allowed by the application lifecycle as a compare-and-swap.
func transition(ctx context.Context, tx repository.WorkflowTx, app *models.Application, next models.ApplicationStatus) error {
	if !app.Status.CanTransitionTo(next) {
		return appErrors.Clone(appErrors.ErrConflict, "application cannot move from "+string(app.Status)+" to "+string(next))
	}
	if err := tx.SetApplicationStatus(ctx, app.ID, app.Status, next); err != nil {
		if errors.Is(err, repository.ErrStaleState) || errors.Is(err, repository.ErrDuplicate) {
			return appErrors.Clone(appErrors.ErrConflict, "application changed concurrently")
		}
		return appErrors.Internal(err, "failed to update application status")
	}
	return nil
}

func alreadyProcessed(app *models.Application) *models.ApprovalResult {
	return &models.ApprovalResult{
		ApplicationID:    app.ID,
		TuitionID:        app.TuitionID,
		Status:           app.Status,
		AlreadyProcessed: true,
		Message:          "application already processed",
	}
}

func errImmutable() error {
	return appErrors.Clone(appErrors.ErrForbidden, "approved applications cannot be modified")
}

func (s *WorkflowService) publish(ctx context.Context, event string, data interface{}) {
	if err := s.publisher.Publish(ctx, event, data); err != nil {
		s.logger.Warn("publish event failed", zap.String("event", event), zap.Error(err))
	}
}

func (s *WorkflowService) observe(operation string, result *models.ApprovalResult, err error, start time.Time) {
	outcome := outcomeOf(err)
	if err == nil && result != nil {
		switch {
		case result.AlreadyProcessed:
			outcome = OutcomeAlreadyProcessed
		case result.Status == models.ApplicationStatusApproved:
			outcome = OutcomeApproved
		default:
			outcome = OutcomeRejected
		}
	}
	s.metrics.ObserveWorkflow(operation, outcome, time.Since(start))
}

func outcomeOf(err error) string {
	if err != nil && errors.Is(err, appErrors.ErrConflict) {
		return OutcomeConflict
	}
	return OutcomeFailed
}
