package service

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
)

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	Each(ctx context.Context, filter models.PaymentFilter, fn func(models.Payment) error) error
}

var paymentExportHeaders = []string{
	"transactionId", "paidAt", "tuitionName", "tutorName", "tutorEmail", "studentEmail", "amount", "currency", "paymentStatus",
}

// PaymentService exposes recorded payments to the parties involved.
type PaymentService struct {
	repo     paymentRepository
	csv      *export.CSVExporter
	receipts *export.ReceiptRenderer
	logger   *zap.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(repo paymentRepository, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, csv: export.NewCSVExporter(), receipts: export.NewReceiptRenderer(), logger: logger}
}

// List returns payments visible to the caller: admins see everything, students what they paid
// and tutors what they were paid.
func (s *PaymentService) List(ctx context.Context, query dto.PaymentQuery, actor *models.JWTClaims) ([]models.Payment, *models.Pagination, error) {
	filter, err := scopeFor(actor)
	if err != nil {
		return nil, nil, err
	}
	filter.Page, filter.PageSize = query.Page, query.PageSize
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list payments")
	}
	return payments, newPagination(filter.Page, filter.PageSize, total), nil
}

// ExportCSV streams every payment as CSV to w.
func (s *PaymentService) ExportCSV(ctx context.Context, w io.Writer) (int, error) {
	stream, err := s.csv.Stream(w, paymentExportHeaders)
	if err != nil {
		return 0, appErrors.Internal(err, "failed to start export")
	}
	count := 0
	err = s.repo.Each(ctx, models.PaymentFilter{}, func(p models.Payment) error {
		count++
		return stream.WriteRow(map[string]string{
			"transactionId": p.TransactionID,
			"paidAt":        p.PaidAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			"tuitionName":   p.TuitionName,
			"tutorName":     p.TutorName,
			"tutorEmail":    p.TutorEmail,
			"studentEmail":  p.StudentEmail,
			"amount":        strconv.FormatFloat(p.Amount, 'f', 2, 64),
			"currency":      p.Currency,
			"paymentStatus": p.PaymentStatus,
		})
	})
	if err != nil {
		return count, appErrors.Internal(err, "failed to export payments")
	}
	if err := stream.Close(); err != nil {
		return count, appErrors.Internal(err, "failed to export payments")
	}
	s.logger.Info("payments exported", zap.Int("rows", count))
	return count, nil
}

// Receipt renders the PDF receipt of a payment for one of its parties or an admin.
func (s *PaymentService) Receipt(ctx context.Context, id string, actor *models.JWTClaims) ([]byte, string, error) {
	if err := requireActor(actor); err != nil {
		return nil, "", err
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, "", storeError(err, "payment not found", "failed to load payment")
	}
	if !actor.IsAdmin() && !actor.Owns(p.StudentEmail) && !actor.Owns(p.TutorEmail) {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}

	body, err := s.receipts.Render(export.Receipt{
		Title:    "Tuition payment receipt",
		Number:   p.TransactionID,
		IssuedAt: p.PaidAt,
		Lines: []export.ReceiptLine{
			{Label: "Tuition", Value: p.TuitionName},
			{Label: "Tutor", Value: p.TutorName},
			{Label: "Tutor email", Value: p.TutorEmail},
			{Label: "Paid by", Value: p.StudentEmail},
			{Label: "Status", Value: p.PaymentStatus},
		},
		Total:  fmt.Sprintf("%s %.2f", p.Currency, p.Amount),
		Footer: "Payment processed through the hosted checkout provider.",
	})
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to render receipt")
	}
	return body, "receipt-" + p.TransactionID + ".pdf", nil
}

func scopeFor(actor *models.JWTClaims) (models.PaymentFilter, error) {
	if err := requireActor(actor); err != nil {
		return models.PaymentFilter{}, err
	}
	switch actor.Role {
	case models.RoleAdmin:
		return models.PaymentFilter{}, nil
	case models.RoleStudent:
		return models.PaymentFilter{StudentEmail: actor.Email}, nil
	case models.RoleTutor:
		return models.PaymentFilter{TutorEmail: actor.Email}, nil
	default:
		return models.PaymentFilter{}, appErrors.Clone(appErrors.ErrForbidden, "role cannot view payments")
	}
}
