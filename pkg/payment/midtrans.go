package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/pkg/config"
)

type snapAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type statusAPI interface {
	CheckTransaction(orderID string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// MidtransGateway implements Gateway on top of Midtrans Snap checkout and the Core API status call.
type MidtransGateway struct {
	snap      snapAPI
	status    statusAPI
	store     SessionStore
	currency  string
	finishURL string
	prefix    string
	logger    *zap.Logger
	now       func() time.Time
}

// NewMidtransGateway builds the adapter from configuration.
func NewMidtransGateway(cfg config.PaymentConfig, store SessionStore, logger *zap.Logger) *MidtransGateway {
	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}
	var snapClient snap.Client
	snapClient.New(cfg.ServerKey, env)
	var coreClient coreapi.Client
	coreClient.New(cfg.ServerKey, env)

	return newMidtransGateway(&snapClient, &coreClient, store, cfg, logger)
}

func newMidtransGateway(s snapAPI, st statusAPI, store SessionStore, cfg config.PaymentConfig, logger *zap.Logger) *MidtransGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "IDR"
	}
	prefix := strings.TrimSpace(cfg.SessionPrefix)
	if prefix == "" {
		prefix = "TUI"
	}
	return &MidtransGateway{
		snap:      s,
		status:    st,
		store:     store,
		currency:  currency,
		finishURL: cfg.FinishURL,
		prefix:    prefix,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateSession opens a Snap checkout and records its metadata under the generated order id.
func (g *MidtransGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gross := int64(math.Round(req.Amount))
	if gross <= 0 {
		return nil, fmt.Errorf("invalid checkout amount %.2f", req.Amount)
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = g.currency
	}

	reference := g.prefix + "-" + uuid.NewString()
	itemName := req.ItemName
	if itemName == "" {
		itemName = "Tuition payment"
	}

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  reference,
			GrossAmt: gross,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       truncate(req.Metadata.ApplicationID, 50),
				Name:     truncate(itemName, 50),
				Price:    gross,
				Qty:      1,
				Category: "tuition",
			},
		},
		CustomField1: truncate(req.Metadata.ApplicationID, 255),
		CustomField2: truncate(req.Metadata.TuitionID, 255),
	}
	if finish := g.finishLink(reference); finish != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: finish}
	}

	resp, merr := g.snap.CreateTransaction(snapReq)
	if merr != nil {
		return nil, fmt.Errorf("create midtrans transaction: %s", merr.Message)
	}
	if resp == nil || resp.RedirectURL == "" {
		return nil, errors.New("create midtrans transaction: empty redirect url")
	}

	record := &SessionRecord{
		Reference:   reference,
		Amount:      req.Amount,
		Currency:    currency,
		RedirectURL: resp.RedirectURL,
		CreatedAt:   g.now().UTC(),
		Metadata:    req.Metadata,
	}
	if err := g.store.SaveSession(ctx, record); err != nil {
		return nil, fmt.Errorf("persist checkout session: %w", err)
	}

	g.logger.Info("checkout session created",
		zap.String("reference", reference),
		zap.String("application_id", req.Metadata.ApplicationID),
		zap.Int64("gross_amount", gross),
	)
	return &Session{Reference: reference, CheckoutURL: resp.RedirectURL, Token: resp.Token}, nil
}

// RetrieveSession asks Midtrans for the transaction behind reference. A transaction Midtrans has
// not seen yet is reported as open.
func (g *MidtransGateway) RetrieveSession(ctx context.Context, reference string) (*SessionDetails, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrSessionNotFound
	}
	record, err := g.store.FindSession(ctx, reference)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	details := &SessionDetails{
		Reference:     reference,
		PaymentStatus: StatusOpen,
		AmountTotal:   record.Amount,
		Currency:      record.Currency,
		CustomerEmail: record.StudentEmail,
		Metadata:      record.Metadata,
	}

	resp, merr := g.status.CheckTransaction(reference)
	if merr != nil {
		if merr.StatusCode == http.StatusNotFound {
			return details, nil
		}
		return nil, fmt.Errorf("check midtrans transaction: %s", merr.Message)
	}
	if resp == nil || resp.StatusCode == "404" {
		return details, nil
	}

	details.PaymentStatus = MapTransactionStatus(resp.TransactionStatus, resp.FraudStatus)
	details.PaymentIntentID = resp.TransactionID
	if amount, err := strconv.ParseFloat(resp.GrossAmount, 64); err == nil {
		details.AmountTotal = amount
	}
	if resp.Currency != "" {
		details.Currency = strings.ToUpper(resp.Currency)
	}
	return details, nil
}

// MapTransactionStatus folds Midtrans transaction and fraud states into a Status.
func MapTransactionStatus(transactionStatus, fraudStatus string) Status {
	switch strings.ToLower(transactionStatus) {
	case "settlement":
		return StatusCompleted
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "", "accept":
			return StatusCompleted
		case "challenge":
			return StatusOpen
		default:
			return StatusFailed
		}
	case "pending", "authorize":
		return StatusOpen
	default:
		return StatusFailed
	}
}

func (g *MidtransGateway) finishLink(reference string) string {
	if g.finishURL == "" {
		return ""
	}
	u, err := url.Parse(g.finishURL)
	if err != nil {
		return g.finishURL
	}
	q := u.Query()
	q.Set("session_id", reference)
	u.RawQuery = q.Encode()
	return u.String()
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
