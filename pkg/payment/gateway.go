// Package payment adapts the hosted checkout provider behind a small CreateSession /
// RetrieveSession capability used by the settlement workflow.
package payment

import (
	"context"
	"errors"
	"time"
)

// Status is the provider-agnostic outcome of a checkout session.
type Status string

const (
	// StatusCompleted means funds were captured and the session may be settled.
	StatusCompleted Status = "completed"
	// StatusOpen means the customer has not finished paying yet.
	StatusOpen Status = "open"
	// StatusFailed covers denied, cancelled, expired and refunded sessions.
	StatusFailed Status = "failed"
)

// ErrSessionNotFound is returned when a reference was never issued by this service.
var ErrSessionNotFound = errors.New("checkout session not found")

// Metadata links a checkout session back to the workflow entities it pays for.
type Metadata struct {
	ApplicationID string `db:"application_id" json:"applicationId"`
	TuitionID     string `db:"tuition_id" json:"tuitionId"`
	StudentEmail  string `db:"student_email" json:"studentEmail"`
	TutorEmail    string `db:"tutor_email" json:"tutorEmail"`
	TutorName     string `db:"tutor_name" json:"tutorName"`
	TuitionName   string `db:"tuition_name" json:"tuitionName"`
}

// SessionRequest describes a checkout to open with the provider.
type SessionRequest struct {
	Amount        float64
	Currency      string
	CustomerEmail string
	CustomerName  string
	ItemName      string
	Metadata      Metadata
}

// Session is returned once the provider accepted a checkout.
type Session struct {
	Reference   string `json:"sessionId"`
	CheckoutURL string `json:"url"`
	Token       string `json:"-"`
}

// SessionDetails is the provider's current view of a session plus the metadata stored at creation.
type SessionDetails struct {
	Reference       string
	PaymentStatus   Status
	PaymentIntentID string
	AmountTotal     float64
	Currency        string
	CustomerEmail   string
	Metadata        Metadata
}

// Completed reports whether the session can be settled.
func (d *SessionDetails) Completed() bool {
	return d != nil && d.PaymentStatus == StatusCompleted
}

// Gateway opens and inspects hosted checkout sessions.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	RetrieveSession(ctx context.Context, reference string) (*SessionDetails, error)
}

// SessionRecord is the locally persisted side of a checkout session.
type SessionRecord struct {
	Reference   string    `db:"reference"`
	Amount      float64   `db:"amount"`
	Currency    string    `db:"currency"`
	RedirectURL string    `db:"redirect_url"`
	CreatedAt   time.Time `db:"created_at"`
	Metadata
}

// SessionStore persists session metadata so settlement does not depend on provider custom fields.
type SessionStore interface {
	SaveSession(ctx context.Context, record *SessionRecord) error
	FindSession(ctx context.Context, reference string) (*SessionRecord, error)
}
