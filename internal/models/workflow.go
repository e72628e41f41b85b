package models

// ApprovalResult reports the outcome of an approve or reject call.
type ApprovalResult struct {
	ApplicationID    string            `json:"applicationId"`
	TuitionID        string            `json:"tuitionId"`
	Status           ApplicationStatus `json:"status"`
	AlreadyProcessed bool              `json:"alreadyProcessed"`
	RejectedSiblings int64             `json:"rejectedSiblings,omitempty"`
	Message          string            `json:"message"`
}

// SettlementResult reports the outcome of settling a checkout session. Success=false with no
// error means the payment has not completed yet.
type SettlementResult struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	TransactionID   string `json:"transactionId,omitempty"`
	TuitionName     string `json:"tuitionName,omitempty"`
	TutorName       string `json:"tutorName,omitempty"`
	AlreadyRecorded bool   `json:"alreadyRecorded,omitempty"`
}

// CheckoutResult is returned when a checkout session is opened.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}
