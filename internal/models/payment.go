package models

import "time"

// Payment is the immutable record of a settled checkout. TransactionID is unique.
type Payment struct {
	ID            string    `db:"id" json:"id"`
	TransactionID string    `db:"transaction_id" json:"transactionId"`
	ApplicationID string    `db:"application_id" json:"applicationId"`
	TuitionID     string    `db:"tuition_id" json:"tuitionId"`
	StudentEmail  string    `db:"student_email" json:"studentEmail"`
	TutorEmail    string    `db:"tutor_email" json:"tutorEmail"`
	TutorName     string    `db:"tutor_name" json:"tutorName"`
	TuitionName   string    `db:"tuition_name" json:"tuitionName"`
	Amount        float64   `db:"amount" json:"amount"`
	Currency      string    `db:"currency" json:"currency"`
	PaymentStatus string    `db:"payment_status" json:"paymentStatus"`
	PaidAt        time.Time `db:"paid_at" json:"paidAt"`
}

// PaymentFilter scopes payment listings to a party.
type PaymentFilter struct {
	StudentEmail string
	TutorEmail   string
	Page         int
	PageSize     int
}
