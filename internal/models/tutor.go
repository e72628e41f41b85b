package models

import (
	"time"

	"github.com/lib/pq"
)

// TutorStatus tracks admin review of a tutor profile.
type TutorStatus string

const (
	TutorStatusPending  TutorStatus = "pending"
	TutorStatusApproved TutorStatus = "approved"
	TutorStatusRejected TutorStatus = "rejected"
)

// Valid reports whether s is a known tutor status.
func (s TutorStatus) Valid() bool {
	switch s {
	case TutorStatusPending, TutorStatusApproved, TutorStatusRejected:
		return true
	}
	return false
}

// Tutor is a public tutor profile. Rating and ReviewCount are derived from reviews.
type Tutor struct {
	ID             string         `db:"id" json:"id"`
	Email          string         `db:"email" json:"email"`
	Name           string         `db:"name" json:"name"`
	Subjects       pq.StringArray `db:"subjects" json:"subjects"`
	Qualifications string         `db:"qualifications" json:"qualifications"`
	Experience     string         `db:"experience" json:"experience"`
	Location       string         `db:"location" json:"location"`
	Status         TutorStatus    `db:"status" json:"status"`
	Rating         float64        `db:"rating" json:"rating"`
	ReviewCount    int            `db:"review_count" json:"reviewCount"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

// TutorFilter constrains tutor listings.
type TutorFilter struct {
	Status   *TutorStatus
	Subject  string
	Location string
	Page     int
	PageSize int
}
