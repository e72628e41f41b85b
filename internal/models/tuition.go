package models

import (
	"time"

	"github.com/lib/pq"
)

// TuitionStatus is the lifecycle state of a tuition request.
type TuitionStatus string

const (
	TuitionStatusPending  TuitionStatus = "pending"
	TuitionStatusActive   TuitionStatus = "active"
	TuitionStatusAssigned TuitionStatus = "assigned"
)

var tuitionTransitions = map[TuitionStatus][]TuitionStatus{
	TuitionStatusPending: {TuitionStatusActive, TuitionStatusAssigned},
	TuitionStatusActive:  {TuitionStatusAssigned},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
func (s TuitionStatus) CanTransitionTo(next TuitionStatus) bool {
	for _, allowed := range tuitionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known tuition status.
func (s TuitionStatus) Valid() bool {
	switch s {
	case TuitionStatusPending, TuitionStatusActive, TuitionStatusAssigned:
		return true
	}
	return false
}

// Tuition is a student's request for a tutor.
type Tuition struct {
	ID            string         `db:"id" json:"id"`
	StudentEmail  string         `db:"student_email" json:"studentEmail"`
	Subject       string         `db:"subject" json:"subject"`
	ClassLevel    string         `db:"class_level" json:"classLevel"`
	Location      string         `db:"location" json:"location"`
	Salary        float64        `db:"salary" json:"salary"`
	Schedule      string         `db:"schedule" json:"schedule"`
	Description   string         `db:"description" json:"description"`
	Status        TuitionStatus  `db:"status" json:"status"`
	AppliedTutors pq.StringArray `db:"applied_tutors" json:"appliedTutors"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// TuitionFilter constrains tuition listings.
type TuitionFilter struct {
	Status       *TuitionStatus
	StudentEmail string
	Subject      string
	Location     string
	Page         int
	PageSize     int
}

// TuitionPatch carries the owner-editable fields of a tuition. Nil fields are left unchanged.
type TuitionPatch struct {
	Subject     *string
	ClassLevel  *string
	Location    *string
	Salary      *float64
	Schedule    *string
	Description *string
}
