package models

import "time"

// ApplicationStatus captures workflow states for tutor applications.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// CanTransitionTo is the single transition rule for applications: only pending applications
// move, and only to a terminal state.
func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return s == ApplicationStatusPending &&
		(next == ApplicationStatusApproved || next == ApplicationStatusRejected)
}

// IsTerminal reports whether no further transition is possible.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// Application is a tutor's bid on a tuition.
type Application struct {
	ID             string            `db:"id" json:"id"`
	TuitionID      string            `db:"tuition_id" json:"tuitionId"`
	TutorEmail     string            `db:"tutor_email" json:"tutorEmail"`
	TutorName      string            `db:"tutor_name" json:"tutorName"`
	Qualifications string            `db:"qualifications" json:"qualifications"`
	Experience     string            `db:"experience" json:"experience"`
	ExpectedSalary float64           `db:"expected_salary" json:"expectedSalary"`
	Status         ApplicationStatus `db:"status" json:"status"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
}

// ApplicationFilter constrains application listings.
type ApplicationFilter struct {
	TuitionID  string
	TutorEmail string
	Status     *ApplicationStatus
}

// ApplicationPatch carries the tutor-editable fields. Status is never patchable.
type ApplicationPatch struct {
	TutorName      *string
	Qualifications *string
	Experience     *string
	ExpectedSalary *float64
}

// Empty reports whether the patch changes nothing.
func (p ApplicationPatch) Empty() bool {
	return p.TutorName == nil && p.Qualifications == nil && p.Experience == nil && p.ExpectedSalary == nil
}
