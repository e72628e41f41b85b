package dto

// SubmitApplicationRequest is posted by a tutor applying to a tuition. Status is not accepted.
type SubmitApplicationRequest struct {
	TuitionID      string  `json:"tuitionId" validate:"required,uuid"`
	TutorEmail     string  `json:"tutorEmail" validate:"required,email"`
	TutorName      string  `json:"tutorName" validate:"required,max=120"`
	Qualifications string  `json:"qualifications" validate:"max=2000"`
	Experience     string  `json:"experience" validate:"max=2000"`
	ExpectedSalary float64 `json:"expectedSalary" validate:"gte=0"`
}

// UpdateApplicationRequest patches the editable parts of a pending application.
type UpdateApplicationRequest struct {
	TutorName      *string  `json:"tutorName" validate:"omitempty,min=1,max=120"`
	Qualifications *string  `json:"qualifications" validate:"omitempty,max=2000"`
	Experience     *string  `json:"experience" validate:"omitempty,max=2000"`
	ExpectedSalary *float64 `json:"expectedSalary" validate:"omitempty,gte=0"`
}

// InsertedResponse echoes the identifier of a newly created record.
type InsertedResponse struct {
	InsertedID string `json:"insertedId"`
}
