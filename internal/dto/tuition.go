package dto

// CreateTuitionRequest is posted by a student. Status and applicants are never accepted.
type CreateTuitionRequest struct {
	Subject     string  `json:"subject" validate:"required,max=120"`
	ClassLevel  string  `json:"classLevel" validate:"required,max=60"`
	Location    string  `json:"location" validate:"required,max=200"`
	Salary      float64 `json:"salary" validate:"gte=0"`
	Schedule    string  `json:"schedule" validate:"max=200"`
	Description string  `json:"description" validate:"max=4000"`
}

// UpdateTuitionRequest patches owner-editable tuition fields.
type UpdateTuitionRequest struct {
	Subject     *string  `json:"subject" validate:"omitempty,min=1,max=120"`
	ClassLevel  *string  `json:"classLevel" validate:"omitempty,min=1,max=60"`
	Location    *string  `json:"location" validate:"omitempty,min=1,max=200"`
	Salary      *float64 `json:"salary" validate:"omitempty,gte=0"`
	Schedule    *string  `json:"schedule" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=4000"`
}

// UpdateTuitionStatusRequest is the admin publish action.
type UpdateTuitionStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active"`
}

// TuitionQuery mirrors tuition listing filters.
type TuitionQuery struct {
	Status   string `form:"status"`
	Subject  string `form:"subject"`
	Location string `form:"location"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
