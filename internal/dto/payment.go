package dto

// CreateCheckoutSessionRequest opens a hosted checkout for an application.
type CreateCheckoutSessionRequest struct {
	Amount        float64 `json:"amount" validate:"required,gt=0"`
	TutorName     string  `json:"tutorName" validate:"required"`
	StudentEmail  string  `json:"studentEmail" validate:"required,email"`
	ApplicationID string  `json:"applicationId" validate:"required,uuid"`
	TuitionID     string  `json:"tuitionId" validate:"required,uuid"`
}

// PaymentQuery mirrors payment listing filters.
type PaymentQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}
