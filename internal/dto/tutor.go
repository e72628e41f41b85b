package dto

// CreateTutorRequest registers the caller's tutor profile. Rating and status are derived.
type CreateTutorRequest struct {
	Name           string   `json:"name" validate:"required,max=120"`
	Subjects       []string `json:"subjects" validate:"required,min=1,dive,required,max=60"`
	Qualifications string   `json:"qualifications" validate:"max=2000"`
	Experience     string   `json:"experience" validate:"max=2000"`
	Location       string   `json:"location" validate:"max=200"`
}

// UpdateTutorStatusRequest is the admin review of a tutor profile.
type UpdateTutorStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// TutorQuery mirrors public tutor listing filters.
type TutorQuery struct {
	Subject  string `form:"subject"`
	Location string `form:"location"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
