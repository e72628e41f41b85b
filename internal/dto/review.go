package dto

// CreateReviewRequest rates a tutor.
type CreateReviewRequest struct {
	TutorID string `json:"tutorId" validate:"required,uuid"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}
