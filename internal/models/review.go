package models

import (
	"math"
	"time"
)

// Review is a student's rating of a tutor.
type Review struct {
	ID            string    `db:"id" json:"id"`
	TutorID       string    `db:"tutor_id" json:"tutorId"`
	ReviewerEmail string    `db:"reviewer_email" json:"reviewerEmail"`
	Rating        int       `db:"rating" json:"rating"`
	Comment       string    `db:"comment" json:"comment"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// TutorRating is the aggregate recomputed after each review.
type TutorRating struct {
	TutorID     string  `db:"tutor_id" json:"tutorId"`
	Rating      float64 `db:"rating" json:"rating"`
	ReviewCount int     `db:"review_count" json:"reviewCount"`
}

// NewTutorRating aggregates ratings into a mean rounded to one decimal and a count.
func NewTutorRating(tutorID string, ratings []int) TutorRating {
	agg := TutorRating{TutorID: tutorID, ReviewCount: len(ratings)}
	if len(ratings) == 0 {
		return agg
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	agg.Rating = math.Round(float64(sum)/float64(len(ratings))*10) / 10
	return agg
}
