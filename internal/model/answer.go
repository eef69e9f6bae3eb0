package model

import (
	"time"

	"github.com/google/uuid"
)

// StudentAnswer represents a saved answer within a session. Re-saving the
// same question overwrites the value; it never duplicates.
type StudentAnswer struct {
	SessionID     uuid.UUID `json:"session_id"`
	QuestionID    uuid.UUID `json:"question_id"`
	Value         string    `json:"value"`
	Late          bool      `json:"late"`
	PointsAwarded *float64  `json:"points_awarded,omitempty"`
	GradedBy      *int      `json:"graded_by,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GradeEssayRequest is the payload for manually grading an essay answer.
type GradeEssayRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Points     float64   `json:"points" binding:"min=0"`
}
