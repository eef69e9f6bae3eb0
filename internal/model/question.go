package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates supported question types. Objective types are
// auto-graded on completion; essays wait for an examiner.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeShortAnswer    QuestionType = "SHORT_ANSWER"
	QuestionTypeEssay          QuestionType = "ESSAY"
)

// IsObjective reports whether the type can be graded mechanically.
func (t QuestionType) IsObjective() bool {
	return t != QuestionTypeEssay
}

// Question represents a single question belonging to a test.
type Question struct {
	ID           uuid.UUID       `json:"id"`
	TestID       uuid.UUID       `json:"test_id"`
	QuestionType QuestionType    `json:"question_type"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options,omitempty"`
	CorrectKey   string          `json:"correct_key,omitempty"`
	Points       float64         `json:"points"`
	OrderNum     int             `json:"order_num"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// QuestionForStudent is a question stripped of the correct key.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionType QuestionType    `json:"question_type"`
	QuestionText string          `json:"question_text"`
	Options      json.RawMessage `json:"options,omitempty"`
	Points       float64         `json:"points"`
}

// AddQuestionRequest is the payload for adding a question to a test.
type AddQuestionRequest struct {
	QuestionType string          `json:"question_type" binding:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE SHORT_ANSWER ESSAY"`
	QuestionText string          `json:"question_text" binding:"required,min=1,max=4000"`
	Options      json.RawMessage `json:"options" binding:"omitempty"`
	CorrectKey   string          `json:"correct_key" binding:"omitempty,max=4096"`
	Points       float64         `json:"points" binding:"required,gt=0"`
	OrderNum     int             `json:"order_num" binding:"min=0"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
