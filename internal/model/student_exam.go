package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states. NOT_STARTED is virtual: a
// session row is only created on the first legitimate start, so NOT_STARTED
// means "no row exists yet" and is never persisted.
type SessionStatus string

const (
	SessionStatusNotStarted SessionStatus = "NOT_STARTED"
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"

	// Terminal taking states.
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusSubmitted SessionStatus = "SUBMITTED"
	SessionStatusTimedOut  SessionStatus = "TIMED_OUT"
	SessionStatusCancelled SessionStatus = "CANCELLED"

	// Grading states.
	SessionStatusUnderReview     SessionStatus = "UNDER_REVIEW"
	SessionStatusPartiallyGraded SessionStatus = "PARTIALLY_GRADED"
	SessionStatusFullyGraded     SessionStatus = "FULLY_GRADED"
	SessionStatusGraded          SessionStatus = "GRADED"
)

// IsTerminal reports whether the status forbids further taking operations.
// Every status except IN_PROGRESS (and the virtual NOT_STARTED) is terminal;
// transitions out of a terminal state into taking are never permitted.
func (s SessionStatus) IsTerminal() bool {
	return s != SessionStatusInProgress && s != SessionStatusNotStarted
}

// StudentExam represents one attempt of a student at a test. Rows are never
// physically deleted; they are the historical record for grading and reports.
type StudentExam struct {
	ID                   uuid.UUID     `json:"id"`
	StudentID            int           `json:"student_id"`
	TestID               uuid.UUID     `json:"test_id"`
	StartTime            time.Time     `json:"start_time"`
	EndTime              *time.Time    `json:"end_time,omitempty"`
	Completed            bool          `json:"completed"`
	Status               SessionStatus `json:"status"`
	Score                *float64      `json:"score,omitempty"`
	Percentage           *float64      `json:"percentage,omitempty"`
	Graded               bool          `json:"graded"`
	TimeSpentSeconds     int64         `json:"time_spent_seconds"`
	CurrentQuestionIndex int           `json:"current_question_index"`
	// QuestionOrder is the per-session question snapshot, randomized once at
	// start and stable across resumes.
	QuestionOrder []uuid.UUID `json:"question_order"`
}

// SaveAnswerRequest is the payload for saving a single answer.
type SaveAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Value      string    `json:"value" binding:"max=65535"`
}

// SessionState is returned on page reload so the client can restore answered
// questions and the remaining time.
type SessionState struct {
	SessionID        uuid.UUID         `json:"session_id"`
	TestID           uuid.UUID         `json:"test_id"`
	Status           SessionStatus     `json:"status"`
	QuestionOrder    []uuid.UUID       `json:"question_order"`
	SavedAnswers     map[string]string `json:"saved_answers"`
	RemainingSeconds float64           `json:"remaining_seconds"`
}
