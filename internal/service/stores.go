package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/examgate/examgate-backend/internal/model"
)

// Storage collaborators the services depend on. The repository package
// provides the PostgreSQL/Redis implementations; tests substitute in-memory
// fakes.

// TestStore reads exam definitions.
type TestStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error)
	ListPublished(ctx context.Context) ([]model.Test, error)
}

// SessionStore reads and mutates exam sessions.
type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.StudentExam, error)
	FindActive(ctx context.Context, studentID int, testID uuid.UUID) (*model.StudentExam, error)
	CountCompleted(ctx context.Context, studentID int, testID uuid.UUID) (int, error)
	Create(ctx context.Context, s *model.StudentExam) (bool, error)
	Finish(ctx context.Context, s *model.StudentExam) error
	SetGrade(ctx context.Context, id uuid.UUID, score, percentage float64, status model.SessionStatus, graded bool) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, index int) error
	ListByStudent(ctx context.Context, studentID int) ([]model.StudentExam, error)
}

// QuestionStore reads the question set of a test.
type QuestionStore interface {
	ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error)
	ListIDsByTest(ctx context.Context, testID uuid.UUID) ([]uuid.UUID, error)
}

// AnswerStore persists answers and their awarded points.
type AnswerStore interface {
	Save(ctx context.Context, sessionID, questionID uuid.UUID, value string, late bool) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.StudentAnswer, error)
	SetPoints(ctx context.Context, sessionID, questionID uuid.UUID, points float64, gradedBy *int) error
}

// SessionCache holds hot session state in Redis. All uses are best-effort
// with a PostgreSQL fallback, except the answer buffer which is the
// write-behind path.
type SessionCache interface {
	SetStartTime(ctx context.Context, sessionID uuid.UUID, start time.Time) error
	GetStartTime(ctx context.Context, sessionID uuid.UUID) (time.Time, bool, error)
	SetQuestionOrder(ctx context.Context, sessionID uuid.UUID, order []uuid.UUID) error
	GetQuestionOrder(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, bool, error)
	BufferAnswer(ctx context.Context, sessionID, questionID uuid.UUID, value string, late bool) error
	Answers(ctx context.Context, sessionID uuid.UUID) (map[string]string, error)
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// AccountStore is the identity directory lookup.
type AccountStore interface {
	FindByUsername(ctx context.Context, username string) (*model.Account, error)
	GetByID(ctx context.Context, id int) (*model.Account, error)
}

// TokenStore persists refresh tokens (hashes only).
type TokenStore interface {
	Create(ctx context.Context, t *model.RefreshToken) error
	GetByHash(ctx context.Context, hash string) (*model.RefreshToken, error)
	Rotate(ctx context.Context, usedID int64, replacement *model.RefreshToken) error
	Revoke(ctx context.Context, id int64) error
	CountActive(ctx context.Context, username string) (int, error)
	RevokeOldest(ctx context.Context, username string, n int) error
	DeleteDead(ctx context.Context, now time.Time) (int64, error)
}

// Grader receives completed sessions for scoring.
type Grader interface {
	GradeSession(ctx context.Context, session *model.StudentExam) error
}
