package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/examgate/examgate-backend/internal/model"
)

// Attempt admission errors.
var (
	ErrTestNotAccessible   = errors.New("test is not accessible right now")
	ErrMaxAttemptsExceeded = errors.New("maximum attempts exceeded")
)

// SessionLookup is the slice of session storage the attempt policy needs.
// FindActive returns (nil, nil) when no non-completed session exists.
type SessionLookup interface {
	FindActive(ctx context.Context, studentID int, testID uuid.UUID) (*model.StudentExam, error)
	CountCompleted(ctx context.Context, studentID int, testID uuid.UUID) (int, error)
}

// StartDecision is the outcome of a successful CanStart call. A nil Resume
// means a brand-new session may be created; a non-nil Resume carries the
// existing in-progress session that must be returned to the student instead.
type StartDecision struct {
	Resume *model.StudentExam
}

// AttemptPolicy decides whether a student may begin a new attempt of a test.
type AttemptPolicy struct {
	sessions SessionLookup
}

// NewAttemptPolicy creates a new AttemptPolicy.
func NewAttemptPolicy(sessions SessionLookup) *AttemptPolicy {
	return &AttemptPolicy{sessions: sessions}
}

// CanStart authorizes a start of the given test by the given student.
//
// The resume check runs before the attempt cap on purpose: an in-progress
// session is not a new attempt, so it is never blocked by maxAttempts.
func (p *AttemptPolicy) CanStart(ctx context.Context, test *model.Test, studentID int, now time.Time) (*StartDecision, error) {
	if !IsAccessible(test, now) {
		return nil, ErrTestNotAccessible
	}

	active, err := p.sessions.FindActive(ctx, studentID, test.ID)
	if err != nil {
		return nil, fmt.Errorf("find active session: %w", err)
	}
	if active != nil {
		return &StartDecision{Resume: active}, nil
	}

	if test.MaxAttempts > 0 {
		used, err := p.sessions.CountCompleted(ctx, studentID, test.ID)
		if err != nil {
			return nil, fmt.Errorf("count completed attempts: %w", err)
		}
		if used >= test.MaxAttempts {
			return nil, ErrMaxAttemptsExceeded
		}
	}

	return &StartDecision{}, nil
}
