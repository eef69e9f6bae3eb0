package service

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/policy"
)

// Session lifecycle errors.
var (
	ErrTestNotFound           = errors.New("test not found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionNotActive       = errors.New("session is not active")
	ErrSessionAlreadyTerminal = errors.New("session is already in a terminal state")
	ErrTimeExpired            = errors.New("test duration exceeded")
)

// ExamSessionService drives the session state machine:
//
//	NOT_STARTED → IN_PROGRESS → {COMPLETED|SUBMITTED|TIMED_OUT|CANCELLED}
//	            → {UNDER_REVIEW|PARTIALLY_GRADED|FULLY_GRADED|GRADED}
//
// Terminal states are immutable. All operations take `now` explicitly; time
// is never read ambiently so expiry decisions stay deterministic.
type ExamSessionService struct {
	tests     TestStore
	sessions  SessionStore
	questions QuestionStore
	cache     SessionCache
	attempt   *policy.AttemptPolicy
	grader    Grader
	log       zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	tests TestStore,
	sessions SessionStore,
	questions QuestionStore,
	cache SessionCache,
	grader Grader,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		tests:     tests,
		sessions:  sessions,
		questions: questions,
		cache:     cache,
		attempt:   policy.NewAttemptPolicy(sessions),
		grader:    grader,
		log:       log.With().Str("component", "exam_session_service").Logger(),
	}
}

// Start authorizes and creates (or resumes) a session for the student.
//
// The question order is snapshotted exactly once, at creation — a resumed
// session always sees the order it started with. Randomization, when the
// test asks for it, happens here and nowhere else.
func (s *ExamSessionService) Start(ctx context.Context, studentID int, testID uuid.UUID, now time.Time) (*model.StudentExam, error) {
	test, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test == nil {
		return nil, ErrTestNotFound
	}

	decision, err := s.attempt.CanStart(ctx, test, studentID, now)
	if err != nil {
		return nil, err
	}

	if decision.Resume != nil {
		// Re-warm the cache in case the student switched devices.
		s.warmCache(ctx, decision.Resume)
		return decision.Resume, nil
	}

	order, err := s.questions.ListIDsByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if test.RandomizeQuestions {
		shuffled := make([]uuid.UUID, len(order))
		copy(shuffled, order)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		order = shuffled
	}

	session := &model.StudentExam{
		StudentID:     studentID,
		TestID:        testID,
		StartTime:     now,
		Status:        model.SessionStatusInProgress,
		QuestionOrder: order,
	}

	created, err := s.sessions.Create(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if !created {
		// Lost a concurrent-start race; the unique index kept a single
		// active session, so return the winner's row.
		existing, err := s.sessions.FindActive(ctx, studentID, testID)
		if err != nil {
			return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", err)
		}
		if existing == nil {
			return nil, ErrSessionNotFound
		}
		s.warmCache(ctx, existing)
		return existing, nil
	}

	s.warmCache(ctx, session)
	return session, nil
}

// Session returns a session by id, nil when it does not exist.
func (s *ExamSessionService) Session(ctx context.Context, sessionID uuid.UUID) (*model.StudentExam, error) {
	return s.sessions.GetByID(ctx, sessionID)
}

// SaveAnswer stores one answer for an in-progress session. Saving the same
// question twice overwrites — never duplicates, never errors.
//
// Duration handling follows the test's enforcement mode: STRICT rejects the
// save with ErrTimeExpired and times the session out as a side effect,
// LENIENT accepts the save flagged as late, NONE ignores the clock.
func (s *ExamSessionService) SaveAnswer(ctx context.Context, sessionID, questionID uuid.UUID, value string, now time.Time) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Status != model.SessionStatusInProgress {
		return ErrSessionNotActive
	}

	test, err := s.tests.GetByID(ctx, session.TestID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}
	if test == nil {
		return ErrTestNotFound
	}

	late := false
	if test.TimeEnforcement != model.TimeEnforcementNone {
		limit := time.Duration(test.DurationMinutes) * time.Minute
		if now.Sub(session.StartTime) > limit {
			if test.TimeEnforcement == model.TimeEnforcementStrict {
				if err := s.finish(ctx, session, model.SessionStatusTimedOut, now, true); err != nil {
					s.log.Error().Err(err).Str("session_id", sessionID.String()).Msg("time-out transition failed")
				}
				return ErrTimeExpired
			}
			late = true
		}
	}

	if err := s.cache.BufferAnswer(ctx, sessionID, questionID, value, late); err != nil {
		return fmt.Errorf("buffer answer: %w", err)
	}
	return nil
}

// Submit finishes the session normally and hands it to grading.
func (s *ExamSessionService) Submit(ctx context.Context, sessionID uuid.UUID, now time.Time) (*model.StudentExam, error) {
	return s.terminate(ctx, sessionID, model.SessionStatusSubmitted, now, true)
}

// TimeOut finishes the session as expired and hands it to grading. Called on
// a strict-mode save past the limit and by the session reaper.
func (s *ExamSessionService) TimeOut(ctx context.Context, sessionID uuid.UUID, now time.Time) (*model.StudentExam, error) {
	return s.terminate(ctx, sessionID, model.SessionStatusTimedOut, now, true)
}

// Cancel finishes the session without grading. The attempt still counts.
func (s *ExamSessionService) Cancel(ctx context.Context, sessionID uuid.UUID, now time.Time) (*model.StudentExam, error) {
	return s.terminate(ctx, sessionID, model.SessionStatusCancelled, now, false)
}

// Complete is the administrative force-finish, graded like a submit.
func (s *ExamSessionService) Complete(ctx context.Context, sessionID uuid.UUID, now time.Time) (*model.StudentExam, error) {
	return s.terminate(ctx, sessionID, model.SessionStatusCompleted, now, true)
}

func (s *ExamSessionService) terminate(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, now time.Time, grade bool) (*model.StudentExam, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if err := s.finish(ctx, session, status, now, grade); err != nil {
		return nil, err
	}
	return session, nil
}

// finish moves a session into a terminal taking state and, when asked,
// triggers the grading handoff. Grading failures are logged, not surfaced:
// the terminal transition already happened and the reaper-safe answer is to
// let an examiner re-trigger grading.
func (s *ExamSessionService) finish(ctx context.Context, session *model.StudentExam, status model.SessionStatus, now time.Time, grade bool) error {
	if session.Status.IsTerminal() {
		return ErrSessionAlreadyTerminal
	}

	end := now
	session.EndTime = &end
	session.Completed = true
	session.Status = status
	session.TimeSpentSeconds = int64(now.Sub(session.StartTime) / time.Second)

	if err := s.sessions.Finish(ctx, session); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}

	if grade {
		if err := s.grader.GradeSession(ctx, session); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("grading handoff failed")
		}
	}
	return nil
}

// State rebuilds everything the client needs after a reload: saved answers,
// the stable question order, and the remaining time. Start time is read from
// Redis with a PostgreSQL fallback that self-heals the cache.
func (s *ExamSessionService) State(ctx context.Context, sessionID uuid.UUID, now time.Time) (*model.SessionState, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	test, err := s.tests.GetByID(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test == nil {
		return nil, ErrTestNotFound
	}

	start, ok, err := s.cache.GetStartTime(ctx, sessionID)
	if err != nil || !ok {
		start = session.StartTime
		if err := s.cache.SetStartTime(ctx, sessionID, start); err != nil {
			s.log.Warn().Err(err).Msg("start time self-heal failed")
		}
	}

	order, ok, err := s.cache.GetQuestionOrder(ctx, sessionID)
	if err != nil || !ok {
		order = session.QuestionOrder
		if err := s.cache.SetQuestionOrder(ctx, sessionID, order); err != nil {
			s.log.Warn().Err(err).Msg("question order self-heal failed")
		}
	}

	answers, err := s.cache.Answers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}

	remaining := 0.0
	if session.Status == model.SessionStatusInProgress && test.TimeEnforcement != model.TimeEnforcementNone {
		deadline := start.Add(time.Duration(test.DurationMinutes) * time.Minute)
		if d := deadline.Sub(now); d > 0 {
			remaining = d.Seconds()
		}
	}

	return &model.SessionState{
		SessionID:        session.ID,
		TestID:           session.TestID,
		Status:           session.Status,
		QuestionOrder:    order,
		SavedAnswers:     answers,
		RemainingSeconds: remaining,
	}, nil
}

// Paper returns the session's questions in snapshot order with correct keys
// stripped. Choice shuffling, when enabled, is seeded from the session and
// question IDs so a resume sees the exact same layout.
func (s *ExamSessionService) Paper(ctx context.Context, sessionID uuid.UUID) ([]model.QuestionForStudent, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	test, err := s.tests.GetByID(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if test == nil {
		return nil, ErrTestNotFound
	}

	questions, err := s.questions.ListByTest(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	byID := make(map[uuid.UUID]*model.Question, len(questions))
	for i := range questions {
		byID[questions[i].ID] = &questions[i]
	}

	paper := make([]model.QuestionForStudent, 0, len(session.QuestionOrder))
	for _, qid := range session.QuestionOrder {
		q, ok := byID[qid]
		if !ok {
			continue // Question removed after the snapshot was taken
		}
		options := q.Options
		if test.ShuffleChoices {
			options = shuffleOptions(options, choiceSeed(session.ID, q.ID))
		}
		paper = append(paper, model.QuestionForStudent{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			QuestionText: q.QuestionText,
			Options:      options,
			Points:       q.Points,
		})
	}
	return paper, nil
}

// UpdateProgress persists the student's position for resume.
func (s *ExamSessionService) UpdateProgress(ctx context.Context, sessionID uuid.UUID, index int) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Status != model.SessionStatusInProgress {
		return ErrSessionNotActive
	}
	return s.sessions.UpdateProgress(ctx, sessionID, index)
}

// LobbyEntry is a published test overlaid with the student's own progress.
type LobbyEntry struct {
	Test          model.Test           `json:"test"`
	CurrentStatus model.TestStatus     `json:"current_status"`
	Accessible    bool                 `json:"accessible"`
	SessionStatus *model.SessionStatus `json:"session_status,omitempty"`
	Score         *float64             `json:"score,omitempty"`
}

// Lobby lists published tests with their live window status and the
// student's session state overlaid. Status is computed fresh per call —
// accessibility is time-dependent and must never be cached.
func (s *ExamSessionService) Lobby(ctx context.Context, studentID int, now time.Time) ([]LobbyEntry, error) {
	tests, err := s.tests.ListPublished(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published tests: %w", err)
	}

	sessions, err := s.sessions.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	latest := make(map[uuid.UUID]*model.StudentExam, len(sessions))
	for i := range sessions {
		if _, ok := latest[sessions[i].TestID]; !ok {
			latest[sessions[i].TestID] = &sessions[i]
		}
	}

	entries := make([]LobbyEntry, 0, len(tests))
	for _, t := range tests {
		status := policy.ComputeStatus(&t, now)
		entry := LobbyEntry{
			Test:          t,
			CurrentStatus: status,
			Accessible:    status == model.TestStatusActive,
		}
		if sess, ok := latest[t.ID]; ok {
			entry.SessionStatus = &sess.Status
			entry.Score = sess.Score
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *ExamSessionService) warmCache(ctx context.Context, session *model.StudentExam) {
	if err := s.cache.SetStartTime(ctx, session.ID, session.StartTime); err != nil {
		s.log.Warn().Err(err).Msg("cache start time failed")
	}
	if err := s.cache.SetQuestionOrder(ctx, session.ID, session.QuestionOrder); err != nil {
		s.log.Warn().Err(err).Msg("cache question order failed")
	}
}

// choiceSeed derives a stable per-(session, question) seed so shuffled
// choices never move between reloads.
func choiceSeed(sessionID, questionID uuid.UUID) int64 {
	a := binary.BigEndian.Uint64(sessionID[:8])
	b := binary.BigEndian.Uint64(questionID[:8])
	return int64(a ^ b)
}

func shuffleOptions(options json.RawMessage, seed int64) json.RawMessage {
	if len(options) == 0 {
		return options
	}
	var items []json.RawMessage
	if err := json.Unmarshal(options, &items); err != nil || len(items) < 2 {
		return options
	}
	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	out, err := json.Marshal(items)
	if err != nil {
		return options
	}
	return out
}
