package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/model"
)

var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrNotEssay         = errors.New("question is not an essay")
	ErrSessionNotGraded = errors.New("session has not been graded yet")
)

// GradingService scores finished sessions. Objective questions are graded
// mechanically; answered essays hold the session in PARTIALLY_GRADED until
// an examiner awards points. Unanswered essays score zero and never block.
type GradingService struct {
	tests     TestStore
	sessions  SessionStore
	questions QuestionStore
	answers   AnswerStore
	cache     SessionCache
	log       zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	tests TestStore,
	sessions SessionStore,
	questions QuestionStore,
	answers AnswerStore,
	cache SessionCache,
	log zerolog.Logger,
) *GradingService {
	return &GradingService{
		tests:     tests,
		sessions:  sessions,
		questions: questions,
		answers:   answers,
		cache:     cache,
		log:       log.With().Str("component", "grading_service").Logger(),
	}
}

// GradeSession flushes any answers still sitting in the write-behind buffer,
// auto-grades the objective questions and records the score. Sessions with
// answered essays land in PARTIALLY_GRADED; everything else goes straight to
// GRADED.
func (s *GradingService) GradeSession(ctx context.Context, session *model.StudentExam) error {
	questions, err := s.questions.ListByTest(ctx, session.TestID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}

	if err := s.flushBuffer(ctx, session.ID); err != nil {
		return err
	}

	persisted, err := s.answers.ListBySession(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	byQuestion := make(map[uuid.UUID]*model.StudentAnswer, len(persisted))
	for i := range persisted {
		byQuestion[persisted[i].QuestionID] = &persisted[i]
	}

	var score, total float64
	pendingEssays := 0
	for i := range questions {
		q := &questions[i]
		total += q.Points

		ans, answered := byQuestion[q.ID]
		if !answered || strings.TrimSpace(ans.Value) == "" {
			continue // Unanswered scores zero, essay or not
		}

		if !q.QuestionType.IsObjective() {
			if ans.PointsAwarded == nil {
				pendingEssays++
			} else {
				score += *ans.PointsAwarded
			}
			continue
		}

		points := 0.0
		if answerMatches(q, ans.Value) {
			points = q.Points
		}
		score += points
		if err := s.answers.SetPoints(ctx, session.ID, q.ID, points, nil); err != nil {
			return fmt.Errorf("set points: %w", err)
		}
	}

	status := model.SessionStatusGraded
	graded := true
	if pendingEssays > 0 {
		status = model.SessionStatusPartiallyGraded
		graded = false
	}

	percentage := 0.0
	if total > 0 {
		percentage = score / total * 100
	}
	if err := s.sessions.SetGrade(ctx, session.ID, score, percentage, status, graded); err != nil {
		return fmt.Errorf("set grade: %w", err)
	}

	if err := s.cache.Clear(ctx, session.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("session cache clear failed")
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Float64("score", score).
		Int("pending_essays", pendingEssays).
		Msg("session graded")
	return nil
}

// GradeEssay awards points for one essay answer. Once the last pending essay
// is scored the session is re-totaled and moves to FULLY_GRADED.
func (s *GradingService) GradeEssay(ctx context.Context, sessionID, questionID uuid.UUID, points float64, gradedBy int) (*model.StudentExam, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.Status.IsTerminal() {
		return nil, ErrSessionNotGraded
	}

	questions, err := s.questions.ListByTest(ctx, session.TestID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	var target *model.Question
	for i := range questions {
		if questions[i].ID == questionID {
			target = &questions[i]
			break
		}
	}
	if target == nil {
		return nil, ErrQuestionNotFound
	}
	if target.QuestionType.IsObjective() {
		return nil, ErrNotEssay
	}
	if points < 0 || points > target.Points {
		return nil, fmt.Errorf("points must be between 0 and %g", target.Points)
	}

	if err := s.answers.SetPoints(ctx, sessionID, questionID, points, &gradedBy); err != nil {
		return nil, fmt.Errorf("set points: %w", err)
	}

	return s.retotal(ctx, session, questions)
}

// BeginReview parks a terminal session in UNDER_REVIEW, e.g. while an
// incident is investigated. Grading resumes from there via GradeEssay.
func (s *GradingService) BeginReview(ctx context.Context, sessionID uuid.UUID) (*model.StudentExam, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.Status.IsTerminal() {
		return nil, ErrSessionNotActive
	}

	if err := s.sessions.UpdateStatus(ctx, sessionID, model.SessionStatusUnderReview); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	session.Status = model.SessionStatusUnderReview
	return session, nil
}

// retotal recomputes the session score after a manual grade and promotes the
// status when no essays remain pending.
func (s *GradingService) retotal(ctx context.Context, session *model.StudentExam, questions []model.Question) (*model.StudentExam, error) {
	persisted, err := s.answers.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byQuestion := make(map[uuid.UUID]*model.StudentAnswer, len(persisted))
	for i := range persisted {
		byQuestion[persisted[i].QuestionID] = &persisted[i]
	}

	var score, total float64
	pending := 0
	for i := range questions {
		q := &questions[i]
		total += q.Points
		ans, ok := byQuestion[q.ID]
		if !ok || strings.TrimSpace(ans.Value) == "" {
			continue
		}
		if ans.PointsAwarded == nil {
			if !q.QuestionType.IsObjective() {
				pending++
			}
			continue
		}
		score += *ans.PointsAwarded
	}

	status := model.SessionStatusPartiallyGraded
	graded := false
	if pending == 0 {
		status = model.SessionStatusFullyGraded
		graded = true
	}

	percentage := 0.0
	if total > 0 {
		percentage = score / total * 100
	}
	if err := s.sessions.SetGrade(ctx, session.ID, score, percentage, status, graded); err != nil {
		return nil, fmt.Errorf("set grade: %w", err)
	}

	session.Score = &score
	session.Percentage = &percentage
	session.Status = status
	session.Graded = graded
	return session, nil
}

// flushBuffer writes any answers still in Redis that the autosave worker has
// not persisted yet. Already-persisted rows are left alone so late flags and
// awarded points survive.
func (s *GradingService) flushBuffer(ctx context.Context, sessionID uuid.UUID) error {
	buffered, err := s.cache.Answers(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read answer buffer: %w", err)
	}
	if len(buffered) == 0 {
		return nil
	}

	persisted, err := s.answers.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	seen := make(map[string]struct{}, len(persisted))
	for i := range persisted {
		seen[persisted[i].QuestionID.String()] = struct{}{}
	}

	for qid, value := range buffered {
		if _, ok := seen[qid]; ok {
			continue
		}
		questionID, err := uuid.Parse(qid)
		if err != nil {
			s.log.Warn().Str("question_id", qid).Msg("malformed question id in answer buffer")
			continue
		}
		if err := s.answers.Save(ctx, sessionID, questionID, value, false); err != nil {
			return fmt.Errorf("flush answer: %w", err)
		}
	}
	return nil
}

// answerMatches compares a student's answer against the correct key. Short
// answers compare case-insensitively after trimming; choice types compare
// the stored option key exactly.
func answerMatches(q *model.Question, value string) bool {
	if q.QuestionType == model.QuestionTypeShortAnswer {
		return strings.EqualFold(strings.TrimSpace(value), strings.TrimSpace(q.CorrectKey))
	}
	return value == q.CorrectKey
}
