package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/examgate/examgate-backend/internal/model"
)

type gradingFixture struct {
	svc       *GradingService
	test      *model.Test
	questions []model.Question
	sessions  *fakeSessionStore
	answers   *fakeAnswerStore
	cache     *fakeSessionCache
	session   *model.StudentExam
}

func newGradingFixture(t *testing.T, questions []model.Question) *gradingFixture {
	t.Helper()
	test := activeTest(model.TimeEnforcementStrict)
	for i := range questions {
		questions[i].TestID = test.ID
	}

	sessions := newFakeSessionStore()
	answers := newFakeAnswerStore()
	cache := newFakeSessionCache()
	svc := NewGradingService(
		newFakeTestStore(test),
		sessions,
		&fakeQuestionStore{questions: questions},
		answers,
		cache,
		zerolog.Nop(),
	)

	session := &model.StudentExam{
		StudentID: 1,
		TestID:    test.ID,
		StartTime: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Status:    model.SessionStatusSubmitted,
		Completed: true,
	}
	created, err := sessions.Create(context.Background(), session)
	require.NoError(t, err)
	require.True(t, created)
	// Create stores IN_PROGRESS semantics; mark it submitted like a real run.
	require.NoError(t, sessions.UpdateStatus(context.Background(), session.ID, model.SessionStatusSubmitted))
	session.Completed = true

	return &gradingFixture{
		svc:       svc,
		test:      test,
		questions: questions,
		sessions:  sessions,
		answers:   answers,
		cache:     cache,
		session:   session,
	}
}

func mcq(key string, points float64) model.Question {
	return model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeMultipleChoice,
		QuestionText: "pick one",
		CorrectKey:   key,
		Points:       points,
	}
}

func essay(points float64) model.Question {
	return model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeEssay,
		QuestionText: "explain",
		Points:       points,
	}
}

func (f *gradingFixture) answer(t *testing.T, questionID uuid.UUID, value string) {
	t.Helper()
	require.NoError(t, f.answers.Save(context.Background(), f.session.ID, questionID, value, false))
}

func TestGradeObjectiveOnly(t *testing.T) {
	qs := []model.Question{mcq("a", 10), mcq("b", 10), mcq("c", 5)}
	f := newGradingFixture(t, qs)
	f.answer(t, qs[0].ID, "a") // right
	f.answer(t, qs[1].ID, "x") // wrong
	f.answer(t, qs[2].ID, "c") // right

	require.NoError(t, f.svc.GradeSession(context.Background(), f.session))

	graded, err := f.sessions.GetByID(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusGraded, graded.Status)
	assert.True(t, graded.Graded)
	require.NotNil(t, graded.Score)
	assert.Equal(t, 15.0, *graded.Score)
	assert.InDelta(t, 60.0, *graded.Percentage, 0.001)
}

func TestGradeShortAnswerIsCaseInsensitive(t *testing.T) {
	q := model.Question{
		ID:           uuid.New(),
		QuestionType: model.QuestionTypeShortAnswer,
		CorrectKey:   "Photosynthesis",
		Points:       10,
	}
	f := newGradingFixture(t, []model.Question{q})
	f.answer(t, q.ID, "  photosynthesis ")

	require.NoError(t, f.svc.GradeSession(context.Background(), f.session))

	graded, err := f.sessions.GetByID(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, *graded.Score)
}

func TestAnsweredEssayHoldsPartialGrade(t *testing.T) {
	qs := []model.Question{mcq("a", 10), essay(20)}
	f := newGradingFixture(t, qs)
	f.answer(t, qs[0].ID, "a")
	f.answer(t, qs[1].ID, "a long considered argument")

	require.NoError(t, f.svc.GradeSession(context.Background(), f.session))

	graded, err := f.sessions.GetByID(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPartiallyGraded, graded.Status)
	assert.False(t, graded.Graded)
	assert.Equal(t, 10.0, *graded.Score, "objective points are awarded immediately")
}

func TestUnansweredEssayDoesNotBlock(t *testing.T) {
	qs := []model.Question{mcq("a", 10), essay(20)}
	f := newGradingFixture(t, qs)
	f.answer(t, qs[0].ID, "a")

	require.NoError(t, f.svc.GradeSession(context.Background(), f.session))

	graded, err := f.sessions.GetByID(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusGraded, graded.Status)
	assert.True(t, graded.Graded)
	assert.Equal(t, 10.0, *graded.Score, "skipped essay scores zero")
}

func TestGradeEssayPromotesToFullyGraded(t *testing.T) {
	qs := []model.Question{mcq("a", 10), essay(20), essay(20)}
	f := newGradingFixture(t, qs)
	f.answer(t, qs[0].ID, "a")
	f.answer(t, qs[1].ID, "first essay")
	f.answer(t, qs[2].ID, "second essay")

	require.NoError(t, f.svc.GradeSession(context.Background(), f.session))

	// One essay scored: still partial.
	session, err := f.svc.GradeEssay(context.Background(), f.session.ID, qs[1].ID, 15, 42)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusPartiallyGraded, session.Status)

	// The last pending essay completes the grade.
	session, err = f.svc.GradeEssay(context.Background(), f.session.ID, qs[2].ID, 18, 42)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusFullyGraded, session.Status)
	assert.True(t, session.Graded)
	require.NotNil(t, session.Score)
	assert.Equal(t, 43.0, *session.Score)
	assert.InDelta(t, 86.0, *session.Percentage, 0.001)
}

func TestGradeEssayValidation(t *testing.T) {
	qs := []model.Question{mcq("a", 10), essay(20)}
	f := newGradingFixture(t, qs)
	f.answer(t, qs[1].ID, "essay text")
	require.NoError(t, f.svc.GradeSession(context.Background(), f.session))

	_, err := f.svc.GradeEssay(context.Background(), f.session.ID, qs[0].ID, 5, 42)
	assert.ErrorIs(t, err, ErrNotEssay)

	_, err = f.svc.GradeEssay(context.Background(), f.session.ID, uuid.New(), 5, 42)
	assert.ErrorIs(t, err, ErrQuestionNotFound)

	_, err = f.svc.GradeEssay(context.Background(), f.session.ID, qs[1].ID, 25, 42)
	assert.Error(t, err, "points above the question maximum are rejected")
}

func TestGradeFlushesBufferedAnswers(t *testing.T) {
	qs := []model.Question{mcq("a", 10), mcq("b", 10)}
	f := newGradingFixture(t, qs)
	// One answer made it to PostgreSQL, the other is still in Redis.
	f.answer(t, qs[0].ID, "a")
	require.NoError(t, f.cache.BufferAnswer(context.Background(), f.session.ID, qs[1].ID, "b", false))

	require.NoError(t, f.svc.GradeSession(context.Background(), f.session))

	graded, err := f.sessions.GetByID(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, *graded.Score)

	answers, err := f.cache.Answers(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Empty(t, answers, "session cache is cleared after grading")
}

func TestBeginReview(t *testing.T) {
	qs := []model.Question{mcq("a", 10)}
	f := newGradingFixture(t, qs)
	require.NoError(t, f.svc.GradeSession(context.Background(), f.session))

	session, err := f.svc.BeginReview(context.Background(), f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusUnderReview, session.Status)
}
