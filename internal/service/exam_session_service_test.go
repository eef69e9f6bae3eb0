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
	"github.com/examgate/examgate-backend/internal/policy"
)

func activeTest(enforcement model.TimeEnforcement) *model.Test {
	start := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	return &model.Test{
		ID:              uuid.New(),
		Title:           "Algebra Midterm",
		Published:       true,
		DurationMinutes: 60,
		TimeEnforcement: enforcement,
		MaxAttempts:     2,
		ScheduledStart:  &start,
		ScheduledEnd:    &end,
	}
}

func questionsFor(testID uuid.UUID, n int) []model.Question {
	qs := make([]model.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, model.Question{
			ID:           uuid.New(),
			TestID:       testID,
			QuestionType: model.QuestionTypeMultipleChoice,
			QuestionText: "pick one",
			CorrectKey:   "a",
			Points:       10,
			OrderNum:     i + 1,
		})
	}
	return qs
}

type sessionFixture struct {
	svc      *ExamSessionService
	test     *model.Test
	sessions *fakeSessionStore
	cache    *fakeSessionCache
	grader   *fakeGrader
	now      time.Time
}

func newSessionFixture(t *testing.T, enforcement model.TimeEnforcement, questionCount int) *sessionFixture {
	t.Helper()
	test := activeTest(enforcement)
	sessions := newFakeSessionStore()
	cache := newFakeSessionCache()
	grader := &fakeGrader{}
	svc := NewExamSessionService(
		newFakeTestStore(test),
		sessions,
		&fakeQuestionStore{questions: questionsFor(test.ID, questionCount)},
		cache,
		grader,
		zerolog.Nop(),
	)
	return &sessionFixture{
		svc:      svc,
		test:     test,
		sessions: sessions,
		cache:    cache,
		grader:   grader,
		now:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestStartCreatesSessionWithSnapshot(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 5)

	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusInProgress, sess.Status)
	assert.Len(t, sess.QuestionOrder, 5)
	assert.Equal(t, f.now, sess.StartTime)

	start, ok, err := f.cache.GetStartTime(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, start.Equal(f.now))
}

func TestStartResumesActiveSession(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 5)

	first, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)

	second, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now.Add(10*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.StartTime, second.StartTime, "resume must not reset the clock")
	assert.Equal(t, first.QuestionOrder, second.QuestionOrder, "question order must be stable across resumes")
}

func TestStartUnknownTest(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 5)

	_, err := f.svc.Start(context.Background(), 1, uuid.New(), f.now)
	assert.ErrorIs(t, err, ErrTestNotFound)
}

func TestStartOutsideWindow(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 5)

	tooEarly := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	_, err := f.svc.Start(context.Background(), 1, f.test.ID, tooEarly)
	assert.ErrorIs(t, err, policy.ErrTestNotAccessible)
}

func TestStartRandomizedOrderIsPerSession(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 30)
	f.test.RandomizeQuestions = true

	a, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)
	b, err := f.svc.Start(context.Background(), 2, f.test.ID, f.now)
	require.NoError(t, err)

	assert.ElementsMatch(t, a.QuestionOrder, b.QuestionOrder)
	// 30 questions: identical independent shuffles are vanishingly unlikely.
	assert.NotEqual(t, a.QuestionOrder, b.QuestionOrder)
}

func TestSaveAnswerOverwrites(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)
	qid := sess.QuestionOrder[0]

	require.NoError(t, f.svc.SaveAnswer(context.Background(), sess.ID, qid, "a", f.now.Add(time.Minute)))
	require.NoError(t, f.svc.SaveAnswer(context.Background(), sess.ID, qid, "b", f.now.Add(2*time.Minute)))

	answers, err := f.cache.Answers(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Len(t, answers, 1)
	assert.Equal(t, "b", answers[qid.String()])
}

func TestSaveAnswerStrictPastLimit(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)

	late := f.now.Add(61 * time.Minute)
	err = f.svc.SaveAnswer(context.Background(), sess.ID, sess.QuestionOrder[0], "a", late)
	assert.ErrorIs(t, err, ErrTimeExpired)

	reloaded, err := f.sessions.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusTimedOut, reloaded.Status)
	assert.Equal(t, 1, f.grader.calls(), "timed-out session goes to grading")

	answers, err := f.cache.Answers(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, answers, "late answer must not be stored in strict mode")
}

func TestSaveAnswerLenientPastLimit(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementLenient, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)
	qid := sess.QuestionOrder[0]

	err = f.svc.SaveAnswer(context.Background(), sess.ID, qid, "a", f.now.Add(61*time.Minute))
	require.NoError(t, err)

	answers, err := f.cache.Answers(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", answers[qid.String()])
	assert.True(t, f.cache.lates[sess.ID][qid.String()], "past-limit lenient answer must be flagged late")

	reloaded, err := f.sessions.GetByID(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusInProgress, reloaded.Status)
}

func TestSaveAnswerNoEnforcement(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementNone, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)
	qid := sess.QuestionOrder[0]

	err = f.svc.SaveAnswer(context.Background(), sess.ID, qid, "a", f.now.Add(5*time.Hour))
	require.NoError(t, err)

	assert.False(t, f.cache.lates[sess.ID][qid.String()])
}

func TestSaveAnswerOnFinishedSession(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), sess.ID, f.now.Add(10*time.Minute))
	require.NoError(t, err)

	err = f.svc.SaveAnswer(context.Background(), sess.ID, sess.QuestionOrder[0], "a", f.now.Add(11*time.Minute))
	assert.ErrorIs(t, err, ErrSessionNotActive)
}

func TestSubmitFinishesAndGrades(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)

	finished, err := f.svc.Submit(context.Background(), sess.ID, f.now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusSubmitted, finished.Status)
	assert.True(t, finished.Completed)
	require.NotNil(t, finished.EndTime)
	assert.Equal(t, int64(1800), finished.TimeSpentSeconds)
	assert.Equal(t, 1, f.grader.calls())
}

func TestTerminalStatesAreImmutable(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), sess.ID, f.now.Add(time.Minute))
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), sess.ID, f.now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrSessionAlreadyTerminal)
	_, err = f.svc.Cancel(context.Background(), sess.ID, f.now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrSessionAlreadyTerminal)
	_, err = f.svc.TimeOut(context.Background(), sess.ID, f.now.Add(2*time.Minute))
	assert.ErrorIs(t, err, ErrSessionAlreadyTerminal)
}

func TestCancelSkipsGrading(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), sess.ID, f.now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusCancelled, cancelled.Status)
	assert.Equal(t, 0, f.grader.calls())
}

func TestCancelledAttemptStillCounts(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)

	// MaxAttempts is 2: burn both with cancels, then a third start must fail.
	for i := 0; i < 2; i++ {
		sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
		require.NoError(t, err)
		_, err = f.svc.Cancel(context.Background(), sess.ID, f.now.Add(time.Minute))
		require.NoError(t, err)
	}

	_, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	assert.ErrorIs(t, err, policy.ErrMaxAttemptsExceeded)
}

func TestStateRestoresAnswersAndClock(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)
	qid := sess.QuestionOrder[1]
	require.NoError(t, f.svc.SaveAnswer(context.Background(), sess.ID, qid, "c", f.now.Add(time.Minute)))

	state, err := f.svc.State(context.Background(), sess.ID, f.now.Add(20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, sess.QuestionOrder, state.QuestionOrder)
	assert.Equal(t, "c", state.SavedAnswers[qid.String()])
	assert.InDelta(t, 2400, state.RemainingSeconds, 1)
}

func TestStateSelfHealsFromDatabase(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)

	// Simulate a Redis flush: start time and order are gone.
	require.NoError(t, f.cache.Clear(context.Background(), sess.ID))

	state, err := f.svc.State(context.Background(), sess.ID, f.now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, sess.QuestionOrder, state.QuestionOrder)
	assert.InDelta(t, 3000, state.RemainingSeconds, 1)

	_, ok, err := f.cache.GetStartTime(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.True(t, ok, "fallback read must repopulate the cache")
}

func TestPaperStripsCorrectKeys(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)

	paper, err := f.svc.Paper(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, paper, 3)
	for i, q := range paper {
		assert.Equal(t, sess.QuestionOrder[i], q.ID, "paper must follow the snapshot order")
	}
}

func TestLobbyOverlaysSessionState(t *testing.T) {
	f := newSessionFixture(t, model.TimeEnforcementStrict, 3)
	sess, err := f.svc.Start(context.Background(), 1, f.test.ID, f.now)
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), sess.ID, f.now.Add(time.Minute))
	require.NoError(t, err)

	entries, err := f.svc.Lobby(context.Background(), 1, f.now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.TestStatusActive, entries[0].CurrentStatus)
	assert.True(t, entries[0].Accessible)
	require.NotNil(t, entries[0].SessionStatus)

	// Lobby for a student who never started shows no session overlay.
	other, err := f.svc.Lobby(context.Background(), 99, f.now)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Nil(t, other[0].SessionStatus)
}
