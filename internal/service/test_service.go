package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/examgate/examgate-backend/internal/model"
	"github.com/examgate/examgate-backend/internal/policy"
	"github.com/examgate/examgate-backend/internal/repository"
)

var (
	ErrNotTestAuthor     = errors.New("only the test author may modify it")
	ErrTestHasNoQuestion = errors.New("a test needs at least one question before publishing")
	ErrTestPublished     = errors.New("published tests cannot be edited; unpublish first")
)

// TestWithStatus is a test annotated with its live window status.
type TestWithStatus struct {
	model.Test
	CurrentStatus model.TestStatus `json:"current_status"`
}

// TestService covers the examiner's side: authoring tests and questions,
// publishing, and reading results.
type TestService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	sessionRepo  *repository.StudentExamRepository
	settings     *SettingService
	log          zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(
	testRepo *repository.TestRepository,
	questionRepo *repository.QuestionRepository,
	sessionRepo *repository.StudentExamRepository,
	settings *SettingService,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		sessionRepo:  sessionRepo,
		settings:     settings,
		log:          log.With().Str("component", "test_service").Logger(),
	}
}

// Create builds a new draft test. Unset buffers fall back to the
// deployment-wide defaults kept in settings.
func (s *TestService) Create(ctx context.Context, authorID int, req *model.CreateTestRequest) (*model.Test, error) {
	enforcement := model.TimeEnforcement(req.TimeEnforcement)
	if enforcement == "" {
		enforcement = model.TimeEnforcementStrict
	}

	t := &model.Test{
		Title:              req.Title,
		AuthorID:           authorID,
		DurationMinutes:    req.DurationMinutes,
		TotalMarks:         req.TotalMarks,
		PassingScore:       req.PassingScore,
		ScheduledStart:     req.ScheduledStart,
		ScheduledEnd:       req.ScheduledEnd,
		TimeEnforcement:    enforcement,
		MaxAttempts:        req.MaxAttempts,
		StartBufferMinutes: req.StartBufferMinutes,
		EndBufferMinutes:   req.EndBufferMinutes,
		AllowedIPs:         req.AllowedIPs,
		SecureBrowser:      req.SecureBrowser,
		RandomizeQuestions: req.RandomizeQuestions,
		ShuffleChoices:     req.ShuffleChoices,
	}
	if t.StartBufferMinutes == 0 {
		t.StartBufferMinutes = s.settingInt(ctx, SettingDefaultStartBuffer, 0)
	}
	if t.EndBufferMinutes == 0 {
		t.EndBufferMinutes = s.settingInt(ctx, SettingDefaultEndBuffer, 0)
	}

	if err := s.testRepo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create test: %w", err)
	}
	s.log.Info().Str("test_id", t.ID.String()).Int("author_id", authorID).Msg("test created")
	return t, nil
}

// Update applies a partial edit to an unpublished test.
func (s *TestService) Update(ctx context.Context, authorID int, testID uuid.UUID, req *model.UpdateTestRequest) (*model.Test, error) {
	t, err := s.authored(ctx, authorID, testID)
	if err != nil {
		return nil, err
	}
	if t.Published {
		return nil, ErrTestPublished
	}

	if req.Title != "" {
		t.Title = req.Title
	}
	if req.DurationMinutes != nil {
		t.DurationMinutes = *req.DurationMinutes
	}
	if req.TotalMarks != nil {
		t.TotalMarks = *req.TotalMarks
	}
	if req.PassingScore != nil {
		t.PassingScore = *req.PassingScore
	}
	if req.ScheduledStart != nil {
		t.ScheduledStart = req.ScheduledStart
	}
	if req.ScheduledEnd != nil {
		t.ScheduledEnd = req.ScheduledEnd
	}
	if req.TimeEnforcement != "" {
		t.TimeEnforcement = model.TimeEnforcement(req.TimeEnforcement)
	}
	if req.MaxAttempts != nil {
		t.MaxAttempts = *req.MaxAttempts
	}
	if req.StartBufferMinutes != nil {
		t.StartBufferMinutes = *req.StartBufferMinutes
	}
	if req.EndBufferMinutes != nil {
		t.EndBufferMinutes = *req.EndBufferMinutes
	}
	if req.AllowedIPs != nil {
		t.AllowedIPs = req.AllowedIPs
	}
	if req.SecureBrowser != nil {
		t.SecureBrowser = *req.SecureBrowser
	}
	if req.RandomizeQuestions != nil {
		t.RandomizeQuestions = *req.RandomizeQuestions
	}
	if req.ShuffleChoices != nil {
		t.ShuffleChoices = *req.ShuffleChoices
	}

	if err := s.testRepo.Update(ctx, t); err != nil {
		return nil, fmt.Errorf("update test: %w", err)
	}
	return t, nil
}

// Get returns one test with its live status.
func (s *TestService) Get(ctx context.Context, testID uuid.UUID, now time.Time) (*TestWithStatus, error) {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if t == nil {
		return nil, ErrTestNotFound
	}
	return &TestWithStatus{Test: *t, CurrentStatus: policy.ComputeStatus(t, now)}, nil
}

// ListByAuthor pages through the author's own tests with live statuses.
func (s *TestService) ListByAuthor(ctx context.Context, authorID, page, perPage int, now time.Time) ([]TestWithStatus, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	tests, total, err := s.testRepo.ListByAuthorPaginated(ctx, authorID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list tests: %w", err)
	}

	out := make([]TestWithStatus, 0, len(tests))
	for i := range tests {
		out = append(out, TestWithStatus{Test: tests[i], CurrentStatus: policy.ComputeStatus(&tests[i], now)})
	}
	return out, total, nil
}

// Publish makes a test visible to students after sanity-checking it. Total
// marks, when left at zero, are derived from the question points.
func (s *TestService) Publish(ctx context.Context, authorID int, testID uuid.UUID) (*model.Test, error) {
	t, err := s.authored(ctx, authorID, testID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrTestHasNoQuestion
	}
	if t.ScheduledStart != nil && t.ScheduledEnd != nil && !t.ScheduledEnd.After(*t.ScheduledStart) {
		return nil, errors.New("scheduled end must be after scheduled start")
	}

	if t.TotalMarks == 0 {
		for i := range questions {
			t.TotalMarks += questions[i].Points
		}
		if err := s.testRepo.Update(ctx, t); err != nil {
			return nil, fmt.Errorf("update total marks: %w", err)
		}
	}

	if err := s.testRepo.SetPublished(ctx, testID, true); err != nil {
		return nil, fmt.Errorf("publish test: %w", err)
	}
	t.Published = true
	s.log.Info().Str("test_id", testID.String()).Msg("test published")
	return t, nil
}

// Unpublish hides a test from students again.
func (s *TestService) Unpublish(ctx context.Context, authorID int, testID uuid.UUID) error {
	if _, err := s.authored(ctx, authorID, testID); err != nil {
		return err
	}
	return s.testRepo.SetPublished(ctx, testID, false)
}

// ReplaceQuestions swaps the full question set of an unpublished test.
func (s *TestService) ReplaceQuestions(ctx context.Context, authorID int, testID uuid.UUID, req *model.ReplaceQuestionsRequest) error {
	t, err := s.authored(ctx, authorID, testID)
	if err != nil {
		return err
	}
	if t.Published {
		return ErrTestPublished
	}

	questions := make([]model.Question, 0, len(req.Questions))
	for i, q := range req.Questions {
		qt := model.QuestionType(q.QuestionType)
		if err := validateQuestion(qt, q); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
		order := q.OrderNum
		if order == 0 {
			order = i + 1
		}
		questions = append(questions, model.Question{
			TestID:       testID,
			QuestionType: qt,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			CorrectKey:   q.CorrectKey,
			Points:       q.Points,
			OrderNum:     order,
		})
	}
	if err := s.questionRepo.ReplaceAll(ctx, testID, questions); err != nil {
		return fmt.Errorf("replace questions: %w", err)
	}
	return nil
}

// Questions lists a test's questions with correct keys, for the author.
func (s *TestService) Questions(ctx context.Context, authorID int, testID uuid.UUID) ([]model.Question, error) {
	if _, err := s.authored(ctx, authorID, testID); err != nil {
		return nil, err
	}
	return s.questionRepo.ListByTest(ctx, testID)
}

// Results pages through the graded and pending sessions of a test.
func (s *TestService) Results(ctx context.Context, authorID int, testID uuid.UUID, page, perPage int) ([]repository.SessionResult, int64, error) {
	if _, err := s.authored(ctx, authorID, testID); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.sessionRepo.ListByTest(ctx, testID, page, perPage)
}

// authored fetches a test and verifies ownership. Admins bypass the check at
// the handler layer by acting with the author's id.
func (s *TestService) authored(ctx context.Context, authorID int, testID uuid.UUID) (*model.Test, error) {
	t, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	if t == nil {
		return nil, ErrTestNotFound
	}
	if t.AuthorID != authorID {
		return nil, ErrNotTestAuthor
	}
	return t, nil
}

func (s *TestService) settingInt(ctx context.Context, key string, fallback int) int {
	v := s.settings.Get(ctx, key, strconv.Itoa(fallback))
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func validateQuestion(qt model.QuestionType, q model.AddQuestionRequest) error {
	switch qt {
	case model.QuestionTypeMultipleChoice:
		var options []json.RawMessage
		if err := json.Unmarshal(q.Options, &options); err != nil || len(options) < 2 {
			return errors.New("multiple choice needs at least two options")
		}
		if q.CorrectKey == "" {
			return errors.New("multiple choice needs a correct key")
		}
	case model.QuestionTypeTrueFalse:
		if q.CorrectKey != "true" && q.CorrectKey != "false" {
			return errors.New("true/false needs a correct key of true or false")
		}
	case model.QuestionTypeShortAnswer:
		if q.CorrectKey == "" {
			return errors.New("short answer needs a correct key")
		}
	case model.QuestionTypeEssay:
		// Essays are graded manually; no key required.
	default:
		return fmt.Errorf("unknown question type %q", qt)
	}
	return nil
}
