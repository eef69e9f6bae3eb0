package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/examgate/examgate-backend/internal/model"
)

// In-memory fakes for store interfaces. Behavior mirrors the SQL
// implementations: single-row lookups return (nil, nil) on miss, session
// creation honors the one-active-session constraint, token rotation is
// atomic over the map mutex.

type fakeTestStore struct {
	tests map[uuid.UUID]*model.Test
}

func newFakeTestStore(tests ...*model.Test) *fakeTestStore {
	s := &fakeTestStore{tests: make(map[uuid.UUID]*model.Test)}
	for _, t := range tests {
		s.tests[t.ID] = t
	}
	return s
}

func (s *fakeTestStore) GetByID(_ context.Context, id uuid.UUID) (*model.Test, error) {
	return s.tests[id], nil
}

func (s *fakeTestStore) ListPublished(_ context.Context) ([]model.Test, error) {
	var out []model.Test
	for _, t := range s.tests {
		if t.Published {
			out = append(out, *t)
		}
	}
	return out, nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*model.StudentExam
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*model.StudentExam)}
}

func (s *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.StudentExam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *fakeSessionStore) FindActive(_ context.Context, studentID int, testID uuid.UUID) (*model.StudentExam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.StudentID == studentID && sess.TestID == testID && !sess.Completed {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeSessionStore) CountCompleted(_ context.Context, studentID int, testID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sess := range s.sessions {
		if sess.StudentID == studentID && sess.TestID == testID && sess.Completed {
			n++
		}
	}
	return n, nil
}

func (s *fakeSessionStore) Create(_ context.Context, sess *model.StudentExam) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.StudentID == sess.StudentID && existing.TestID == sess.TestID && !existing.Completed {
			return false, nil
		}
	}
	sess.ID = uuid.New()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return true, nil
}

func (s *fakeSessionStore) Finish(_ context.Context, sess *model.StudentExam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *fakeSessionStore) SetGrade(_ context.Context, id uuid.UUID, score, percentage float64, status model.SessionStatus, graded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[id]
	sess.Score = &score
	sess.Percentage = &percentage
	sess.Status = status
	sess.Graded = graded
	return nil
}

func (s *fakeSessionStore) UpdateStatus(_ context.Context, id uuid.UUID, status model.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id].Status = status
	return nil
}

func (s *fakeSessionStore) UpdateProgress(_ context.Context, id uuid.UUID, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id].CurrentQuestionIndex = index
	return nil
}

func (s *fakeSessionStore) ListByStudent(_ context.Context, studentID int) ([]model.StudentExam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StudentExam
	for _, sess := range s.sessions {
		if sess.StudentID == studentID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

type fakeQuestionStore struct {
	questions []model.Question
}

func (s *fakeQuestionStore) ListByTest(_ context.Context, testID uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, q := range s.questions {
		if q.TestID == testID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *fakeQuestionStore) ListIDsByTest(_ context.Context, testID uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, q := range s.questions {
		if q.TestID == testID {
			out = append(out, q.ID)
		}
	}
	return out, nil
}

type fakeSessionCache struct {
	mu      sync.Mutex
	starts  map[uuid.UUID]time.Time
	orders  map[uuid.UUID][]uuid.UUID
	answers map[uuid.UUID]map[string]string
	lates   map[uuid.UUID]map[string]bool
}

func newFakeSessionCache() *fakeSessionCache {
	return &fakeSessionCache{
		starts:  make(map[uuid.UUID]time.Time),
		orders:  make(map[uuid.UUID][]uuid.UUID),
		answers: make(map[uuid.UUID]map[string]string),
		lates:   make(map[uuid.UUID]map[string]bool),
	}
}

func (c *fakeSessionCache) SetStartTime(_ context.Context, sessionID uuid.UUID, start time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts[sessionID] = start
	return nil
}

func (c *fakeSessionCache) GetStartTime(_ context.Context, sessionID uuid.UUID) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.starts[sessionID]
	return t, ok, nil
}

func (c *fakeSessionCache) SetQuestionOrder(_ context.Context, sessionID uuid.UUID, order []uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders[sessionID] = order
	return nil
}

func (c *fakeSessionCache) GetQuestionOrder(_ context.Context, sessionID uuid.UUID) ([]uuid.UUID, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.orders[sessionID]
	return o, ok, nil
}

func (c *fakeSessionCache) BufferAnswer(_ context.Context, sessionID, questionID uuid.UUID, value string, late bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.answers[sessionID] == nil {
		c.answers[sessionID] = make(map[string]string)
		c.lates[sessionID] = make(map[string]bool)
	}
	c.answers[sessionID][questionID.String()] = value
	c.lates[sessionID][questionID.String()] = late
	return nil
}

func (c *fakeSessionCache) Answers(_ context.Context, sessionID uuid.UUID) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.answers[sessionID]))
	for k, v := range c.answers[sessionID] {
		out[k] = v
	}
	return out, nil
}

func (c *fakeSessionCache) Clear(_ context.Context, sessionID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.starts, sessionID)
	delete(c.orders, sessionID)
	delete(c.answers, sessionID)
	delete(c.lates, sessionID)
	return nil
}

type fakeGrader struct {
	mu     sync.Mutex
	graded []uuid.UUID
}

func (g *fakeGrader) GradeSession(_ context.Context, session *model.StudentExam) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.graded = append(g.graded, session.ID)
	return nil
}

func (g *fakeGrader) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.graded)
}

type fakeAnswerStore struct {
	mu      sync.Mutex
	answers map[uuid.UUID]map[uuid.UUID]*model.StudentAnswer
}

func newFakeAnswerStore() *fakeAnswerStore {
	return &fakeAnswerStore{answers: make(map[uuid.UUID]map[uuid.UUID]*model.StudentAnswer)}
}

func (s *fakeAnswerStore) Save(_ context.Context, sessionID, questionID uuid.UUID, value string, late bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answers[sessionID] == nil {
		s.answers[sessionID] = make(map[uuid.UUID]*model.StudentAnswer)
	}
	if existing, ok := s.answers[sessionID][questionID]; ok {
		existing.Value = value
		existing.Late = late
		return nil
	}
	s.answers[sessionID][questionID] = &model.StudentAnswer{
		SessionID:  sessionID,
		QuestionID: questionID,
		Value:      value,
		Late:       late,
	}
	return nil
}

func (s *fakeAnswerStore) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.StudentAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.StudentAnswer
	for _, a := range s.answers[sessionID] {
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeAnswerStore) SetPoints(_ context.Context, sessionID, questionID uuid.UUID, points float64, gradedBy *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[sessionID][questionID]
	if !ok {
		a = &model.StudentAnswer{SessionID: sessionID, QuestionID: questionID}
		if s.answers[sessionID] == nil {
			s.answers[sessionID] = make(map[uuid.UUID]*model.StudentAnswer)
		}
		s.answers[sessionID][questionID] = a
	}
	a.PointsAwarded = &points
	a.GradedBy = gradedBy
	return nil
}

type fakeTokenStore struct {
	mu     sync.Mutex
	nextID int64
	tokens map[int64]*model.RefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[int64]*model.RefreshToken)}
}

func (s *fakeTokenStore) Create(_ context.Context, t *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	cp := *t
	s.tokens[t.ID] = &cp
	return nil
}

func (s *fakeTokenStore) GetByHash(_ context.Context, hash string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeTokenStore) Rotate(_ context.Context, usedID int64, replacement *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[usedID]; ok {
		t.Revoked = true
	}
	s.nextID++
	replacement.ID = s.nextID
	cp := *replacement
	s.tokens[replacement.ID] = &cp
	return nil
}

func (s *fakeTokenStore) Revoke(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		t.Revoked = true
	}
	return nil
}

func (s *fakeTokenStore) CountActive(_ context.Context, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.Username == username && !t.Revoked {
			n++
		}
	}
	return n, nil
}

func (s *fakeTokenStore) RevokeOldest(_ context.Context, username string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var active []*model.RefreshToken
	for _, t := range s.tokens {
		if t.Username == username && !t.Revoked {
			active = append(active, t)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	for i := 0; i < n && i < len(active); i++ {
		active[i].Revoked = true
	}
	return nil
}

func (s *fakeTokenStore) DeleteDead(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for id, t := range s.tokens {
		if t.Revoked || now.After(t.ExpiresAt) {
			delete(s.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

type fakeAccountStore struct {
	accounts map[string]*model.Account
}

func newFakeAccountStore(accounts ...*model.Account) *fakeAccountStore {
	s := &fakeAccountStore{accounts: make(map[string]*model.Account)}
	for _, a := range accounts {
		s.accounts[a.Username] = a
	}
	return s
}

func (s *fakeAccountStore) FindByUsername(_ context.Context, username string) (*model.Account, error) {
	return s.accounts[username], nil
}

func (s *fakeAccountStore) GetByID(_ context.Context, id int) (*model.Account, error) {
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}
