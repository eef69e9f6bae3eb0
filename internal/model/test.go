package model

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus is the derived accessibility state of a test. It is never
// stored — it is computed from the schedule fields and the current time.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusScheduled TestStatus = "SCHEDULED"
	TestStatusActive    TestStatus = "ACTIVE"
	TestStatusExpired   TestStatus = "EXPIRED"
)

// TimeEnforcement controls what happens when a session exceeds the test
// duration: STRICT rejects further answers, LENIENT accepts but flags them,
// NONE ignores the duration entirely.
type TimeEnforcement string

const (
	TimeEnforcementStrict  TimeEnforcement = "STRICT"
	TimeEnforcementLenient TimeEnforcement = "LENIENT"
	TimeEnforcementNone    TimeEnforcement = "NONE"
)

// Test represents an exam definition.
type Test struct {
	ID                 uuid.UUID       `json:"id"`
	Title              string          `json:"title"`
	AuthorID           int             `json:"author_id"`
	DurationMinutes    int             `json:"duration_minutes"`
	TotalMarks         float64         `json:"total_marks"`
	PassingScore       float64         `json:"passing_score"`
	Published          bool            `json:"published"`
	ScheduledStart     *time.Time      `json:"scheduled_start,omitempty"`
	ScheduledEnd       *time.Time      `json:"scheduled_end,omitempty"`
	TimeEnforcement    TimeEnforcement `json:"time_enforcement"`
	MaxAttempts        int             `json:"max_attempts"`
	StartBufferMinutes int             `json:"start_buffer_minutes"`
	EndBufferMinutes   int             `json:"end_buffer_minutes"`
	AllowedIPs         []string        `json:"allowed_ips,omitempty"`
	SecureBrowser      bool            `json:"secure_browser"`
	RandomizeQuestions bool            `json:"randomize_questions"`
	ShuffleChoices     bool            `json:"shuffle_choices"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CreateTestRequest is the payload for creating a new test.
type CreateTestRequest struct {
	Title              string     `json:"title" binding:"required,min=3,max=255"`
	DurationMinutes    int        `json:"duration_minutes" binding:"required,min=1,max=480"`
	TotalMarks         float64    `json:"total_marks" binding:"omitempty,min=0"`
	PassingScore       float64    `json:"passing_score" binding:"omitempty,min=0"`
	ScheduledStart     *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd       *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
	TimeEnforcement    string     `json:"time_enforcement" binding:"omitempty,oneof=STRICT LENIENT NONE"`
	MaxAttempts        int        `json:"max_attempts" binding:"omitempty,min=0,max=100"`
	StartBufferMinutes int        `json:"start_buffer_minutes" binding:"omitempty,min=0,max=120"`
	EndBufferMinutes   int        `json:"end_buffer_minutes" binding:"omitempty,min=0,max=120"`
	AllowedIPs         []string   `json:"allowed_ips" binding:"omitempty,dive,ip"`
	SecureBrowser      bool       `json:"secure_browser"`
	RandomizeQuestions bool       `json:"randomize_questions"`
	ShuffleChoices     bool       `json:"shuffle_choices"`
}

// UpdateTestRequest is the payload for updating an existing test.
type UpdateTestRequest struct {
	Title              string     `json:"title" binding:"omitempty,min=3,max=255"`
	DurationMinutes    *int       `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	TotalMarks         *float64   `json:"total_marks" binding:"omitempty,min=0"`
	PassingScore       *float64   `json:"passing_score" binding:"omitempty,min=0"`
	ScheduledStart     *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd       *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
	TimeEnforcement    string     `json:"time_enforcement" binding:"omitempty,oneof=STRICT LENIENT NONE"`
	MaxAttempts        *int       `json:"max_attempts" binding:"omitempty,min=0,max=100"`
	StartBufferMinutes *int       `json:"start_buffer_minutes" binding:"omitempty,min=0,max=120"`
	EndBufferMinutes   *int       `json:"end_buffer_minutes" binding:"omitempty,min=0,max=120"`
	AllowedIPs         []string   `json:"allowed_ips" binding:"omitempty,dive,ip"`
	SecureBrowser      *bool      `json:"secure_browser" binding:"omitempty"`
	RandomizeQuestions *bool      `json:"randomize_questions" binding:"omitempty"`
	ShuffleChoices     *bool      `json:"shuffle_choices" binding:"omitempty"`
}
