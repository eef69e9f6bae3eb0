package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/examgate/examgate-backend/internal/model"
)

const testColumns = `id, title, author_id, duration_minutes, total_marks, passing_score,
	published, scheduled_start, scheduled_end, time_enforcement, max_attempts,
	start_buffer_minutes, end_buffer_minutes, allowed_ips, secure_browser,
	randomize_questions, shuffle_choices, created_at, updated_at`

// TestRepository handles test (exam definition) data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

func scanTest(row pgx.Row) (*model.Test, error) {
	t := &model.Test{}
	err := row.Scan(&t.ID, &t.Title, &t.AuthorID, &t.DurationMinutes, &t.TotalMarks,
		&t.PassingScore, &t.Published, &t.ScheduledStart, &t.ScheduledEnd,
		&t.TimeEnforcement, &t.MaxAttempts, &t.StartBufferMinutes, &t.EndBufferMinutes,
		&t.AllowedIPs, &t.SecureBrowser, &t.RandomizeQuestions, &t.ShuffleChoices,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a test by its UUID. Returns (nil, nil) when absent.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t, err := scanTest(r.pool.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new test.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (title, author_id, duration_minutes, total_marks, passing_score,
		        published, scheduled_start, scheduled_end, time_enforcement, max_attempts,
		        start_buffer_minutes, end_buffer_minutes, allowed_ips, secure_browser,
		        randomize_questions, shuffle_choices)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.AuthorID, t.DurationMinutes, t.TotalMarks, t.PassingScore,
		t.Published, t.ScheduledStart, t.ScheduledEnd, t.TimeEnforcement, t.MaxAttempts,
		t.StartBufferMinutes, t.EndBufferMinutes, t.AllowedIPs, t.SecureBrowser,
		t.RandomizeQuestions, t.ShuffleChoices,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update persists all mutable fields of a test.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET title = $1, duration_minutes = $2, total_marks = $3, passing_score = $4,
		     scheduled_start = $5, scheduled_end = $6, time_enforcement = $7,
		     max_attempts = $8, start_buffer_minutes = $9, end_buffer_minutes = $10,
		     allowed_ips = $11, secure_browser = $12, randomize_questions = $13,
		     shuffle_choices = $14, updated_at = NOW()
		 WHERE id = $15`,
		t.Title, t.DurationMinutes, t.TotalMarks, t.PassingScore,
		t.ScheduledStart, t.ScheduledEnd, t.TimeEnforcement,
		t.MaxAttempts, t.StartBufferMinutes, t.EndBufferMinutes,
		t.AllowedIPs, t.SecureBrowser, t.RandomizeQuestions,
		t.ShuffleChoices, t.ID)
	return err
}

// SetPublished flips the published flag.
func (r *TestRepository) SetPublished(ctx context.Context, id uuid.UUID, published bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET published = $1, updated_at = NOW() WHERE id = $2`,
		published, id)
	return err
}

// ListByAuthorPaginated retrieves tests filtered by author with pagination.
// Pass authorID=0 to list all tests (admin).
func (r *TestRepository) ListByAuthorPaginated(ctx context.Context, authorID, limit, offset int) ([]model.Test, int, error) {
	countQuery := `SELECT COUNT(*) FROM tests`
	var countArgs []any
	if authorID > 0 {
		countQuery += ` WHERE author_id = $1`
		countArgs = append(countArgs, authorID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + testColumns + ` FROM tests`
	var args []any
	if authorID > 0 {
		query += ` WHERE author_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
		args = append(args, authorID, limit, offset)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, 0, err
		}
		tests = append(tests, *t)
	}
	return tests, total, rows.Err()
}

// ListPublished returns all published tests, newest first. Used by the
// student lobby and for cache prewarming on startup.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests WHERE published ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		tests = append(tests, *t)
	}
	return tests, rows.Err()
}
