package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/examgate/examgate-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByTest retrieves all questions of a test ordered by order_num.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, question_type, question_text, options, correct_key,
		        points, order_num, created_at, updated_at
		 FROM questions
		 WHERE test_id = $1
		 ORDER BY order_num ASC, created_at ASC`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.QuestionType, &q.QuestionText,
			&q.Options, &q.CorrectKey, &q.Points, &q.OrderNum,
			&q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListIDsByTest retrieves question IDs of a test in authored order. This is
// the base order that gets snapshotted (and possibly shuffled) per session.
func (r *QuestionRepository) ListIDsByTest(ctx context.Context, testID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM questions WHERE test_id = $1 ORDER BY order_num ASC, created_at ASC`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (test_id, question_type, question_text, options, correct_key, points, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		q.TestID, q.QuestionType, q.QuestionText, q.Options, q.CorrectKey, q.Points, q.OrderNum,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
}

// ReplaceAll atomically swaps the full question set of a test.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, testID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE test_id = $1`, testID); err != nil {
		return err
	}

	for i := range questions {
		q := &questions[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (test_id, question_type, question_text, options, correct_key, points, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at, updated_at`,
			testID, q.QuestionType, q.QuestionText, q.Options, q.CorrectKey, q.Points, q.OrderNum,
		).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Delete removes one question.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	return err
}
