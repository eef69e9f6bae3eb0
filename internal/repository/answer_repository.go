package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/examgate/examgate-backend/internal/model"
)

// AnswerRepository handles student answer data access.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// Save UPSERTs an answer — re-saving the same question overwrites, it never
// duplicates.
func (r *AnswerRepository) Save(ctx context.Context, sessionID, questionID uuid.UUID, value string, late bool) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO student_answers (session_id, question_id, value, late)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id, question_id) DO UPDATE
		 SET value = EXCLUDED.value, late = EXCLUDED.late, updated_at = NOW()`,
		sessionID, questionID, value, late)
	return err
}

// ListBySession retrieves all answers of one session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.StudentAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, question_id, value, late, points_awarded, graded_by, updated_at
		 FROM student_answers
		 WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.StudentAnswer
	for rows.Next() {
		var a model.StudentAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.Value, &a.Late,
			&a.PointsAwarded, &a.GradedBy, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// SetPoints records awarded points for one answer (auto or manual grading).
func (r *AnswerRepository) SetPoints(ctx context.Context, sessionID, questionID uuid.UUID, points float64, gradedBy *int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE student_answers
		 SET points_awarded = $1, graded_by = $2, updated_at = NOW()
		 WHERE session_id = $3 AND question_id = $4`,
		points, gradedBy, sessionID, questionID)
	return err
}
