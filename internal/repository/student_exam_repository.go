package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/examgate/examgate-backend/internal/model"
)

const sessionColumns = `id, student_id, test_id, start_time, end_time, completed, status,
	score, percentage, graded, time_spent_seconds, current_question_index, question_order`

// SessionResult combines student data with their session details for the
// examiner-facing results listing.
type SessionResult struct {
	SessionID  uuid.UUID           `json:"session_id"`
	StudentID  int                 `json:"student_id"`
	Name       string              `json:"name"`
	Username   string              `json:"username"`
	Score      *float64            `json:"score"`
	Percentage *float64            `json:"percentage"`
	Status     model.SessionStatus `json:"status"`
	StartTime  time.Time           `json:"start_time"`
	EndTime    *time.Time          `json:"end_time"`
}

// StudentExamRepository handles exam session data access.
type StudentExamRepository struct {
	pool *pgxpool.Pool
}

// NewStudentExamRepository creates a new StudentExamRepository.
func NewStudentExamRepository(pool *pgxpool.Pool) *StudentExamRepository {
	return &StudentExamRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.StudentExam, error) {
	s := &model.StudentExam{}
	err := row.Scan(&s.ID, &s.StudentID, &s.TestID, &s.StartTime, &s.EndTime,
		&s.Completed, &s.Status, &s.Score, &s.Percentage, &s.Graded,
		&s.TimeSpentSeconds, &s.CurrentQuestionIndex, &s.QuestionOrder)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a session. Returns (nil, nil) when absent.
func (r *StudentExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.StudentExam, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM student_exams WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindActive retrieves the student's non-completed session for a test, or
// (nil, nil) when none exists. The partial unique index guarantees at most
// one such row.
func (r *StudentExamRepository) FindActive(ctx context.Context, studentID int, testID uuid.UUID) (*model.StudentExam, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM student_exams
		 WHERE student_id = $1 AND test_id = $2 AND NOT completed`, studentID, testID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CountCompleted counts finished attempts of a test by a student.
func (r *StudentExamRepository) CountCompleted(ctx context.Context, studentID int, testID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_exams
		 WHERE student_id = $1 AND test_id = $2 AND completed`, studentID, testID).Scan(&n)
	return n, err
}

// Create inserts a new session. The partial unique index on
// (student_id, test_id) WHERE NOT completed closes the duplicate-start race:
// when two concurrent starts collide, the loser gets created=false and must
// re-fetch the winner's row.
func (r *StudentExamRepository) Create(ctx context.Context, s *model.StudentExam) (bool, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO student_exams (student_id, test_id, start_time, status, current_question_index, question_order)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (student_id, test_id) WHERE NOT completed DO NOTHING
		 RETURNING id`,
		s.StudentID, s.TestID, s.StartTime, s.Status, s.CurrentQuestionIndex, s.QuestionOrder,
	).Scan(&s.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Finish moves an active session into a terminal taking state. The
// NOT completed guard makes terminal states immutable at the storage layer
// too, not only in the service.
func (r *StudentExamRepository) Finish(ctx context.Context, s *model.StudentExam) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE student_exams
		 SET end_time = $1, completed = TRUE, status = $2, time_spent_seconds = $3
		 WHERE id = $4 AND NOT completed`,
		s.EndTime, s.Status, s.TimeSpentSeconds, s.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errors.New("session already completed")
	}
	return nil
}

// SetGrade records the grading outcome for a completed session.
func (r *StudentExamRepository) SetGrade(ctx context.Context, id uuid.UUID, score, percentage float64, status model.SessionStatus, graded bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE student_exams
		 SET score = $1, percentage = $2, status = $3, graded = $4
		 WHERE id = $5 AND completed`,
		score, percentage, status, graded, id)
	return err
}

// UpdateStatus updates only the session status.
func (r *StudentExamRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SessionStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE student_exams SET status = $1 WHERE id = $2`, status, id)
	return err
}

// UpdateProgress persists the student's current question index.
func (r *StudentExamRepository) UpdateProgress(ctx context.Context, id uuid.UUID, index int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE student_exams SET current_question_index = $1 WHERE id = $2`, index, id)
	return err
}

// ListByStudent retrieves all sessions of a student, newest first.
func (r *StudentExamRepository) ListByStudent(ctx context.Context, studentID int) ([]model.StudentExam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM student_exams
		 WHERE student_id = $1
		 ORDER BY start_time DESC`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.StudentExam
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// ListOverdueIDs returns IN_PROGRESS sessions that have exceeded their
// test's duration (plus grace) under STRICT or LENIENT enforcement. Used by
// the reaper so abandoned sessions do not stay IN_PROGRESS forever.
func (r *StudentExamRepository) ListOverdueIDs(ctx context.Context, now time.Time, grace time.Duration) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id
		 FROM student_exams s
		 JOIN tests t ON s.test_id = t.id
		 WHERE NOT s.completed
		   AND t.time_enforcement <> 'NONE'
		   AND s.start_time + make_interval(mins => t.duration_minutes) + $2::interval < $1`,
		now, grace)
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

// ListByTest retrieves all student results for a test with pagination.
func (r *StudentExamRepository) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int) ([]SessionResult, int64, error) {
	offset := (page - 1) * perPage

	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_exams WHERE test_id = $1`, testID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.student_id, a.name, a.username,
		        s.score, s.percentage, s.status, s.start_time, s.end_time
		 FROM student_exams s
		 JOIN accounts a ON s.student_id = a.id
		 WHERE s.test_id = $1
		 ORDER BY a.name ASC, s.start_time DESC
		 LIMIT $2 OFFSET $3`, testID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []SessionResult
	for rows.Next() {
		var res SessionResult
		if err := rows.Scan(&res.SessionID, &res.StudentID, &res.Name, &res.Username,
			&res.Score, &res.Percentage, &res.Status, &res.StartTime, &res.EndTime); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}
	return results, total, rows.Err()
}
