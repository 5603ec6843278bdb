package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetExamByID retrieves an exam together with its questions in display order.
func (r *ExamRepository) GetExamByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, subject, COALESCE(assigned_class, ''), duration_minutes, status,
		        scheduled_start, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Subject, &e.AssignedClass, &e.DurationMinutes, &e.Status,
		&e.ScheduledStart, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Questions = questions
	return e, nil
}

// ListActive returns the exams currently open for sessions, without questions.
func (r *ExamRepository) ListActive(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, subject, COALESCE(assigned_class, ''), duration_minutes, status,
		        scheduled_start, created_at, updated_at
		 FROM exams WHERE status = $1
		 ORDER BY scheduled_start NULLS LAST, created_at DESC`, model.ExamStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Subject, &e.AssignedClass, &e.DurationMinutes, &e.Status,
			&e.ScheduledStart, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// CreateExam inserts an exam and its questions in one transaction.
// A zero ID is replaced with a new UUID.
func (r *ExamRepository) CreateExam(ctx context.Context, e *model.Exam) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO exams (id, title, subject, assigned_class, duration_minutes, status, scheduled_start)
			 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
			 RETURNING created_at, updated_at`,
			e.ID, e.Title, e.Subject, e.AssignedClass, e.DurationMinutes, e.Status, e.ScheduledStart,
		).Scan(&e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert exam: %w", err)
		}

		batch := &pgx.Batch{}
		for i := range e.Questions {
			q := &e.Questions[i]
			raw, err := encodeQuestion(q)
			if err != nil {
				return fmt.Errorf("question %s: %w", q.ID, err)
			}
			batch.Queue(
				`INSERT INTO questions (id, exam_id, question_text, question_type, options, correct_answer,
				                        points, matching_pairs, image_url, option_images, order_num)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)`,
				q.ID, e.ID, q.Text, q.Type, raw.options, raw.correctAnswer,
				q.Points, raw.matchingPairs, q.ImageURL, raw.optionImages, q.OrderNum,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert questions: %w", err)
		}
		return nil
	})
}

func (r *ExamRepository) listQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, question_type, options, correct_answer, points,
		        matching_pairs, COALESCE(image_url, ''), option_images, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var (
			q   model.Question
			raw questionJSON
		)
		if err := rows.Scan(&q.ID, &q.Text, &q.Type, &raw.options, &raw.correctAnswer, &q.Points,
			&raw.matchingPairs, &q.ImageURL, &raw.optionImages, &q.OrderNum); err != nil {
			return nil, err
		}
		if err := raw.decodeInto(&q); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// questionJSON carries the JSONB columns of a question row.
type questionJSON struct {
	options       []byte
	correctAnswer []byte
	matchingPairs []byte
	optionImages  []byte
}

func (raw questionJSON) decodeInto(q *model.Question) error {
	if err := unmarshalOptional(raw.options, &q.Options); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	if err := json.Unmarshal(raw.correctAnswer, &q.CorrectAnswer); err != nil {
		return fmt.Errorf("decode correct_answer: %w", err)
	}
	if err := unmarshalOptional(raw.matchingPairs, &q.MatchingPairs); err != nil {
		return fmt.Errorf("decode matching_pairs: %w", err)
	}
	if err := unmarshalOptional(raw.optionImages, &q.OptionImages); err != nil {
		return fmt.Errorf("decode option_images: %w", err)
	}
	return nil
}

// encodeQuestion produces the JSONB column values. Empty optional fields become NULL.
func encodeQuestion(q *model.Question) (questionJSON, error) {
	var (
		raw questionJSON
		err error
	)
	if raw.correctAnswer, err = json.Marshal(q.CorrectAnswer); err != nil {
		return raw, fmt.Errorf("encode correct_answer: %w", err)
	}
	if raw.options, err = marshalOptional(len(q.Options), q.Options); err != nil {
		return raw, fmt.Errorf("encode options: %w", err)
	}
	if raw.matchingPairs, err = marshalOptional(len(q.MatchingPairs), q.MatchingPairs); err != nil {
		return raw, fmt.Errorf("encode matching_pairs: %w", err)
	}
	if raw.optionImages, err = marshalOptional(len(q.OptionImages), q.OptionImages); err != nil {
		return raw, fmt.Errorf("encode option_images: %w", err)
	}
	return raw, nil
}

func marshalOptional(n int, v any) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalOptional(data []byte, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
