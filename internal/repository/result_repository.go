package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// ResultRepository handles exam result data access.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// SubmitExamResult records one scored attempt. The answers snapshot is stored as JSONB.
func (r *ResultRepository) SubmitExamResult(ctx context.Context, rec *model.ResultRecord) error {
	answers, err := json.Marshal(rec.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO exam_results (id, exam_id, student_id, exam_title, subject,
		                           score, total_score, grade, reason, answers, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.ExamID, rec.StudentID, rec.ExamTitle, rec.Subject,
		rec.Score, rec.TotalScore, rec.Grade, rec.Reason, answers, rec.SubmittedAt,
	)
	return err
}

// ListByStudent retrieves a student's stored results, newest first.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID int) ([]model.ResultSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, exam_title, subject, score, total_score, grade, submitted_at
		 FROM exam_results
		 WHERE student_id = $1
		 ORDER BY submitted_at DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.ResultSummary{}
	for rows.Next() {
		var s model.ResultSummary
		if err := rows.Scan(&s.ID, &s.ExamID, &s.ExamTitle, &s.Subject, &s.Score, &s.TotalScore, &s.Grade, &s.SubmittedAt); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}
