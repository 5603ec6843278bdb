package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the lifecycle states of an exam.
type ExamStatus string

const (
	ExamStatusScheduled ExamStatus = "SCHEDULED"
	ExamStatusActive    ExamStatus = "ACTIVE"
	ExamStatusCompleted ExamStatus = "COMPLETED"
	ExamStatusExpired   ExamStatus = "EXPIRED"
)

// Exam load-time validation errors.
var (
	ErrNoQuestions       = errors.New("exam has no questions")
	ErrDuplicateQuestion = errors.New("duplicate question id")
	ErrInvalidQuestion   = errors.New("invalid question")
)

// Exam represents an exam with its ordered questions. An exam is immutable
// for the lifetime of any session taking it.
type Exam struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Subject         string     `json:"subject"`
	AssignedClass   string     `json:"assigned_class"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          ExamStatus `json:"status"`
	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TotalPoints is the maximum achievable score.
func (e *Exam) TotalPoints() int {
	total := 0
	for i := range e.Questions {
		total += e.Questions[i].Points
	}
	return total
}

// Question looks up a question by id.
func (e *Exam) Question(id string) (*Question, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], true
		}
	}
	return nil, false
}

// Validate checks that the exam is complete enough to start a session on.
func (e *Exam) Validate() error {
	if e.DurationMinutes < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidQuestion)
	}
	if len(e.Questions) == 0 {
		return ErrNoQuestions
	}

	seen := make(map[string]struct{}, len(e.Questions))
	for i := range e.Questions {
		q := &e.Questions[i]
		if q.ID == "" {
			return fmt.Errorf("%w: question %d has no id", ErrInvalidQuestion, i+1)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}

		if !q.Type.Valid() {
			return fmt.Errorf("%w: question %s has unknown type %q", ErrInvalidQuestion, q.ID, q.Type)
		}
		if q.Points <= 0 {
			return fmt.Errorf("%w: question %s must be worth at least one point", ErrInvalidQuestion, q.ID)
		}
		if q.Type == QuestionTypeMatching && len(q.MatchingPairs) == 0 {
			return fmt.Errorf("%w: matching question %s has no pairs", ErrInvalidQuestion, q.ID)
		}
		if err := q.checkKeyShape(); err != nil {
			return err
		}
	}
	return nil
}

// checkKeyShape requires a set key for MULTI_SELECT and a non-empty single
// key for every other type.
func (q *Question) checkKeyShape() error {
	if q.Type == QuestionTypeMultiSelect {
		if !q.CorrectAnswer.IsSet() {
			return fmt.Errorf("%w: multi-select question %s needs a list answer key", ErrInvalidQuestion, q.ID)
		}
		return nil
	}
	if q.CorrectAnswer.IsSet() || q.CorrectAnswer.Value == "" {
		return fmt.Errorf("%w: question %s needs a single answer key", ErrInvalidQuestion, q.ID)
	}
	return nil
}

// ExamPaper is the candidate-facing view of an exam (no correct answers).
type ExamPaper struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Subject         string               `json:"subject"`
	DurationMinutes int                  `json:"duration_minutes"`
	TotalPoints     int                  `json:"total_points"`
	Questions       []QuestionForStudent `json:"questions"`
}

// Paper builds the candidate-facing view of the exam.
func (e *Exam) Paper() ExamPaper {
	qs := make([]QuestionForStudent, len(e.Questions))
	for i := range e.Questions {
		qs[i] = e.Questions[i].ForStudent(i + 1)
	}
	return ExamPaper{
		ExamID:          e.ID,
		Title:           e.Title,
		Subject:         e.Subject,
		DurationMinutes: e.DurationMinutes,
		TotalPoints:     e.TotalPoints(),
		Questions:       qs,
	}
}
