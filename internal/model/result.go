package model

import (
	"time"

	"github.com/google/uuid"
)

// Grade is a letter bucket derived from a percentage score.
type Grade string

const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
	GradeF     Grade = "F"
	GradeNA    Grade = "N/A"
)

// Rank orders grades from best (6) to worst (1). GradeNA ranks 0.
func (g Grade) Rank() int {
	switch g {
	case GradeAPlus:
		return 6
	case GradeA:
		return 5
	case GradeB:
		return 4
	case GradeC:
		return 3
	case GradeD:
		return 2
	case GradeF:
		return 1
	}
	return 0
}

// SubmitReason records what ended a session.
type SubmitReason string

const (
	SubmitReasonManual  SubmitReason = "manual"
	SubmitReasonTimeout SubmitReason = "timeout"
)

// Result is the scored outcome of one session.
type Result struct {
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Grade      Grade   `json:"grade"`
	Passed     bool    `json:"passed"`
	Subject    string  `json:"subject"`
	Feedback   string  `json:"feedback"`
}

// ResultRecord is the tuple written to the result store.
type ResultRecord struct {
	ID          uuid.UUID    `json:"id"`
	ExamID      uuid.UUID    `json:"exam_id"`
	StudentID   int          `json:"student_id"`
	ExamTitle   string       `json:"exam_title"`
	Subject     string       `json:"subject"`
	Score       int          `json:"score"`
	TotalScore  int          `json:"total_score"`
	Grade       Grade        `json:"grade"`
	Reason      SubmitReason `json:"reason"`
	Answers     AnswerMap    `json:"answers"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// ResultSummary is a stored result as listed in a student's history.
type ResultSummary struct {
	ID          uuid.UUID `json:"id"`
	ExamID      uuid.UUID `json:"exam_id"`
	ExamTitle   string    `json:"exam_title"`
	Subject     string    `json:"subject"`
	Score       int       `json:"score"`
	TotalScore  int       `json:"total_score"`
	Grade       Grade     `json:"grade"`
	SubmittedAt time.Time `json:"submitted_at"`
}
