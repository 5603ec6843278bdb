// Package grading scores a finished exam attempt and maps the score to a letter grade.
package grading

import (
	"strconv"

	"github.com/stemsi/exstem-cbt/internal/model"
)

// QuestionScore is the outcome of one question.
type QuestionScore struct {
	QuestionID  string             `json:"question_id"`
	Type        model.QuestionType `json:"type"`
	Answered    bool               `json:"answered"`
	Correct     bool               `json:"correct"`
	NeedsManual bool               `json:"needs_manual,omitempty"`
	Awarded     int                `json:"awarded"`
	MaxPoints   int                `json:"max_points"`
}

// Report is the result of scoring a full answer map against an exam.
type Report struct {
	RawScore   int             `json:"raw_score"`
	Total      int             `json:"total"`
	Percentage float64         `json:"percentage"`
	Questions  []QuestionScore `json:"questions"`
}

// Score grades answers against exam. It is total: missing answers, wrong
// shapes and empty exams all score zero without error.
func Score(exam *model.Exam, answers map[string]model.Answer) Report {
	var rep Report
	if exam == nil {
		return rep
	}

	rep.Questions = make([]QuestionScore, 0, len(exam.Questions))
	for i := range exam.Questions {
		q := &exam.Questions[i]
		qs := QuestionScore{
			QuestionID: q.ID,
			Type:       q.Type,
			MaxPoints:  q.Points,
		}

		ans, ok := answers[q.ID]
		qs.Answered = ok && ans != nil

		switch q.Type {
		case model.QuestionTypeMatching:
			// Not auto-gradable from the flattened key.
			qs.NeedsManual = true
		default:
			if qs.Answered {
				qs.Correct = isCorrect(q, ans)
			}
		}

		if qs.Correct {
			qs.Awarded = q.Points
		}
		rep.RawScore += qs.Awarded
		rep.Total += q.Points
		rep.Questions = append(rep.Questions, qs)
	}

	rep.Percentage = Percentage(rep.RawScore, rep.Total)
	return rep
}

// Percentage returns raw/total*100, or 0 when total is zero.
func Percentage(raw, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(raw) / float64(total) * 100
}

func isCorrect(q *model.Question, ans model.Answer) bool {
	// A key of the wrong shape never matches.
	if q.CorrectAnswer.IsSet() != (q.Type == model.QuestionTypeMultiSelect) {
		return false
	}
	switch q.Type {
	case model.QuestionTypeMultipleChoice, model.QuestionTypeFillInTheBlank:
		v, ok := ans.(model.TextAnswer)
		// Exact, case-sensitive, no trimming.
		return ok && string(v) == q.CorrectAnswer.Value
	case model.QuestionTypeTrueFalse:
		v, ok := ans.(model.BoolAnswer)
		if !ok {
			return false
		}
		want, err := strconv.ParseBool(q.CorrectAnswer.Value)
		return err == nil && bool(v) == want
	case model.QuestionTypeMultiSelect:
		v, ok := ans.(model.ChoiceSetAnswer)
		return ok && setEqual(v, q.CorrectAnswer.Values)
	}
	return false
}

func setEqual(a, b []string) bool {
	as := toSet(a)
	bs := toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if _, ok := bs[k]; !ok {
			return false
		}
	}
	return true
}

func toSet(xs []string) map[string]struct{} {
	m := make(map[string]struct{}, len(xs))
	for _, x := range xs {
		m[x] = struct{}{}
	}
	return m
}
