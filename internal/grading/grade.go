package grading

import (
	"math"

	"github.com/stemsi/exstem-cbt/internal/model"
)

// PassingGrade is the lowest grade that counts as a pass.
const PassingGrade = model.GradeD

var bands = []struct {
	min   float64
	grade model.Grade
}{
	{90, model.GradeAPlus},
	{80, model.GradeA},
	{70, model.GradeB},
	{60, model.GradeC},
	{50, model.GradeD},
}

// GradeForPercentage maps a percentage to a letter grade. Every band is
// inclusive on its lower bound; NaN maps to F.
func GradeForPercentage(p float64) model.Grade {
	if math.IsNaN(p) {
		return model.GradeF
	}
	for _, b := range bands {
		if p >= b.min {
			return b.grade
		}
	}
	return model.GradeF
}

// GradeFor maps a raw score to a grade. A zero total has no grade.
func GradeFor(raw, total int) model.Grade {
	if total <= 0 {
		return model.GradeNA
	}
	return GradeForPercentage(Percentage(raw, total))
}

// Passed reports whether g is a passing grade.
func Passed(g model.Grade) bool {
	return g.Rank() >= PassingGrade.Rank()
}
