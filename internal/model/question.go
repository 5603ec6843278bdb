package model

import (
	"encoding/json"
	"errors"
)

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeMultiSelect    QuestionType = "MULTI_SELECT"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeFillInTheBlank QuestionType = "FILL_IN_THE_BLANK"
	QuestionTypeMatching       QuestionType = "MATCHING"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeMultiSelect, QuestionTypeTrueFalse,
		QuestionTypeFillInTheBlank, QuestionTypeMatching:
		return true
	}
	return false
}

// MatchingPair is one left/right row of a MATCHING question.
type MatchingPair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Question represents a single exam question. It is read-only once the exam is published.
type Question struct {
	ID            string         `json:"id"`
	Text          string         `json:"text"`
	Type          QuestionType   `json:"type"`
	Options       []string       `json:"options,omitempty"`
	CorrectAnswer AnswerKey      `json:"correct_answer"`
	Points        int            `json:"points"`
	MatchingPairs []MatchingPair `json:"matching_pairs,omitempty"`
	ImageURL      string         `json:"image_url,omitempty"`
	OptionImages  []string       `json:"option_images,omitempty"`
	OrderNum      int            `json:"order_num"`
}

// QuestionForStudent is a question without the correct answer, sent to candidates.
type QuestionForStudent struct {
	ID            string       `json:"id"`
	Number        int          `json:"number"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	Points        int          `json:"points"`
	MatchingLeft  []string     `json:"matching_left,omitempty"`
	MatchingRight []string     `json:"matching_right,omitempty"`
	ImageURL      string       `json:"image_url,omitempty"`
	OptionImages  []string     `json:"option_images,omitempty"`
}

// ForStudent strips the answer key. number is the 1-based palette position.
func (q *Question) ForStudent(number int) QuestionForStudent {
	out := QuestionForStudent{
		ID:           q.ID,
		Number:       number,
		Text:         q.Text,
		Type:         q.Type,
		Options:      q.Options,
		Points:       q.Points,
		ImageURL:     q.ImageURL,
		OptionImages: q.OptionImages,
	}
	for _, p := range q.MatchingPairs {
		out.MatchingLeft = append(out.MatchingLeft, p.Left)
		out.MatchingRight = append(out.MatchingRight, p.Right)
	}
	return out
}

// Accepts reports whether a matches the answer shape required by the question type.
func (q *Question) Accepts(a Answer) bool {
	if a == nil {
		return false
	}
	switch q.Type {
	case QuestionTypeMultipleChoice, QuestionTypeFillInTheBlank:
		_, ok := a.(TextAnswer)
		return ok
	case QuestionTypeMultiSelect:
		_, ok := a.(ChoiceSetAnswer)
		return ok
	case QuestionTypeTrueFalse:
		_, ok := a.(BoolAnswer)
		return ok
	case QuestionTypeMatching:
		_, ok := a.(PairingAnswer)
		return ok
	}
	return false
}

// AnswerKey holds the canonical answer of a question. Single-valued
// types (and the flattened MATCHING ordering) use Value; MULTI_SELECT uses Values.
type AnswerKey struct {
	Value  string
	Values []string
}

// SingleKey builds a key for single-valued question types.
func SingleKey(v string) AnswerKey { return AnswerKey{Value: v} }

// SetKey builds a key for MULTI_SELECT questions.
func SetKey(vs ...string) AnswerKey {
	if vs == nil {
		vs = []string{}
	}
	return AnswerKey{Values: vs}
}

// IsSet reports whether the key carries a set of values.
func (k AnswerKey) IsSet() bool { return k.Values != nil }

// MarshalJSON encodes the key as a JSON string or array of strings.
func (k AnswerKey) MarshalJSON() ([]byte, error) {
	if k.IsSet() {
		return json.Marshal(k.Values)
	}
	return json.Marshal(k.Value)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (k *AnswerKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = AnswerKey{Value: s}
		return nil
	}
	var vs []string
	if err := json.Unmarshal(data, &vs); err == nil {
		if vs == nil {
			vs = []string{}
		}
		*k = AnswerKey{Values: vs}
		return nil
	}
	return errors.New("correct_answer must be a string or an array of strings")
}
