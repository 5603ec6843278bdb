package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrAnswerShape is returned when an answer value does not fit its question type.
var ErrAnswerShape = errors.New("answer shape does not match question type")

// Answer is a candidate response. The concrete variant is determined by
// the question type: TextAnswer, ChoiceSetAnswer, BoolAnswer or PairingAnswer.
type Answer interface {
	isAnswer()
	clone() Answer
}

// TextAnswer answers MULTIPLE_CHOICE and FILL_IN_THE_BLANK questions.
type TextAnswer string

// ChoiceSetAnswer answers MULTI_SELECT questions. Order is irrelevant.
type ChoiceSetAnswer []string

// BoolAnswer answers TRUE_FALSE questions.
type BoolAnswer bool

// PairingAnswer answers MATCHING questions, mapping left item to chosen right item.
type PairingAnswer map[string]string

func (TextAnswer) isAnswer()      {}
func (ChoiceSetAnswer) isAnswer() {}
func (BoolAnswer) isAnswer()      {}
func (PairingAnswer) isAnswer()   {}

func (a TextAnswer) clone() Answer { return a }
func (a BoolAnswer) clone() Answer { return a }

func (a ChoiceSetAnswer) clone() Answer {
	out := make(ChoiceSetAnswer, len(a))
	copy(out, a)
	return out
}

func (a PairingAnswer) clone() Answer {
	out := make(PairingAnswer, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// CloneAnswer returns a copy of a that shares no memory with it.
func CloneAnswer(a Answer) Answer {
	if a == nil {
		return nil
	}
	return a.clone()
}

// DecodeAnswer parses a raw JSON value into the Answer variant required by t.
func DecodeAnswer(t QuestionType, raw json.RawMessage) (Answer, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: empty value", ErrAnswerShape)
	}

	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeFillInTheBlank:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s expects a string", ErrAnswerShape, t)
		}
		return TextAnswer(s), nil
	case QuestionTypeMultiSelect:
		var vs []string
		if err := json.Unmarshal(raw, &vs); err != nil {
			return nil, fmt.Errorf("%w: %s expects an array of strings", ErrAnswerShape, t)
		}
		return ChoiceSetAnswer(vs), nil
	case QuestionTypeTrueFalse:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: %s expects a boolean", ErrAnswerShape, t)
		}
		return BoolAnswer(b), nil
	case QuestionTypeMatching:
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("%w: %s expects an object of left to right", ErrAnswerShape, t)
		}
		if m == nil {
			m = map[string]string{}
		}
		return PairingAnswer(m), nil
	}
	return nil, fmt.Errorf("%w: unknown question type %q", ErrAnswerShape, t)
}

// AnswerMap is the persisted form of a candidate's answers keyed by question id.
// Each value marshals with its natural JSON shape.
type AnswerMap map[string]Answer

// MarshalJSON writes every answer as its underlying JSON value.
func (m AnswerMap) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m))
	for id, a := range m {
		switch v := a.(type) {
		case TextAnswer:
			out[id] = string(v)
		case ChoiceSetAnswer:
			out[id] = []string(v)
		case BoolAnswer:
			out[id] = bool(v)
		case PairingAnswer:
			out[id] = map[string]string(v)
		}
	}
	return json.Marshal(out)
}
