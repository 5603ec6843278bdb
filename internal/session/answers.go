package session

import "github.com/stemsi/exstem-cbt/internal/model"

// AnswerStore holds the candidate's current answer per question id.
// It is not safe for concurrent use; Session guards it.
type AnswerStore struct {
	answers map[string]model.Answer
}

// NewAnswerStore creates an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[string]model.Answer)}
}

// Put replaces the answer for questionID. Last write wins.
func (s *AnswerStore) Put(questionID string, a model.Answer) {
	s.answers[questionID] = model.CloneAnswer(a)
}

// Get returns the stored answer, if any.
func (s *AnswerStore) Get(questionID string) (model.Answer, bool) {
	a, ok := s.answers[questionID]
	return a, ok
}

// Has reports whether questionID has been answered.
func (s *AnswerStore) Has(questionID string) bool {
	_, ok := s.answers[questionID]
	return ok
}

// Len is the number of answered questions.
func (s *AnswerStore) Len() int { return len(s.answers) }

// Snapshot returns a deep copy that later writes cannot affect.
func (s *AnswerStore) Snapshot() model.AnswerMap {
	out := make(model.AnswerMap, len(s.answers))
	for id, a := range s.answers {
		out[id] = model.CloneAnswer(a)
	}
	return out
}
