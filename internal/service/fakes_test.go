package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// memKV is an in-memory KeyValueStore.
type memKV struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	sets   int
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	}
	return redis.NewStatusResult("OK", nil)
}

func (m *memKV) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type fakeUsers struct {
	byID map[int]*model.User
}

func (f *fakeUsers) GetByID(_ context.Context, id int) (*model.User, error) {
	if u, ok := f.byID[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeExams struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
	loads int
}

func (f *fakeExams) GetExamByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if e, ok := f.exams[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeExams) ListActive(_ context.Context) ([]model.Exam, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Exam
	for _, e := range f.exams {
		if e.Status == model.ExamStatusActive {
			cp := *e
			cp.Questions = nil
			out = append(out, cp)
		}
	}
	return out, nil
}

func sampleExam(status model.ExamStatus, class string) *model.Exam {
	return &model.Exam{
		ID:              uuid.New(),
		Title:           "Penilaian Akhir Semester",
		Subject:         "Mathematics",
		AssignedClass:   class,
		DurationMinutes: 60,
		Status:          status,
		Questions: []model.Question{
			{ID: "q1", Type: model.QuestionTypeMultipleChoice, Options: []string{"A", "B"}, CorrectAnswer: model.SingleKey("A"), Points: 2},
			{ID: "q2", Type: model.QuestionTypeMultiSelect, Options: []string{"2", "4", "11"}, CorrectAnswer: model.SetKey("2", "11"), Points: 3},
		},
	}
}
