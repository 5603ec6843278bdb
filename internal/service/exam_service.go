package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/config"
	"github.com/stemsi/exstem-cbt/internal/model"
)

// Domain Errors
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotAvailable = errors.New("exam is not open for sessions")
)

// ExamService loads exam definitions, fronting the database with a Redis cache.
type ExamService struct {
	exams ExamStore
	kv    KeyValueStore
	ttl   time.Duration
	log   zerolog.Logger
}

// NewExamService creates a new ExamService. A ttl of zero caches without expiry.
func NewExamService(exams ExamStore, kv KeyValueStore, ttl time.Duration, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams: exams,
		kv:    kv,
		ttl:   ttl,
		log:   log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExam returns the full exam definition, answer keys included.
// A cache miss or an unreadable cache entry falls through to the database
// and rewrites the entry.
func (s *ExamService) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	key := config.CacheKey.ExamDefinitionKey(id.String())

	data, err := s.kv.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var exam model.Exam
		if jsonErr := json.Unmarshal(data, &exam); jsonErr == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam_id", id.String()).Msg("Corrupt exam cache entry, reloading")
	case errors.Is(err, redis.Nil):
	default:
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache unavailable, reading database")
	}

	exam, err := s.exams.GetExamByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if err := s.cache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to cache exam")
	}
	return exam, nil
}

// GetActiveExam returns the exam only if it is open for sessions.
func (s *ExamService) GetActiveExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	exam, err := s.GetExam(ctx, id)
	if err != nil {
		return nil, err
	}
	if exam.Status != model.ExamStatusActive {
		return nil, ErrExamNotAvailable
	}
	return exam, nil
}

// ListAvailable returns the active exams assigned to user's class.
// Exams without an assigned class are open to everyone.
func (s *ExamService) ListAvailable(ctx context.Context, user *model.User) ([]model.Exam, error) {
	exams, err := s.exams.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active exams: %w", err)
	}

	out := make([]model.Exam, 0, len(exams))
	for _, e := range exams {
		if e.AssignedClass == "" || e.AssignedClass == user.ClassName {
			out = append(out, e)
		}
	}
	return out, nil
}

// InvalidateCache drops the cached definition so the next load reads the database.
func (s *ExamService) InvalidateCache(ctx context.Context, id uuid.UUID) error {
	return s.kv.Del(ctx, config.CacheKey.ExamDefinitionKey(id.String())).Err()
}

// PrewarmActive loads every active exam into the cache. Exams that fail to
// load are skipped.
func (s *ExamService) PrewarmActive(ctx context.Context) error {
	exams, err := s.exams.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active exams: %w", err)
	}
	if len(exams) == 0 {
		s.log.Info().Msg("No active exams to prewarm")
		return nil
	}

	warmed := 0
	for i := range exams {
		full, err := s.exams.GetExamByID(ctx, exams[i].ID)
		if err == nil {
			err = s.cache(ctx, full)
		}
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

func (s *ExamService) cache(ctx context.Context, exam *model.Exam) error {
	data, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	return s.kv.Set(ctx, config.CacheKey.ExamDefinitionKey(exam.ID.String()), data, s.ttl).Err()
}
