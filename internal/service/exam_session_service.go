package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/session"
)

// ErrSessionNotFound is returned for unknown sessions and sessions owned by someone else.
var ErrSessionNotFound = errors.New("session not found")

// DefaultFinishedRetention is how long a submitted session stays reachable
// so repeated submit calls and late stream subscribers still see its outcome.
const DefaultFinishedRetention = 5 * time.Minute

// ExamLoader resolves the exam a session is started on.
type ExamLoader interface {
	GetActiveExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// SessionOptions tunes the sessions created by ExamSessionService.
type SessionOptions struct {
	TickInterval      time.Duration
	PersistTimeout    time.Duration
	FinishedRetention time.Duration
}

// ExamSessionService is the registry of live exam sessions in this process.
type ExamSessionService struct {
	exams    ExamLoader
	results  session.ResultStore
	feedback session.FeedbackSource
	opts     SessionOptions
	log      zerolog.Logger

	// base outlives any single request; cancelling it tears every session down.
	base context.Context

	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	// byAttempt maps a user's in-progress attempt at an exam to its session.
	byAttempt map[attemptKey]uuid.UUID
}

type attemptKey struct {
	userID int
	examID uuid.UUID
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	base context.Context,
	exams ExamLoader,
	results session.ResultStore,
	feedback session.FeedbackSource,
	opts SessionOptions,
	log zerolog.Logger,
) *ExamSessionService {
	if opts.FinishedRetention <= 0 {
		opts.FinishedRetention = DefaultFinishedRetention
	}
	return &ExamSessionService{
		exams:     exams,
		results:   results,
		feedback:  feedback,
		opts:      opts,
		log:       log.With().Str("component", "exam_session_service").Logger(),
		base:      base,
		sessions:  make(map[uuid.UUID]*session.Session),
		byAttempt: make(map[attemptKey]uuid.UUID),
	}
}

// Start begins a session for user on examID. If the user already has an
// in-progress session on the same exam in this process, that session is returned.
func (s *ExamSessionService) Start(ctx context.Context, user *model.User, examID uuid.UUID) (*session.Session, error) {
	key := attemptKey{userID: user.ID, examID: examID}

	s.mu.Lock()
	if id, ok := s.byAttempt[key]; ok {
		if existing := s.sessions[id]; existing != nil && existing.Status() == session.StatusInProgress {
			s.mu.Unlock()
			return existing, nil
		}
	}
	s.mu.Unlock()

	exam, err := s.exams.GetActiveExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	sess, err := session.New(exam, user, session.Config{
		Results:        s.results,
		Feedback:       s.feedback,
		Log:            s.log,
		TickInterval:   s.opts.TickInterval,
		PersistTimeout: s.opts.PersistTimeout,
		OnFinish:       s.finished,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	// Another request may have won the race while the exam was loading.
	if id, ok := s.byAttempt[key]; ok {
		if existing := s.sessions[id]; existing != nil && existing.Status() == session.StatusInProgress {
			s.mu.Unlock()
			return existing, nil
		}
	}
	s.sessions[sess.ID()] = sess
	s.byAttempt[key] = sess.ID()
	s.mu.Unlock()

	sess.Start(s.base)
	return sess, nil
}

// Get returns the session if it exists and belongs to user.
func (s *ExamSessionService) Get(user *model.User, sessionID uuid.UUID) (*session.Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	s.mu.Unlock()

	if !ok || user == nil || sess.Candidate().ID != user.ID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Abandon discards an in-progress session without recording a result.
func (s *ExamSessionService) Abandon(user *model.User, sessionID uuid.UUID) error {
	sess, err := s.Get(user, sessionID)
	if err != nil {
		return err
	}
	s.remove(sess)
	sess.Close()
	return nil
}

// Live returns the number of sessions in the registry.
func (s *ExamSessionService) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Shutdown closes every session in the registry.
func (s *ExamSessionService) Shutdown() {
	s.mu.Lock()
	all := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		all = append(all, sess)
	}
	s.sessions = make(map[uuid.UUID]*session.Session)
	s.byAttempt = make(map[attemptKey]uuid.UUID)
	s.mu.Unlock()

	for _, sess := range all {
		sess.Close()
	}
	s.log.Info().Int("sessions", len(all)).Msg("Session registry shut down")
}

// finished runs when a session reaches Submitted. The attempt slot is freed
// at once; the session itself stays reachable for the retention period.
func (s *ExamSessionService) finished(sess *session.Session) {
	s.mu.Lock()
	key := attemptKey{userID: sess.Candidate().ID, examID: sess.Exam().ID}
	if s.byAttempt[key] == sess.ID() {
		delete(s.byAttempt, key)
	}
	s.mu.Unlock()

	time.AfterFunc(s.opts.FinishedRetention, func() {
		s.remove(sess)
	})
}

func (s *ExamSessionService) remove(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sess.ID()] == sess {
		delete(s.sessions, sess.ID())
	}
	key := attemptKey{userID: sess.Candidate().ID, examID: sess.Exam().ID}
	if s.byAttempt[key] == sess.ID() {
		delete(s.byAttempt, key)
	}
}
