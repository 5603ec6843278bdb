// Package session implements one candidate's timed attempt at an exam:
// navigation, answer capture, review flags, countdown and submission.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/grading"
	"github.com/stemsi/exstem-cbt/internal/model"
	"golang.org/x/sync/errgroup"
)

// Session errors.
var (
	ErrNotInProgress   = errors.New("session is not in progress")
	ErrClosed          = errors.New("session is closed")
	ErrUnknownQuestion = errors.New("question does not belong to this exam")
	ErrIncompleteExam  = errors.New("exam is incomplete")
	ErrNoCandidate     = errors.New("session requires a candidate")
)

// DefaultPersistTimeout bounds the result write during submission.
const DefaultPersistTimeout = 10 * time.Second

// PersistFailedNotice is shown when the result could not be saved.
const PersistFailedNotice = "Hasil ujian Anda gagal disimpan. Tunjukkan layar ini kepada pengawas."

// Status is the state of a session.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitting Status = "SUBMITTING"
	StatusSubmitted  Status = "SUBMITTED"
)

// ResultStore durably records a scored attempt.
type ResultStore interface {
	SubmitExamResult(ctx context.Context, rec *model.ResultRecord) error
}

// FeedbackSource produces feedback text. It must not block past its own timeout.
type FeedbackSource interface {
	Explain(ctx context.Context, score, total int, subject string) string
}

// Outcome is the result view produced once a session is submitted.
type Outcome struct {
	SessionID    uuid.UUID               `json:"session_id"`
	ResultID     uuid.UUID               `json:"result_id"`
	ExamID       uuid.UUID               `json:"exam_id"`
	ExamTitle    string                  `json:"exam_title"`
	StudentID    int                     `json:"student_id"`
	Reason       model.SubmitReason      `json:"reason"`
	Result       model.Result            `json:"result"`
	Questions    []grading.QuestionScore `json:"questions"`
	Persisted    bool                    `json:"persisted"`
	Notice       string                  `json:"notice,omitempty"`
	PersistError error                   `json:"-"`
	SubmittedAt  time.Time               `json:"submitted_at"`
}

// PaletteEntry is one cell of the question palette.
type PaletteEntry struct {
	Number     int    `json:"number"`
	QuestionID string `json:"question_id"`
	Answered   bool   `json:"answered"`
	Flagged    bool   `json:"flagged"`
	Current    bool   `json:"current"`
}

// State is a read-only view of a live session.
type State struct {
	SessionID       uuid.UUID       `json:"session_id"`
	ExamID          uuid.UUID       `json:"exam_id"`
	Status          Status          `json:"status"`
	CurrentIndex    int             `json:"current_index"`
	CurrentQuestion string          `json:"current_question_id"`
	TimeLeftSeconds int             `json:"time_left_seconds"`
	AnsweredCount   int             `json:"answered_count"`
	QuestionCount   int             `json:"question_count"`
	Palette         []PaletteEntry  `json:"palette"`
	Answers         model.AnswerMap `json:"answers"`
}

// Config carries a session's collaborators and tunables.
type Config struct {
	Results        ResultStore
	Feedback       FeedbackSource
	Log            zerolog.Logger
	TickInterval   time.Duration
	PersistTimeout time.Duration
	// OnFinish runs after the session reaches Submitted.
	OnFinish func(*Session)
}

// Session is one candidate's attempt at one exam. All methods are safe for
// concurrent use; mutations are serialized by a single lock.
type Session struct {
	id        uuid.UUID
	exam      *model.Exam
	candidate *model.User
	cfg       Config
	log       zerolog.Logger
	timer     *Timer
	startedAt time.Time

	mu       sync.Mutex
	status   Status
	closed   bool
	current  int
	answers  *AnswerStore
	flagged  map[string]struct{}
	outcome  *Outcome
	baseCtx  context.Context
	cancel   context.CancelFunc
	finished chan struct{}
	teardown chan struct{}
}

// New creates a session. The exam must be complete: a nil exam, an exam
// without questions, or one failing validation is rejected.
func New(exam *model.Exam, candidate *model.User, cfg Config) (*Session, error) {
	if exam == nil {
		return nil, fmt.Errorf("%w: exam not loaded", ErrIncompleteExam)
	}
	if err := exam.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIncompleteExam, err)
	}
	if candidate == nil {
		return nil, ErrNoCandidate
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}

	s := &Session{
		id:        uuid.New(),
		exam:      exam,
		candidate: candidate,
		cfg:       cfg,
		status:    StatusInProgress,
		answers:   NewAnswerStore(),
		flagged:   make(map[string]struct{}),
		finished:  make(chan struct{}),
		teardown:  make(chan struct{}),
	}
	s.log = cfg.Log.With().
		Str("session_id", s.id.String()).
		Str("exam_id", exam.ID.String()).
		Int("student_id", candidate.ID).
		Logger()
	s.timer = NewTimer(exam.DurationMinutes, cfg.TickInterval, s.expire)
	return s, nil
}

// Start begins the countdown. ctx bounds the session's background work:
// cancelling it tears the session down.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.baseCtx != nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.startedAt = time.Now()
	base := s.baseCtx
	s.mu.Unlock()

	s.log.Info().Int("duration_minutes", s.exam.DurationMinutes).Msg("Session started")
	s.timer.Start(base)
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Exam returns the exam being taken. It must not be modified.
func (s *Session) Exam() *model.Exam { return s.exam }

// Candidate returns the candidate taking the exam.
func (s *Session) Candidate() *model.User { return s.candidate }

// TimeLeft returns the remaining seconds on the countdown.
func (s *Session) TimeLeft() int { return s.timer.Remaining() }

// Done is closed when the session reaches Submitted.
func (s *Session) Done() <-chan struct{} { return s.finished }

// Closed is closed once Close has torn the session down.
func (s *Session) Closed() <-chan struct{} { return s.teardown }

// Outcome returns the result view, or nil before submission completes.
func (s *Session) Outcome() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SelectQuestion moves the pointer to index. Out-of-range indices and
// sessions no longer in progress are a no-op reported as false.
func (s *Session) SelectQuestion(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked() || index < 0 || index >= len(s.exam.Questions) {
		return false
	}
	s.current = index
	return true
}

// Next moves to the following question. No-op on the last question.
func (s *Session) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked() || s.current >= len(s.exam.Questions)-1 {
		return false
	}
	s.current++
	return true
}

// Previous moves to the preceding question. No-op on the first question.
func (s *Session) Previous() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.liveLocked() || s.current == 0 {
		return false
	}
	s.current--
	return true
}

// RecordAnswer replaces the stored answer for questionID.
func (s *Session) RecordAnswer(questionID string, a model.Answer) error {
	q, ok := s.exam.Question(questionID)
	if !ok {
		return ErrUnknownQuestion
	}
	if !q.Accepts(a) {
		return fmt.Errorf("%w: question %s is %s", model.ErrAnswerShape, questionID, q.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLiveLocked(); err != nil {
		return err
	}
	s.answers.Put(questionID, a)
	return nil
}

// ToggleReview flips the review flag for questionID and returns the new value.
func (s *Session) ToggleReview(questionID string) (bool, error) {
	if _, ok := s.exam.Question(questionID); !ok {
		return false, ErrUnknownQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLiveLocked(); err != nil {
		return false, err
	}
	if _, on := s.flagged[questionID]; on {
		delete(s.flagged, questionID)
		return false, nil
	}
	s.flagged[questionID] = struct{}{}
	return true, nil
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	palette := make([]PaletteEntry, len(s.exam.Questions))
	for i := range s.exam.Questions {
		id := s.exam.Questions[i].ID
		_, flagged := s.flagged[id]
		palette[i] = PaletteEntry{
			Number:     i + 1,
			QuestionID: id,
			Answered:   s.answers.Has(id),
			Flagged:    flagged,
			Current:    i == s.current,
		}
	}

	return State{
		SessionID:       s.id,
		ExamID:          s.exam.ID,
		Status:          s.status,
		CurrentIndex:    s.current,
		CurrentQuestion: s.exam.Questions[s.current].ID,
		TimeLeftSeconds: s.timer.Remaining(),
		AnsweredCount:   s.answers.Len(),
		QuestionCount:   len(s.exam.Questions),
		Palette:         palette,
		Answers:         s.answers.Snapshot(),
	}
}

// Submit ends the session manually. Only the first call from InProgress
// proceeds; any other call returns ErrNotInProgress and does nothing.
func (s *Session) Submit(ctx context.Context) (*Outcome, error) {
	return s.submit(ctx, model.SubmitReasonManual)
}

// Close tears the session down without submitting. Answers are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	abandoned := s.status == StatusInProgress
	close(s.teardown)
	s.mu.Unlock()

	s.timer.Stop()
	if cancel != nil {
		cancel()
	}
	if abandoned {
		s.log.Info().Msg("Session abandoned")
	}
}

func (s *Session) expire() {
	s.log.Info().Msg("Time is up, submitting")

	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.submit(ctx, model.SubmitReasonTimeout); err != nil && !errors.Is(err, ErrNotInProgress) {
		s.log.Warn().Err(err).Msg("Timeout submission skipped")
	}
}

func (s *Session) submit(ctx context.Context, reason model.SubmitReason) (*Outcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.status != StatusInProgress {
		s.mu.Unlock()
		return nil, ErrNotInProgress
	}
	s.status = StatusSubmitting
	answers := s.answers.Snapshot()
	s.mu.Unlock()

	s.timer.Stop()

	report := grading.Score(s.exam, answers)
	grade := grading.GradeFor(report.RawScore, report.Total)
	now := time.Now()

	rec := &model.ResultRecord{
		ID:          uuid.New(),
		ExamID:      s.exam.ID,
		StudentID:   s.candidate.ID,
		ExamTitle:   s.exam.Title,
		Subject:     s.exam.Subject,
		Score:       report.RawScore,
		TotalScore:  report.Total,
		Grade:       grade,
		Reason:      reason,
		Answers:     answers,
		SubmittedAt: now,
	}

	// The handoff outlives the caller: a dropped request must not lose the write.
	handoffCtx := context.WithoutCancel(ctx)
	feedbackText, persistErr := s.handoff(handoffCtx, rec)

	out := &Outcome{
		SessionID: s.id,
		ResultID:  rec.ID,
		ExamID:    s.exam.ID,
		ExamTitle: s.exam.Title,
		StudentID: s.candidate.ID,
		Reason:    reason,
		Result: model.Result{
			Score:      report.RawScore,
			Total:      report.Total,
			Percentage: report.Percentage,
			Grade:      grade,
			Passed:     grading.Passed(grade),
			Subject:    s.exam.Subject,
			Feedback:   feedbackText,
		},
		Questions:    report.Questions,
		Persisted:    persistErr == nil,
		PersistError: persistErr,
		SubmittedAt:  now,
	}
	if persistErr != nil {
		out.Notice = PersistFailedNotice
		s.log.Error().Err(persistErr).Msg("Result write failed")
	}

	s.mu.Lock()
	s.status = StatusSubmitted
	s.outcome = out
	cancel := s.cancel
	s.mu.Unlock()
	close(s.finished)
	if cancel != nil {
		cancel()
	}

	s.log.Info().
		Str("reason", string(reason)).
		Int("score", out.Result.Score).
		Int("total", out.Result.Total).
		Str("grade", string(grade)).
		Bool("persisted", out.Persisted).
		Msg("Session submitted")

	if s.cfg.OnFinish != nil {
		s.cfg.OnFinish(s)
	}
	return out, nil
}

// handoff runs feedback generation and the result write concurrently and
// waits for both. Feedback never fails; the write error is returned.
func (s *Session) handoff(ctx context.Context, rec *model.ResultRecord) (string, error) {
	feedbackText := ""
	var g errgroup.Group

	g.Go(func() error {
		if s.cfg.Feedback != nil {
			feedbackText = s.cfg.Feedback.Explain(ctx, rec.Score, rec.TotalScore, rec.Subject)
		}
		return nil
	})
	g.Go(func() error {
		if s.cfg.Results == nil {
			return errors.New("no result store configured")
		}
		writeCtx, cancel := context.WithTimeout(ctx, s.cfg.PersistTimeout)
		defer cancel()
		if err := s.cfg.Results.SubmitExamResult(writeCtx, rec); err != nil {
			return fmt.Errorf("submit exam result: %w", err)
		}
		return nil
	})

	err := g.Wait()
	return feedbackText, err
}

func (s *Session) liveLocked() bool {
	return !s.closed && s.status == StatusInProgress
}

func (s *Session) checkLiveLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.status != StatusInProgress {
		return ErrNotInProgress
	}
	return nil
}
