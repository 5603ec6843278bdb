package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/middleware"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/service"
	"github.com/stemsi/exstem-cbt/internal/session"
	"github.com/stemsi/exstem-cbt/internal/validator"
)

// SessionHandler serves the student exam-taking endpoints.
type SessionHandler struct {
	examService    *service.ExamService
	sessionService *service.ExamSessionService
	resultService  *service.ResultService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	examService *service.ExamService,
	sessionService *service.ExamSessionService,
	resultService *service.ResultService,
	log zerolog.Logger,
) *SessionHandler {
	return &SessionHandler{
		examService:    examService,
		sessionService: sessionService,
		resultService:  resultService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// SessionView is a session's state plus, once submitted, its outcome.
type SessionView struct {
	State   session.State    `json:"state"`
	Outcome *session.Outcome `json:"outcome,omitempty"`
}

// StartResponse is returned when a session starts.
type StartResponse struct {
	State session.State   `json:"state"`
	Paper model.ExamPaper `json:"paper"`
}

type answerRequest struct {
	Value jsonValue `json:"value" binding:"required"`
}

type navigateRequest struct {
	Index     *int   `json:"index"`
	Direction string `json:"direction" binding:"omitempty,question_direction"`
}

type submitRequest struct {
	Confirm bool `json:"confirm"`
}

// NavigateResponse reports whether the pointer moved. Out-of-range moves are no-ops.
type NavigateResponse struct {
	Moved bool          `json:"moved"`
	State session.State `json:"state"`
}

// ListExams godoc
// GET /api/v1/student/exams
// Lists the active exams assigned to the student's class.
func (h *SessionHandler) ListExams(c *gin.Context) {
	user := middleware.GetUser(c)
	exams, err := h.examService.ListAvailable(c.Request.Context(), user)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// StartSession godoc
// POST /api/v1/student/exams/:exam_id/sessions
// Starts (or returns the student's live) session on the exam.
func (h *SessionHandler) StartSession(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	sess, err := h.sessionService.Start(c.Request.Context(), middleware.GetUser(c), examID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusCreated, StartResponse{
		State: sess.State(),
		Paper: sess.Exam().Paper(),
	})
}

// GetSession godoc
// GET /api/v1/student/sessions/:session_id
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, SessionView{State: sess.State(), Outcome: sess.Outcome()})
}

// RecordAnswer godoc
// PUT /api/v1/student/sessions/:session_id/answers/:question_id
// Body {"value": <json>} where the value's shape follows the question type.
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var req answerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questionID := c.Param("question_id")
	q, found := sess.Exam().Question(questionID)
	if !found {
		h.fail(c, session.ErrUnknownQuestion)
		return
	}
	answer, err := model.DecodeAnswer(q.Type, req.Value.Raw())
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := sess.RecordAnswer(questionID, answer); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, sess.State())
}

// Navigate godoc
// POST /api/v1/student/sessions/:session_id/navigate
// Body {"index": n} or {"direction": "next"|"previous"}.
func (h *SessionHandler) Navigate(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var req navigateRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if (req.Index == nil) == (req.Direction == "") {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidNavigation)
		return
	}
	if sess.Status() != session.StatusInProgress {
		h.fail(c, session.ErrNotInProgress)
		return
	}

	var moved bool
	switch {
	case req.Index != nil:
		moved = sess.SelectQuestion(*req.Index)
	case req.Direction == validator.DirectionNext:
		moved = sess.Next()
	default:
		moved = sess.Previous()
	}

	response.Success(c, http.StatusOK, NavigateResponse{Moved: moved, State: sess.State()})
}

// ToggleReview godoc
// POST /api/v1/student/sessions/:session_id/review/:question_id
func (h *SessionHandler) ToggleReview(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	questionID := c.Param("question_id")
	flagged, err := sess.ToggleReview(questionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"question_id": questionID, "flagged": flagged})
}

// Submit godoc
// POST /api/v1/student/sessions/:session_id/submit
// Body {"confirm": true}. Repeating the call, or calling it while the timer
// is already submitting, waits for and returns the same outcome.
func (h *SessionHandler) Submit(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	var req submitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !req.Confirm {
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrConfirmRequired)
		return
	}

	out, err := sess.Submit(c.Request.Context())
	if errors.Is(err, session.ErrNotInProgress) {
		select {
		case <-sess.Done():
			out, err = sess.Outcome(), nil
		case <-c.Request.Context().Done():
			return
		}
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, out)
}

// Abandon godoc
// DELETE /api/v1/student/sessions/:session_id
// Discards an in-progress session without recording a result.
func (h *SessionHandler) Abandon(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.sessionService.Abandon(middleware.GetUser(c), sessionID); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{})
}

// ListResults godoc
// GET /api/v1/student/results
func (h *SessionHandler) ListResults(c *gin.Context) {
	results, err := h.resultService.ListForStudent(c.Request.Context(), middleware.GetUser(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"results": results})
}

func (h *SessionHandler) lookup(c *gin.Context) (*session.Session, bool) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}
	sess, err := h.sessionService.Get(middleware.GetUser(c), sessionID)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return sess, true
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.Fail(c, status, code)
}
