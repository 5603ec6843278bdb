package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cbt/internal/middleware"
	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/service"
	"github.com/stemsi/exstem-cbt/internal/session"
	ws "github.com/stemsi/exstem-cbt/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a live session to the candidate's browser.
type WSHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	tick           time.Duration
}

// NewWSHandler creates a new WSHandler. tick is the countdown push period.
func NewWSHandler(sessionService *service.ExamSessionService, log zerolog.Logger, allowedOrigins []string, tick time.Duration) *WSHandler {
	if tick <= 0 {
		tick = session.DefaultTickInterval
	}
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
		tick:           tick,
	}
}

type inbound struct {
	action ws.Action
	data   []byte
	err    error
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream?token=...
// Pushes tick events while the session runs, then either a final submitted
// event or, when the session is torn down first, an error with SESSION_CLOSED.
// Clients may also send answer, submit and ping actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	user := middleware.GetUser(c)
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}
	sess, err := h.sessionService.Get(user, sessionID)
	if err != nil {
		status, code := classify(err)
		response.Fail(c, status, code)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", user.ID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	// Reader goroutine; this goroutine is the only writer.
	msgs := make(chan inbound)
	closed := make(chan struct{})
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		defer close(closed)
		for {
			action, data, err := ws.ReadMessage(conn)
			if err != nil && !errors.Is(err, ws.ErrMalformed) {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					wsLog.Debug().Msg("Connection closed")
				}
				return
			}
			select {
			case msgs <- inbound{action: action, data: data, err: err}:
			case <-quit:
				return
			}
		}
	}()

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	if err := ws.WriteTyped(conn, ws.TickEvent{Event: ws.EventTick, TimeLeft: sess.TimeLeft()}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-sess.Done():
			h.writeSubmitted(conn, sess)
			return
		case <-sess.Closed():
			select {
			case <-sess.Done():
				h.writeSubmitted(conn, sess)
			default:
				h.writeClosed(conn)
			}
			return
		case <-ticker.C:
			if err := ws.WriteTyped(conn, ws.TickEvent{Event: ws.EventTick, TimeLeft: sess.TimeLeft()}); err != nil {
				return
			}
		case msg := <-msgs:
			if err := h.handle(c.Request.Context(), conn, sess, msg); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handle(ctx context.Context, conn *websocket.Conn, sess *session.Session, msg inbound) error {
	if msg.err != nil {
		return writeCode(conn, response.ErrInvalidPayload)
	}

	switch msg.action {
	case ws.ActionPing:
		return ws.WriteTyped(conn, ws.PongEvent{Event: ws.EventPong})

	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if err := json.Unmarshal(msg.data, &req); err != nil {
			return writeCode(conn, response.ErrInvalidPayload)
		}
		q, ok := sess.Exam().Question(req.QuestionID)
		if !ok {
			return writeCode(conn, response.ErrUnknownQuestion)
		}
		answer, err := model.DecodeAnswer(q.Type, req.Value)
		if err == nil {
			err = sess.RecordAnswer(req.QuestionID, answer)
		}
		if err != nil {
			_, code := classify(err)
			return writeCode(conn, code)
		}
		return ws.WriteTyped(conn, ws.SavedEvent{Event: ws.EventSaved, QuestionID: req.QuestionID})

	case ws.ActionSubmit:
		var req ws.SubmitRequest
		if err := json.Unmarshal(msg.data, &req); err != nil {
			return writeCode(conn, response.ErrInvalidPayload)
		}
		if !req.Confirm {
			return writeCode(conn, response.ErrConfirmRequired)
		}
		// The submitted event goes out through the Done branch.
		if _, err := sess.Submit(ctx); err != nil && !errors.Is(err, session.ErrNotInProgress) {
			_, code := classify(err)
			return writeCode(conn, code)
		}
		return nil
	}

	return writeCode(conn, response.ErrInvalidPayload)
}

func (h *WSHandler) writeSubmitted(conn *websocket.Conn, sess *session.Session) {
	if err := ws.WriteTyped(conn, ws.SubmittedEvent{Event: ws.EventSubmitted, Outcome: sess.Outcome()}); err != nil {
		h.log.Debug().Err(err).Msg("Failed to deliver outcome")
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted"),
		time.Now().Add(time.Second))
}

// writeClosed tells the client the session was torn down without a result.
func (h *WSHandler) writeClosed(conn *websocket.Conn) {
	if err := writeCode(conn, response.ErrSessionClosed); err != nil {
		h.log.Debug().Err(err).Msg("Failed to deliver close notice")
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closed"),
		time.Now().Add(time.Second))
}

func writeCode(conn *websocket.Conn, code response.ErrCode) error {
	return ws.WriteError(conn, string(code), response.GetMessage(code))
}
